package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"calc-cli/internal/config"
	"calc-cli/internal/history"
)

type historyArgs struct {
	cfgPath   string
	overrides stringSlice
	clear     bool
	json      bool
	limit     int
}

func historyMain(root rootArgs, args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	var cli historyArgs
	fs.StringVar(&cli.cfgPath, "config", "", "Path to config file")
	fs.Var(&cli.overrides, "c", "Override config value key=value (repeatable)")
	fs.BoolVar(&cli.clear, "clear", false, "Delete all persisted history")
	fs.BoolVar(&cli.json, "json", false, "Print entries as JSON")
	fs.IntVar(&cli.limit, "limit", 0, "Show at most N newest entries (default max_history)")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parse history args: %v", err)
	}
	cfg, err := loadConfig(root.configPath(cli.cfgPath), prependOverrides(root.overrides, []string(cli.overrides)))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := runHistory(os.Stdout, cfg, cli); err != nil {
		log.Fatalf("history: %v", err)
	}
}

func runHistory(w io.Writer, cfg config.Config, cli historyArgs) error {
	path := cfg.ResolvedHistoryPath()
	if path == "" {
		return errors.New("history path is empty")
	}
	store := history.NewStore(path)
	if cli.clear {
		if err := store.Clear(); err != nil {
			return err
		}
		_, err := fmt.Fprintln(w, "history cleared")
		return err
	}

	limit := cli.limit
	if limit <= 0 {
		limit = cfg.MaxHistory
	}
	entries, err := store.Load(limit)
	if err != nil {
		return err
	}
	if cli.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if entries == nil {
			entries = []history.Entry{}
		}
		return enc.Encode(entries)
	}
	for i, e := range entries {
		if _, err := fmt.Fprintf(w, "%4d  %s  %s = %s\n", i+1, e.TS.Local().Format("2006-01-02 15:04:05"), e.Expr, e.Result); err != nil {
			return err
		}
	}
	return nil
}
