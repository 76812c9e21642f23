package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"calc-cli/internal/config"
	"calc-cli/internal/features"
)

func featuresMain(root rootArgs, args []string) {
	var overrides stringSlice
	var cfgPath string
	fs := flag.NewFlagSet("features", flag.ExitOnError)
	fs.StringVar(&cfgPath, "config", "", "Path to config file")
	fs.Var(&overrides, "c", "Override config value key=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parse features args: %v", err)
	}
	cfg, err := loadConfig(root.configPath(cfgPath), prependOverrides(root.overrides, []string(overrides)))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	printFeatures(os.Stdout, cfg)
}

func printFeatures(w io.Writer, cfg config.Config) {
	for _, spec := range features.Specs {
		fmt.Fprintf(w, "%s\t%s\t%t\n", spec.Key, spec.Stage, features.Enabled(cfg.Features, spec.Key))
	}
}
