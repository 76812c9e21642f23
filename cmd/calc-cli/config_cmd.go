package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"calc-cli/internal/config"
)

// configMain 打印生效配置；"set k=v ..." 把覆盖写回配置文件。
func configMain(root rootArgs, args []string) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	var cfgPath string
	var overrides stringSlice
	fs.StringVar(&cfgPath, "config", "", "Path to config file")
	fs.Var(&overrides, "c", "Override config value key=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parse config args: %v", err)
	}
	if err := runConfig(os.Stdout, root.configPath(cfgPath), prependOverrides(root.overrides, []string(overrides)), fs.Args()); err != nil {
		log.Fatalf("config: %v", err)
	}
}

func runConfig(w io.Writer, path string, overrides []string, args []string) error {
	if len(args) > 0 && args[0] == "set" {
		if len(args) < 2 {
			return fmt.Errorf("usage: config set key=value [key=value...]")
		}
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = config.ApplyKVOverrides(cfg, args[1:])
		if err := config.Save(cfg.Source, cfg); err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "saved %s\n", cfg.Source)
		return err
	}
	if len(args) > 0 {
		return fmt.Errorf("unknown config command %q", args[0])
	}
	cfg, err := loadConfig(path, overrides)
	if err != nil {
		return err
	}
	data, err := config.Encode(cfg)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
