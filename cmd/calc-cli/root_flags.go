package main

import (
	"flag"
	"fmt"
	"strings"

	"calc-cli/internal/features"
)

// rootArgs 是子命令之前的全局参数，子命令自己的 -c 在其后应用。
type rootArgs struct {
	cfgPath   string
	overrides []string
}

// configPath prefers the subcommand's --config over the root one.
func (r rootArgs) configPath(local string) string {
	if strings.TrimSpace(local) != "" {
		return local
	}
	return r.cfgPath
}

func parseRootArgs(args []string) (rootArgs, []string, error) {
	fs := flag.NewFlagSet("calc-cli", flag.ContinueOnError)
	var root rootArgs
	var overrides, enable, disable stringSlice
	fs.StringVar(&root.cfgPath, "config", "", "Path to config file (default ~/.calc/config.toml)")
	fs.Var(&overrides, "c", "Override config value key=value (repeatable, applied before subcommand overrides)")
	fs.Var(&enable, "enable", "Enable a feature (repeatable). Equivalent to -c features.<name>=true")
	fs.Var(&disable, "disable", "Disable a feature (repeatable). Equivalent to -c features.<name>=false")
	if err := fs.Parse(args); err != nil {
		return rootArgs{}, nil, err
	}

	toggles, err := featureToggles(enable, disable)
	if err != nil {
		return rootArgs{}, nil, err
	}
	root.overrides = append([]string(overrides), toggles...)
	return root, fs.Args(), nil
}

func prependOverrides(root []string, overrides []string) []string {
	merged := append([]string{}, root...)
	return append(merged, overrides...)
}

// featureToggles 把 --enable/--disable 转成 features.<name>=bool 覆盖，未知特性直接报错。
func featureToggles(enable, disable []string) ([]string, error) {
	out := make([]string, 0, len(enable)+len(disable))
	add := func(keys []string, on bool) error {
		for _, key := range keys {
			key = strings.TrimSpace(key)
			if !features.IsKnown(key) {
				return fmt.Errorf("unknown feature flag: %s", key)
			}
			out = append(out, fmt.Sprintf("features.%s=%t", key, on))
		}
		return nil
	}
	if err := add(enable, true); err != nil {
		return nil, err
	}
	if err := add(disable, false); err != nil {
		return nil, err
	}
	return out, nil
}
