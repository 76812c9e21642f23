package config

import (
	"strconv"
	"strings"
)

// ApplyKVOverrides applies free-form -c key=value overrides.
func ApplyKVOverrides(cfg Config, overrides []string) Config {
	if len(overrides) == 0 {
		return cfg
	}
	for _, raw := range overrides {
		parts := strings.SplitN(raw, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		switch {
		case key == "precision":
			if n, err := strconv.Atoi(val); err == nil {
				cfg.Precision = n
			}
		case key == "eval_timeout":
			cfg.EvalTimeout = val
		case key == "history_path":
			cfg.HistoryPath = val
		case key == "max_history":
			if n, err := strconv.Atoi(val); err == nil {
				cfg.MaxHistory = n
			}
		case key == "haptics":
			cfg.Haptics = val
		case key == "log_level":
			cfg.LogLevel = val
		case strings.HasPrefix(key, "features."):
			name := strings.TrimPrefix(key, "features.")
			enabled, err := strconv.ParseBool(val)
			if name == "" || err != nil {
				continue
			}
			features := make(map[string]bool, len(cfg.Features)+1)
			for k, v := range cfg.Features {
				features[k] = v
			}
			features[name] = enabled
			cfg.Features = features
		}
	}
	return cfg.normalized()
}
