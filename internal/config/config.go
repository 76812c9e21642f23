package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultPrecision   = 40
	DefaultEvalTimeout = 5 * time.Second
	DefaultMaxHistory  = 500

	HapticsBell = "bell"
	HapticsOff  = "off"
)

// Config is the only persisted config file schema.
type Config struct {
	// Precision 为十进制有效位数。
	Precision   int             `toml:"precision"`
	EvalTimeout string          `toml:"eval_timeout"`
	HistoryPath string          `toml:"history_path,omitempty"`
	MaxHistory  int             `toml:"max_history"`
	Haptics     string          `toml:"haptics"`
	LogLevel    string          `toml:"log_level,omitempty"`
	Features    map[string]bool `toml:"features,omitempty"`
	Source      string          `toml:"-"`
}

func Default() Config {
	return Config{
		Precision:   DefaultPrecision,
		EvalTimeout: DefaultEvalTimeout.String(),
		MaxHistory:  DefaultMaxHistory,
		Haptics:     HapticsBell,
	}
}

func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".calc")
}

func DefaultPath() string {
	d := Dir()
	if d == "" {
		return ""
	}
	return filepath.Join(d, "config.toml")
}

func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}
	if path == "" {
		return cfg, errors.New("config path is empty and $HOME is not set")
	}
	cfg.Source = path

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyEnv(&cfg)
			return cfg.normalized(), nil
		}
		return cfg, err
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return cfg, err
	}
	applyEnv(&cfg)
	return cfg.normalized(), nil
}

func applyEnv(cfg *Config) {
	if env := strings.TrimSpace(os.Getenv("CALC_PRECISION")); env != "" {
		if n, err := strconv.Atoi(env); err == nil {
			cfg.Precision = n
		}
	}
	if env := strings.TrimSpace(os.Getenv("CALC_HISTORY_PATH")); env != "" {
		cfg.HistoryPath = env
	}
}

func (c Config) normalized() Config {
	if c.Precision <= 0 {
		c.Precision = DefaultPrecision
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = DefaultMaxHistory
	}
	switch c.Haptics {
	case HapticsBell, HapticsOff:
	default:
		c.Haptics = HapticsBell
	}
	return c
}

// Timeout returns the evaluation timeout, falling back to the default on parse errors.
func (c Config) Timeout() time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(c.EvalTimeout))
	if err != nil || d <= 0 {
		return DefaultEvalTimeout
	}
	return d
}

// ResolvedHistoryPath returns HistoryPath or ~/.calc/history.jsonl.
func (c Config) ResolvedHistoryPath() string {
	if strings.TrimSpace(c.HistoryPath) != "" {
		return c.HistoryPath
	}
	d := Dir()
	if d == "" {
		return ""
	}
	return filepath.Join(d, "history.jsonl")
}
