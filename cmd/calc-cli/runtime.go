package main

import (
	"fmt"
	"io"
	"os"

	"calc-cli/internal/config"
	"calc-cli/internal/evaluator"
	"calc-cli/internal/events"
	"calc-cli/internal/features"
	"calc-cli/internal/haptic"
	"calc-cli/internal/history"
	"calc-cli/internal/logger"
)

// openTTY 打开控制终端。BEL 不能写 stdout，否则会与界面渲染交错。
func openTTY() (io.WriteCloser, error) {
	return os.OpenFile("/dev/tty", os.O_WRONLY, 0)
}

// newFeedback 按 haptics 配置构造反馈；终端打不开时退化为 Nop。
// 返回的 closer 总是非 nil。
func newFeedback(cfg config.Config, open func() (io.WriteCloser, error)) (haptic.Feedback, io.Closer) {
	if cfg.Haptics != config.HapticsBell {
		return haptic.Nop{}, io.NopCloser(nil)
	}
	tty, err := open()
	if err != nil {
		log.WithError(err).Warn("terminal bell unavailable, haptics disabled")
		return haptic.Nop{}, io.NopCloser(nil)
	}
	return haptic.NewBell(tty), tty
}

// loadConfig 读取配置文件并依次应用 -c 覆盖。
func loadConfig(path string, overrides []string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	cfg = config.ApplyKVOverrides(cfg, overrides)
	if cfg.LogLevel != "" {
		if err := logger.SetLevel(cfg.LogLevel); err != nil {
			log.Warnf("ignoring log_level: %v", err)
		}
	}
	return cfg, nil
}

// historyStore returns nil when persistence is disabled.
func historyStore(cfg config.Config) *history.Store {
	if !features.Enabled(cfg.Features, features.HistoryPersist) {
		return nil
	}
	path := cfg.ResolvedHistoryPath()
	if path == "" {
		return nil
	}
	return history.NewStore(path)
}

// newEvaluator always returns a usable evaluator; the error reports a failed restore.
func newEvaluator(cfg config.Config, bus *events.Bus, persist bool) (*evaluator.Evaluator, error) {
	opts := evaluator.Options{
		Precision:  cfg.Precision,
		Timeout:    cfg.Timeout(),
		MaxEntries: cfg.MaxHistory,
		Bus:        bus,
	}
	if persist {
		opts.Store = historyStore(cfg)
	}
	ev := evaluator.New(opts)
	if err := ev.Restore(); err != nil {
		return ev, fmt.Errorf("restore: %w", err)
	}
	return ev, nil
}
