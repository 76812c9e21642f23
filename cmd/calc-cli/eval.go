package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"calc-cli/internal/config"
	"calc-cli/internal/evaluator"
)

type evalArgs struct {
	cfgPath   string
	overrides stringSlice
	precision int
	timeout   time.Duration
	noHistory bool
}

func evalMain(root rootArgs, args []string) {
	fs := flag.NewFlagSet("eval", flag.ExitOnError)
	var cli evalArgs
	fs.StringVar(&cli.cfgPath, "config", "", "Path to config file")
	fs.Var(&cli.overrides, "c", "Override config value key=value (repeatable)")
	fs.IntVar(&cli.precision, "precision", 0, "Significant decimal digits (default from config)")
	fs.DurationVar(&cli.timeout, "timeout", 0, "Evaluation timeout (default from config)")
	fs.BoolVar(&cli.noHistory, "no-history", false, "Do not record the result in history")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parse eval args: %v", err)
	}
	expr := strings.TrimSpace(strings.Join(fs.Args(), " "))

	cfg, err := loadConfig(root.configPath(cli.cfgPath), prependOverrides(root.overrides, []string(cli.overrides)))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := runEval(context.Background(), os.Stdout, cfg, cli, expr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runEval(ctx context.Context, w io.Writer, cfg config.Config, cli evalArgs, expr string) error {
	if expr == "" {
		return evaluator.ErrEmptyExpression
	}
	if cli.precision > 0 {
		cfg.Precision = cli.precision
	}
	if cli.timeout > 0 {
		cfg.EvalTimeout = cli.timeout.String()
	}
	ev, err := newEvaluator(cfg, nil, !cli.noHistory)
	if err != nil {
		log.Warnf("history unavailable: %v", err)
	}
	ev.SetMain(expr)
	rec, err := ev.Commit(ctx)
	if err != nil {
		return describeEvalError(expr, err)
	}
	log.WithField("event", "eval").WithField("id", rec.ID).Debugf("%s = %s", rec.Expr, rec.Result)
	_, err = fmt.Fprintln(w, rec.Result)
	return err
}

// describeEvalError 在表达式下方标出出错位置。
func describeEvalError(expr string, err error) error {
	var ee *evaluator.EvalError
	if !errors.As(err, &ee) || ee.Pos < 0 || ee.Pos > len(expr) {
		return err
	}
	caret := strings.Repeat(" ", len([]rune(expr[:ee.Pos]))) + "^"
	return fmt.Errorf("%w\n  %s\n  %s", err, expr, caret)
}
