package main

import (
	"flag"
	"fmt"
	"os"

	"calc-cli/internal/events"
	"calc-cli/internal/logger"
	"calc-cli/internal/tui"
)

var log = logger.Named("cli")

func main() {
	logger.Configure()
	if logFile, _, err := logger.SetupFile(logger.DefaultLogPath()); err != nil {
		log.Warnf("failed to initialize log file: %v", err)
	} else {
		defer logFile.Close()
	}

	root, rest, err := parseRootArgs(os.Args[1:])
	if err != nil {
		log.Fatalf("parse args: %v", err)
	}
	if len(rest) > 0 {
		switch rest[0] {
		case "eval":
			evalMain(root, rest[1:])
			return
		case "history":
			historyMain(root, rest[1:])
			return
		case "features":
			featuresMain(root, rest[1:])
			return
		case "config":
			configMain(root, rest[1:])
			return
		case "completion":
			completionMain(rest[1:])
			return
		}
	}

	runInteractive(root, rest)
}

func runInteractive(root rootArgs, args []string) {
	fs := flag.NewFlagSet("calc-cli", flag.ExitOnError)
	var cfgPath string
	var overrides stringSlice
	fs.StringVar(&cfgPath, "config", "", "Path to config file (default ~/.calc/config.toml)")
	fs.Var(&overrides, "c", "Override config value key=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parse args: %v", err)
	}
	if fs.NArg() > 0 {
		log.Fatalf("unknown command %q", fs.Arg(0))
	}

	cfg, err := loadConfig(root.configPath(cfgPath), prependOverrides(root.overrides, []string(overrides)))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	bus := events.NewBus()
	defer bus.Close()
	ev, err := newEvaluator(cfg, bus, true)
	if err != nil {
		log.Warnf("history unavailable: %v", err)
	}

	feedback, tty := newFeedback(cfg, openTTY)
	defer tty.Close()

	res, err := tui.Run(tui.Options{
		Evaluator: ev,
		Events:    bus,
		Feedback:  feedback,
		Features:  cfg.Features,
	})
	if err != nil {
		log.Fatalf("program exit: %v", err)
	}
	printExitSummary(res)
}

func printExitSummary(res tui.Result) {
	if res.Expression == "" {
		return
	}
	if res.Result != "" {
		fmt.Printf("%s = %s\n", res.Expression, res.Result)
		return
	}
	fmt.Println(res.Expression)
}
