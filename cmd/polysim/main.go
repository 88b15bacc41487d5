package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/polysim/config"
	"github.com/alejandrodnm/polysim/internal/adapters/notify"
	"github.com/alejandrodnm/polysim/internal/adapters/polymarket"
	"github.com/alejandrodnm/polysim/internal/adapters/storage"
	"github.com/alejandrodnm/polysim/internal/evaluation"
	"github.com/alejandrodnm/polysim/internal/exchange"
	"github.com/alejandrodnm/polysim/internal/probability"
	"github.com/alejandrodnm/polysim/internal/simulator"
	"github.com/alejandrodnm/polysim/internal/strategy"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one simulation cycle and exit")
	report := flag.Bool("report", false, "print the evaluation report and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full tables (default: compact 1-line)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("polysim starting",
		"config", *configPath,
		"interval", cfg.Interval(),
		"balance", cfg.Sim.InitialBalance,
		"once", *once,
	)

	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "path", cfg.Storage.Path)
		os.Exit(1)
	}
	defer store.Close()

	eval, err := evaluation.New(cfg.EvaluationConfig(), store, slog.Default())
	if err != nil {
		slog.Error("failed to init evaluation", "err", err)
		os.Exit(1)
	}

	console := notify.NewConsole(*table || *report)

	if *report {
		reportEx := exchangeForReport(cfg)
		console.Report(reportEx.Account("paper-report"), eval)
		return
	}

	ex, err := exchange.New(cfg.ExchangeConfig(), slog.Default())
	if err != nil {
		slog.Error("failed to init exchange", "err", err)
		os.Exit(1)
	}

	client := polymarket.NewClient(polymarket.Config{
		GammaBase:  cfg.API.GammaBase,
		ClobBase:   cfg.API.ClobBase,
		MaxMarkets: cfg.Sim.MaxMarkets,
	}, slog.Default())

	runner := simulator.New(
		cfg.SimulatorConfig(),
		probability.New(cfg.ProbabilityConfig()),
		strategy.New(cfg.StrategyConfig()),
		ex,
		eval,
		client,
		client,
		slog.Default(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *once {
		result, err := runner.RunCycle(ctx)
		if err != nil {
			slog.Error("cycle failed", "err", err)
			os.Exit(1)
		}
		console.Cycle(result, runner.Account())
		console.Report(runner.Account(), eval)
		return
	}

	runLoop(ctx, runner, console, cfg.Interval())
	console.Report(runner.Account(), eval)
	slog.Info("polysim stopped cleanly")
}

func runLoop(ctx context.Context, runner *simulator.Runner, console *notify.Console, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		result, err := runner.RunCycle(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("cycle failed", "err", err)
		} else {
			console.Cycle(result, runner.Account())
		}

		if settled, err := runner.ResolveClosedMarkets(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("resolution sweep failed", "err", err)
		} else if settled > 0 {
			slog.Info("settled markets", "count", settled)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// exchangeForReport builds a throwaway account so the report has an account
// section even when only persisted decisions exist.
func exchangeForReport(cfg *config.Config) *exchange.Exchange {
	ex, err := exchange.New(cfg.ExchangeConfig(), slog.Default())
	if err != nil {
		slog.Error("failed to init exchange", "err", err)
		os.Exit(1)
	}
	ex.CreateAccount("paper-report", cfg.Sim.InitialBalance)
	return ex
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
