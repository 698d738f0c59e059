package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pricecollector/config"
	"pricecollector/internal/app"
	"pricecollector/internal/collector"
	"pricecollector/logger"
	"pricecollector/pkg/price"

	"go.uber.org/zap"

	_ "time/tzdata"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitStartup = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to config file (default: search ./config)")
	mode := flag.String("mode", "current", "current | daily | recovery | range | prune")
	fromFlag := flag.String("from", "", "first date of a range run (YYYY-MM-DD)")
	toFlag := flag.String("to", "", "last date of a range run (YYYY-MM-DD)")
	flag.Parse()

	// viper config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		return exitStartup
	}

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		return exitStartup
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, log, nil)
	if err != nil {
		log.Error("startup failed", zap.Error(err))
		return exitStartup
	}
	defer a.Close()

	log = log.With(zap.String("mode", *mode))

	switch *mode {
	case "current":
		snap, err := a.Sampler.Sample(ctx)
		if err != nil {
			log.Error("current price collection failed", zap.Error(err))
			return exitFailure
		}
		if _, err := a.Prune(ctx, snap.Timestamp); err != nil {
			log.Warn("prune failed", zap.Error(err))
		}
		return exitOK

	case "prune":
		if _, err := a.Prune(ctx, time.Now()); err != nil {
			log.Error("prune failed", zap.Error(err))
			return exitFailure
		}
		return exitOK

	case "daily":
		return finish(log, a, runReport(a.Backfiller.Daily(ctx)))

	case "recovery":
		return finish(log, a, runReport(a.Backfiller.Recover(ctx)))

	case "range":
		dates, err := rangeDates(*fromFlag, *toFlag)
		if err != nil {
			log.Error("invalid range", zap.Error(err))
			return exitStartup
		}
		return finish(log, a, runReport(a.Backfiller.Run(ctx, collector.ModeRange, dates)))

	default:
		log.Error("unknown mode")
		flag.Usage()
		return exitStartup
	}
}

type reportResult struct {
	report *collector.Report
	err    error
}

func runReport(r *collector.Report, err error) reportResult {
	return reportResult{report: r, err: err}
}

// finish writes the run report and maps it to an exit status.
func finish(log *zap.Logger, a *app.App, res reportResult) int {
	if res.report != nil {
		path, err := a.WriteReport(res.report)
		if err != nil {
			log.Warn("failed to write report", zap.Error(err))
		} else {
			log.Info("report written", zap.String("path", path))
		}
	}
	if res.err != nil {
		log.Error("backfill interrupted", zap.Error(res.err))
		return exitFailure
	}
	if res.report.HasFailures() {
		log.Error("backfill finished with failures", zap.Int("failed", res.report.Failed))
		return exitFailure
	}
	return exitOK
}

func rangeDates(fromStr, toStr string) ([]price.Date, error) {
	if fromStr == "" || toStr == "" {
		return nil, fmt.Errorf("range mode requires -from and -to")
	}
	from, err := price.ParseDate(fromStr)
	if err != nil {
		return nil, err
	}
	to, err := price.ParseDate(toStr)
	if err != nil {
		return nil, err
	}
	return price.DatesBetween(from, to)
}
