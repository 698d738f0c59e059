package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pricecollector/config"
	"pricecollector/internal/api"
	"pricecollector/internal/app"
	"pricecollector/internal/scheduler"
	"pricecollector/logger"

	"go.uber.org/zap"

	_ "time/tzdata"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: search ./config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(2)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		os.Exit(2)
	}
	defer log.Sync()

	if err := serve(cfg, log); err != nil {
		log.Error("server failed", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func serve(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := api.NewHub(log.Named("stream"))
	defer hub.Close()

	a, err := app.New(cfg, log, hub)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Schedule.Enabled {
		sched := scheduler.New(a.Location, log.Named("scheduler"))
		jobs := []struct {
			name string
			spec string
			job  scheduler.Job
		}{
			{scheduler.JobSample, cfg.Schedule.SampleCron,
				scheduler.SampleJob(a.Sampler, a.Store, cfg.Collector.Retention, log)},
			{scheduler.JobDaily, cfg.Schedule.DailyCron,
				scheduler.BackfillJob(a.Backfiller.Daily, cfg.Collector.ReportDir, a.Location, log)},
			{scheduler.JobRecovery, cfg.Schedule.RecoveryCron,
				scheduler.BackfillJob(a.Backfiller.Recover, cfg.Collector.ReportDir, a.Location, log)},
		}
		for _, j := range jobs {
			if err := sched.Add(j.name, j.spec, j.job); err != nil {
				return err
			}
		}
		sched.Start()
		defer sched.Stop()
	}

	srv := api.NewServer(a.Store, a.Cache, hub, cfg.Server, log.Named("api"))
	srv.StartCleanup(ctx, time.Minute)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("api listening", zap.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
