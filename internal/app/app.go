package app

import (
	"context"
	"fmt"
	"time"

	"pricecollector/config"
	"pricecollector/internal/cache"
	"pricecollector/internal/collector"
	"pricecollector/pkg/coingecko"
	"pricecollector/pkg/storage"

	"go.uber.org/zap"
)

// App holds the collector's wired components.
type App struct {
	Config     *config.Config
	Location   *time.Location
	Store      storage.Store
	Cache      *cache.FileCache
	Client     *coingecko.Client
	Averager   *collector.Averager
	Backfiller *collector.Backfiller
	Sampler    *collector.Sampler

	logger *zap.Logger
}

// New opens the configured store and builds the fetch client, the averager, the
// backfiller and the sampler on top of it. publisher may be nil.
func New(cfg *config.Config, logger *zap.Logger, publisher collector.Publisher) (*App, error) {
	loc, err := cfg.App.Location()
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	client := coingecko.NewClient(cfg.CoinGecko.BaseURL,
		coingecko.WithTimeout(cfg.CoinGecko.Timeout),
		coingecko.WithRetries(cfg.CoinGecko.MaxRetries, cfg.CoinGecko.BaseDelay),
		coingecko.WithAPIKey(cfg.CoinGecko.APIKey, cfg.CoinGecko.Pro),
		coingecko.WithLogger(logger.Named("coingecko")),
	)

	fileCache := cache.NewFileCache(cfg.Collector.CacheFile)
	averager := collector.NewAverager(client, loc, logger.Named("averager"))

	backfiller := collector.NewBackfiller(store, averager, loc, logger.Named("backfill"),
		collector.WithRequestInterval(cfg.Collector.RequestInterval),
		collector.WithRecoveryDays(cfg.Collector.RecoveryDays),
	)

	samplerOpts := []collector.SamplerOption{collector.WithCache(fileCache)}
	if publisher != nil {
		samplerOpts = append(samplerOpts, collector.WithPublisher(publisher))
	}
	sampler := collector.NewSampler(client, store, logger.Named("sampler"), samplerOpts...)

	return &App{
		Config:     cfg,
		Location:   loc,
		Store:      store,
		Cache:      fileCache,
		Client:     client,
		Averager:   averager,
		Backfiller: backfiller,
		Sampler:    sampler,
		logger:     logger,
	}, nil
}

// Prune deletes instant prices older than the configured retention.
func (a *App) Prune(ctx context.Context, now time.Time) (int64, error) {
	if a.Config.Collector.Retention <= 0 {
		return 0, nil
	}
	cutoff := now.Add(-a.Config.Collector.Retention)
	n, err := a.Store.PruneInstantPrices(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune instant prices: %w", err)
	}
	a.logger.Info("pruned instant prices", zap.Int64("deleted", n), zap.Time("before", cutoff))
	return n, nil
}

// WriteReport stores a backfill report under the configured report directory.
func (a *App) WriteReport(r *collector.Report) (string, error) {
	return collector.WriteReport(a.Config.Collector.ReportDir, r, a.Location)
}

func (a *App) Close() error {
	return a.Store.Close()
}
