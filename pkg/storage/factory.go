package storage

import (
	"fmt"

	"pricecollector/config"
	"pricecollector/pkg/storage/memory"
	"pricecollector/pkg/storage/postgres"
	"pricecollector/pkg/storage/sqlite"

	"go.uber.org/zap"
)

// Open returns the Store selected by cfg.Storage.Driver.
func Open(cfg *config.Config, logger *zap.Logger) (Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite, "":
		s, err := sqlite.Open(cfg.Storage.SQLite.Path, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverPostgres:
		c, err := postgres.Open(cfg.Postgres, cfg.App.Environment, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Storage.Driver)
	}
}
