package postgres

import (
	"context"
	"fmt"

	"pricecollector/config"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Client struct {
	DB     *gorm.DB
	logger *zap.Logger
}

func NewClient(dsn string, logger *zap.Logger) (*Client, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return New(db, logger), nil
}

// New wraps an existing gorm connection.
func New(db *gorm.DB, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{DB: db, logger: logger}
}

// Open connects to Postgres, optionally creates the database, applies pool limits and runs AutoMigrate.
func Open(cfg config.PostgresConfig, env string, logger *zap.Logger) (*Client, error) {
	if cfg.CreateDB {
		if err := CreateDatabase(cfg, env); err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	client, err := NewClient(cfg.DSN(env), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	sqlDB, err := client.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve raw DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := client.AutoMigrate(); err != nil {
		client.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	client.logger.Info("postgres store opened", zap.String("dbname", cfg.DBName))
	return client, nil
}

func (p *Client) AutoMigrate() error {
	if err := p.DB.AutoMigrate(&DailyPriceRecord{}, &InstantPriceRecord{}); err != nil {
		return fmt.Errorf("auto-migrate price tables: %w", err)
	}
	return nil
}

func (p *Client) IsHealthy(ctx context.Context) bool {
	db, err := p.DB.DB()
	if err != nil {
		return false
	}
	return db.PingContext(ctx) == nil
}

func (p *Client) Close() error {
	db, err := p.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve raw DB: %w", err)
	}
	return db.Close()
}
