package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pricecollector/pkg/price"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Store persists prices to a SQLite database file.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

type dailyRow struct {
	Symbol    string  `db:"symbol"`
	Date      string  `db:"date"`
	Price     float64 `db:"price_jpy"`
	CreatedAt int64   `db:"created_at"` // unix ms
}

type instantRow struct {
	Symbol    string  `db:"symbol"`
	Price     float64 `db:"price_jpy"`
	Timestamp int64   `db:"timestamp"` // unix ms
}

// Open opens (or creates) the database at path and runs migrations.
// ":memory:" gives a private in-memory database.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: writes are serialized and ":memory:" stays a single database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("sqlite store opened", zap.String("path", path))
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS daily_prices (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol     TEXT    NOT NULL CHECK (symbol <> ''),
			date       TEXT    NOT NULL,
			price_jpy  REAL    NOT NULL,
			created_at INTEGER NOT NULL,
			UNIQUE(symbol, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_daily_symbol_date ON daily_prices(symbol, date)`,

		`CREATE TABLE IF NOT EXISTS current_prices (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol    TEXT    NOT NULL CHECK (symbol <> ''),
			price_jpy REAL    NOT NULL,
			timestamp INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_current_symbol_ts ON current_prices(symbol, timestamp)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *Store) UpsertDailyPrice(ctx context.Context, p price.DailyPrice) error {
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	row := dailyRow{
		Symbol:    p.Asset.Meta().DBValue,
		Date:      p.Date.String(),
		Price:     p.Price,
		CreatedAt: createdAt.UnixMilli(),
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO daily_prices (symbol, date, price_jpy, created_at)
		VALUES (:symbol, :date, :price_jpy, :created_at)
		ON CONFLICT(symbol, date) DO UPDATE SET
			price_jpy  = excluded.price_jpy,
			created_at = excluded.created_at`, row)
	if err != nil {
		return fmt.Errorf("upsert daily price %s %s: %w", p.Asset, p.Date, err)
	}
	return nil
}

func (s *Store) DailyPriceExists(ctx context.Context, asset price.Asset, date price.Date) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(1) FROM daily_prices WHERE symbol = ? AND date = ?`,
		asset.Meta().DBValue, date.String())
	if err != nil {
		return false, fmt.Errorf("check daily price %s %s: %w", asset, date, err)
	}
	return count > 0, nil
}

func (s *Store) QueryDailyPrices(ctx context.Context, asset price.Asset, from, to price.Date) ([]price.DailyPrice, error) {
	var rows []dailyRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT symbol, date, price_jpy, created_at
		FROM daily_prices
		WHERE symbol = ? AND date BETWEEN ? AND ?
		ORDER BY date ASC`,
		asset.Meta().DBValue, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("query daily prices %s: %w", asset, err)
	}

	out := make([]price.DailyPrice, 0, len(rows))
	for _, r := range rows {
		d, err := price.ParseDate(r.Date)
		if err != nil {
			return nil, fmt.Errorf("corrupt date %q for %s: %w", r.Date, asset, err)
		}
		out = append(out, price.DailyPrice{
			Asset:     asset,
			Date:      d,
			Price:     r.Price,
			CreatedAt: time.UnixMilli(r.CreatedAt).UTC(),
		})
	}
	return out, nil
}

func (s *Store) AppendInstantPrices(ctx context.Context, obs []price.Observation) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx,
		`INSERT INTO current_prices (symbol, price_jpy, timestamp) VALUES (:symbol, :price_jpy, :timestamp)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range obs {
		row := instantRow{
			Symbol:    o.Asset.Meta().DBValue,
			Price:     o.Price,
			Timestamp: o.Timestamp.UnixMilli(),
		}
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return fmt.Errorf("insert instant price %s: %w", o.Asset, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit instant prices: %w", err)
	}
	return nil
}

func (s *Store) LatestInstantPrice(ctx context.Context, asset price.Asset) (price.Observation, bool, error) {
	var row instantRow
	err := s.db.GetContext(ctx, &row, `
		SELECT symbol, price_jpy, timestamp
		FROM current_prices
		WHERE symbol = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT 1`, asset.Meta().DBValue)
	if errors.Is(err, sql.ErrNoRows) {
		return price.Observation{}, false, nil
	}
	if err != nil {
		return price.Observation{}, false, fmt.Errorf("latest instant price %s: %w", asset, err)
	}

	return price.Observation{
		Asset:     asset,
		Price:     row.Price,
		Timestamp: time.UnixMilli(row.Timestamp).UTC(),
	}, true, nil
}

func (s *Store) PruneInstantPrices(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM current_prices WHERE timestamp < ?`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune instant prices: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune instant prices: %w", err)
	}
	if n > 0 {
		s.logger.Info("pruned instant prices", zap.Int64("rows", n), zap.Time("before", before))
	}
	return n, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
