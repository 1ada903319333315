package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"eve-marketscan/internal/logger"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	sql *sql.DB
}

// Open opens (or creates) the SQLite database at path and runs migrations.
// ":memory:" opens a private in-memory database.
func Open(path string) (*DB, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer; also keeps ":memory:" on a single connection.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{sql: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	logger.Success("DB", fmt.Sprintf("Opened %s", path))
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate() error {
	version := 0
	d.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS collection_runs (
				id              TEXT PRIMARY KEY,
				started_at      TEXT NOT NULL,
				command         TEXT NOT NULL,
				source          TEXT NOT NULL,
				location_id     INTEGER NOT NULL,
				location_name   TEXT NOT NULL,
				items           INTEGER NOT NULL,
				raw_items       INTEGER NOT NULL DEFAULT 0,
				chunks          INTEGER NOT NULL DEFAULT 0,
				failed_chunks   INTEGER NOT NULL DEFAULT 0,
				from_datapoints INTEGER NOT NULL DEFAULT 0,
				duration_ms     INTEGER NOT NULL DEFAULT 0
			);
			CREATE INDEX IF NOT EXISTS idx_runs_started ON collection_runs(started_at);
			CREATE INDEX IF NOT EXISTS idx_runs_location ON collection_runs(location_id);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
		logger.Info("DB", "Applied migration v1")
	}

	if version < 2 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS arbitrage_results (
				id                 INTEGER PRIMARY KEY AUTOINCREMENT,
				run_id             TEXT NOT NULL REFERENCES collection_runs(id),
				type_id            INTEGER NOT NULL,
				buy_location       INTEGER NOT NULL,
				buy_location_name  TEXT,
				buy_price          REAL NOT NULL,
				sell_location      INTEGER NOT NULL,
				sell_location_name TEXT,
				sell_price         REAL NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_arbitrage_run ON arbitrage_results(run_id);
			CREATE INDEX IF NOT EXISTS idx_arbitrage_type ON arbitrage_results(type_id);

			CREATE TABLE IF NOT EXISTS margin_results (
				id                     INTEGER PRIMARY KEY AUTOINCREMENT,
				run_id                 TEXT NOT NULL REFERENCES collection_runs(id),
				rank                   INTEGER NOT NULL,
				type_id                INTEGER NOT NULL,
				best_bid               REAL,
				best_ask               REAL,
				weighting              REAL NOT NULL,
				median_ratio           REAL,
				sell_volume_saturation REAL,
				sell_order_saturation  REAL
			);
			CREATE INDEX IF NOT EXISTS idx_margin_run ON margin_results(run_id);

			INSERT OR IGNORE INTO schema_version (version) VALUES (2);
		`)
		if err != nil {
			return fmt.Errorf("migration v2: %w", err)
		}
		logger.Info("DB", "Applied migration v2 (results)")
	}

	return nil
}
