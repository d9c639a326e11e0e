// internal/storage/postgres/connection.go
package postgres

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/holoworlds/tradingmonitor/internal/config"
	"github.com/holoworlds/tradingmonitor/pkg/logger"
)

// Connect opens a pooled connection to Postgres and ensures the schema this
// package needs exists. Migration failures are logged, not fatal — the
// Supervisor still has the Redis snapshot cache when persistence degrades.
func Connect(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxConnLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	if err := ensureSchema(db); err != nil {
		logger.Warn("⚠️ postgres: не удалось применить схему: %v", err)
	}

	logger.Info("✅ подключение к PostgreSQL установлено")
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS strategies (
	id          TEXT PRIMARY KEY,
	config      JSONB NOT NULL,
	position    JSONB NOT NULL,
	stats       JSONB NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS order_log (
	id            BIGSERIAL PRIMARY KEY,
	strategy_id   TEXT NOT NULL,
	strategy_name TEXT NOT NULL,
	symbol        TEXT NOT NULL,
	action        TEXT NOT NULL,
	position      TEXT NOT NULL,
	payload       JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

func ensureSchema(db *sqlx.DB) error {
	_, err := db.Exec(schema)
	return err
}
