package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// DB is the Postgres handle used for the download audit trail.
type DB struct {
	*sql.DB
}

func Connect(ctx context.Context, url string) (*DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	return &DB{db}, nil
}

const auditSchema = `
CREATE TABLE IF NOT EXISTS download_events (
	id          BIGSERIAL PRIMARY KEY,
	event_id    UUID NOT NULL UNIQUE,
	event_type  TEXT NOT NULL,
	slug        TEXT NOT NULL DEFAULT '',
	quality     TEXT NOT NULL DEFAULT '',
	service     TEXT NOT NULL DEFAULT '',
	reason      TEXT NOT NULL DEFAULT '',
	client_ip   TEXT NOT NULL DEFAULT '',
	user_agent  TEXT NOT NULL DEFAULT '',
	context     JSONB NOT NULL DEFAULT '{}'::jsonb,
	occurred_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS download_events_slug_idx ON download_events (slug, occurred_at DESC);
CREATE INDEX IF NOT EXISTS download_events_time_idx ON download_events (occurred_at);

CREATE TABLE IF NOT EXISTS download_daily_stats (
	stat_date       DATE PRIMARY KEY,
	initiated       INTEGER NOT NULL DEFAULT 0,
	retrieved       INTEGER NOT NULL DEFAULT 0,
	failed          INTEGER NOT NULL DEFAULT 0,
	tokens_granted  INTEGER NOT NULL DEFAULT 0,
	tokens_blocked  INTEGER NOT NULL DEFAULT 0,
	unique_clients  INTEGER NOT NULL DEFAULT 0,
	top_service     TEXT NOT NULL DEFAULT '',
	computed_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate creates the audit table if it does not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, auditSchema); err != nil {
		return fmt.Errorf("migrate audit schema: %w", err)
	}
	return nil
}
