package store

import (
	"context"
	"fmt"
)

// migration is one forward-only schema step. Versions are applied in order
// and recorded in schema_migrations.
type migration struct {
	version    int
	name       string
	statements []string
}

var migrations = []migration{
	{
		version: 1,
		name:    "response cache",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS response_cache (
				cache_key TEXT NOT NULL,
				check_type TEXT NOT NULL,
				status_code INTEGER NOT NULL,
				body TEXT,
				checked_at INTEGER NOT NULL,
				expires_at INTEGER NOT NULL,
				PRIMARY KEY (cache_key, check_type)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_response_cache_expires ON response_cache(expires_at)`,
		},
	},
	{
		version: 2,
		name:    "rate limits",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS rate_limits (
				endpoint TEXT PRIMARY KEY,
				request_count INTEGER NOT NULL DEFAULT 0,
				window_start INTEGER NOT NULL,
				backoff_until INTEGER,
				last_429_at INTEGER
			)`,
		},
	},
}

// Migrate applies every migration newer than the recorded schema version.
// Running it again on an up-to-date database is a no-op.
func (s *Store) Migrate(ctx context.Context) error {
	ctx, err := s.ready(ctx)
	if err != nil {
		return err
	}

	if _, err := s.DB.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

// SchemaVersion returns the highest applied migration, or zero on a fresh
// database.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return 0, err
	}

	var version int
	if err := s.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

func (s *Store) apply(ctx context.Context, m migration) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range m.statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.version, m.name); err != nil {
		return err
	}
	return tx.Commit()
}
