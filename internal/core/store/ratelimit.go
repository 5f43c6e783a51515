package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/namelens/entryguard/internal/core"
)

const rateLimitColumns = "endpoint, request_count, window_start, backoff_until, last_429_at"

// GetRateLimit returns the stored limiter state for endpoint, or nil when the
// host has never been called.
func (s *Store) GetRateLimit(ctx context.Context, endpoint string) (*core.RateLimitState, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	if endpoint = strings.TrimSpace(endpoint); endpoint == "" {
		return nil, errors.New("endpoint is required")
	}

	entry, err := scanRateLimit(s.DB.QueryRowContext(ctx,
		"SELECT "+rateLimitColumns+" FROM rate_limits WHERE endpoint = ?", endpoint))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("fetch rate limit: %w", err)
	}
	return &entry.State, nil
}

// UpdateRateLimit upserts the limiter state for endpoint.
func (s *Store) UpdateRateLimit(ctx context.Context, endpoint string, state *core.RateLimitState) error {
	ctx, err := s.ready(ctx)
	if err != nil {
		return err
	}
	if endpoint = strings.TrimSpace(endpoint); endpoint == "" {
		return errors.New("endpoint is required")
	}
	if state == nil {
		return errors.New("rate limit state is required")
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO rate_limits (`+rateLimitColumns+`) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(endpoint) DO UPDATE SET
			request_count = excluded.request_count,
			window_start  = excluded.window_start,
			backoff_until = excluded.backoff_until,
			last_429_at   = excluded.last_429_at`,
		endpoint,
		state.RequestCount,
		state.WindowStart.UTC().Unix(),
		unixOrNull(state.BackoffUntil),
		unixOrNull(state.Last429At),
	)
	if err != nil {
		return fmt.Errorf("store rate limit: %w", err)
	}
	return nil
}

func scanRateLimit(row interface{ Scan(...any) error }) (RateLimitEntry, error) {
	var (
		entry              RateLimitEntry
		window             int64
		backoff, last429At sql.NullInt64
	)
	if err := row.Scan(&entry.Endpoint, &entry.State.RequestCount, &window, &backoff, &last429At); err != nil {
		return RateLimitEntry{}, err
	}
	entry.State.WindowStart = time.Unix(window, 0).UTC()
	entry.State.BackoffUntil = timeOrNil(backoff)
	entry.State.Last429At = timeOrNil(last429At)
	return entry, nil
}

// Timestamps are stored as unix seconds; NULL means unset.

func unixOrNull(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UTC().Unix(), Valid: true}
}

func timeOrNil(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}
