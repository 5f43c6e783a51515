package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/namelens/entryguard/internal/core"
)

// RateLimitEntry is the persisted limiter state of one upstream host.
type RateLimitEntry struct {
	Endpoint string
	State    core.RateLimitState
}

// BackingOff reports whether the host is inside a backoff it imposed.
func (e RateLimitEntry) BackingOff(now time.Time) bool {
	return e.State.BackoffRemaining(now) > 0
}

// RateLimitQuery selects limiter rows for the admin commands. All wins over
// Endpoint, and Endpoint over Prefix.
type RateLimitQuery struct {
	All      bool
	Endpoint string
	Prefix   string
}

var errNoSelector = errors.New("must specify --all, --endpoint, or --prefix")

// Validate fails when no selector is set.
func (q RateLimitQuery) Validate() error {
	_, _, err := q.whereClause()
	return err
}

func (q RateLimitQuery) whereClause() (string, []any, error) {
	endpoint, prefix := strings.TrimSpace(q.Endpoint), strings.TrimSpace(q.Prefix)
	switch {
	case q.All:
		return "", nil, nil
	case endpoint != "":
		return "WHERE endpoint = ?", []any{endpoint}, nil
	case prefix != "":
		return "WHERE endpoint LIKE ?", []any{prefix + "%"}, nil
	default:
		return "", nil, errNoSelector
	}
}

// ListRateLimits returns matching limiter rows ordered by endpoint.
func (s *Store) ListRateLimits(ctx context.Context, q RateLimitQuery) ([]RateLimitEntry, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	where, args, err := q.whereClause()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx,
		"SELECT "+rateLimitColumns+" FROM rate_limits "+where+" ORDER BY endpoint", args...)
	if err != nil {
		return nil, fmt.Errorf("list rate limits: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	entries := []RateLimitEntry{}
	for rows.Next() {
		entry, err := scanRateLimit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rate limit: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// CountRateLimits counts matching limiter rows.
func (s *Store) CountRateLimits(ctx context.Context, q RateLimitQuery) (int, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return 0, err
	}
	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	var count int
	if err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM rate_limits "+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count rate limits: %w", err)
	}
	return count, nil
}

// ResetRateLimits deletes matching limiter rows, which clears both the
// request window and any backoff.
func (s *Store) ResetRateLimits(ctx context.Context, q RateLimitQuery) (int64, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return 0, err
	}
	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	res, err := s.DB.ExecContext(ctx, "DELETE FROM rate_limits "+where, args...)
	if err != nil {
		return 0, fmt.Errorf("reset rate limits: %w", err)
	}
	return res.RowsAffected()
}
