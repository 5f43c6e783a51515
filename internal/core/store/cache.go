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

// CacheStats summarizes the response cache.
type CacheStats struct {
	Entries int
	Expired int
	ByCheck map[core.CheckType]int
}

// GetCachedResponse returns a cached upstream response if it is still valid.
func (s *Store) GetCachedResponse(ctx context.Context, key string, checkType core.CheckType) (*core.CachedResponse, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("cache key is required")
	}

	var (
		statusCode int
		body       sql.NullString
		checkedAt  int64
		expiresAt  int64
	)

	row := s.DB.QueryRowContext(ctx, `
		SELECT status_code, body, checked_at, expires_at
		FROM response_cache
		WHERE cache_key = ? AND check_type = ? AND expires_at > ?
	`, key, string(checkType), time.Now().UTC().Unix())

	if err := row.Scan(&statusCode, &body, &checkedAt, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch cached response: %w", err)
	}

	expires := time.Unix(expiresAt, 0).UTC()
	return &core.CachedResponse{
		StatusCode: statusCode,
		Body:       body.String,
		CheckedAt:  time.Unix(checkedAt, 0).UTC(),
		ExpiresAt:  &expires,
	}, nil
}

// SetCachedResponse stores an upstream response with a TTL. A non-positive
// TTL is a no-op.
func (s *Store) SetCachedResponse(ctx context.Context, key string, checkType core.CheckType, response *core.CachedResponse, ttl time.Duration) error {
	ctx, err := s.ready(ctx)
	if err != nil {
		return err
	}

	if ttl <= 0 || response == nil {
		return nil
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("cache key is required")
	}

	checked := response.CheckedAt
	if checked.IsZero() {
		checked = time.Now().UTC()
	}
	expires := time.Now().UTC().Add(ttl)

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO response_cache (cache_key, check_type, status_code, body, checked_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key, check_type) DO UPDATE SET
			status_code = excluded.status_code,
			body = excluded.body,
			checked_at = excluded.checked_at,
			expires_at = excluded.expires_at
	`, key, string(checkType), response.StatusCode, response.Body, checked.UTC().Unix(), expires.Unix())
	if err != nil {
		return fmt.Errorf("store cached response: %w", err)
	}

	return nil
}

// PurgeCache deletes cached responses. With expiredOnly set, only entries
// past their expiry are removed. An empty checkType matches every check.
func (s *Store) PurgeCache(ctx context.Context, checkType core.CheckType, expiredOnly bool) (int64, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return 0, err
	}

	var (
		conditions []string
		args       []any
	)
	if checkType != "" {
		conditions = append(conditions, "check_type = ?")
		args = append(args, string(checkType))
	}
	if expiredOnly {
		conditions = append(conditions, "expires_at <= ?")
		args = append(args, time.Now().UTC().Unix())
	}

	query := "DELETE FROM response_cache"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	result, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	return affected, nil
}

// CacheStats counts cached responses by check type.
func (s *Store) CacheStats(ctx context.Context) (CacheStats, error) {
	stats := CacheStats{ByCheck: map[core.CheckType]int{}}
	ctx, err := s.ready(ctx)
	if err != nil {
		return stats, err
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT check_type, COUNT(*), SUM(CASE WHEN expires_at <= ? THEN 1 ELSE 0 END)
		FROM response_cache
		GROUP BY check_type
		ORDER BY check_type
	`, time.Now().UTC().Unix())
	if err != nil {
		return stats, fmt.Errorf("cache stats: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	for rows.Next() {
		var (
			checkType string
			count     int
			expired   sql.NullInt64
		)
		if err := rows.Scan(&checkType, &count, &expired); err != nil {
			return stats, fmt.Errorf("cache stats: %w", err)
		}
		stats.ByCheck[core.CheckType(checkType)] = count
		stats.Entries += count
		stats.Expired += int(expired.Int64)
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("cache stats: %w", err)
	}
	return stats, nil
}
