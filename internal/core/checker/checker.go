package checker

import (
	"context"
	"time"

	"github.com/namelens/entryguard/internal/core"
)

// ResponseStore caches upstream responses between runs.
type ResponseStore interface {
	GetCachedResponse(ctx context.Context, key string, checkType core.CheckType) (*core.CachedResponse, error)
	SetCachedResponse(ctx context.Context, key string, checkType core.CheckType, response *core.CachedResponse, ttl time.Duration) error
}
