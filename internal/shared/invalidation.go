package shared

import (
	"context"
	"log/slog"
)

// CacheInvalidator drops cached read models after a write.
type CacheInvalidator interface {
	Bump(ctx context.Context) error
}

// BumpCache invalidates and logs failures; stale reports expire on their own TTL.
func BumpCache(ctx context.Context, inv CacheInvalidator, logger *slog.Logger) {
	if inv == nil {
		return
	}
	if err := inv.Bump(ctx); err != nil && logger != nil {
		logger.Warn("cache invalidation failed", slog.Any("error", err))
	}
}
