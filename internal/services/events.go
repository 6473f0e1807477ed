package services

import (
	"context"

	types "github.com/yungbote/custrisk-backend/internal/domain"
	"github.com/yungbote/custrisk-backend/internal/observability"
	"github.com/yungbote/custrisk-backend/internal/platform/logger"
)

// emit publishes ev if a publisher is configured. Failures are logged and counted, never returned.
func emit(ctx context.Context, log *logger.Logger, pub EventPublisher, metrics *observability.Metrics, ev types.Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, ev); err != nil {
		metrics.IncEventDropped(ev.Type)
		log.Warn("event publish failed", "event", ev.Type, "customer_id", ev.CustomerID, "error", err)
	}
}

// invalidateStats drops cached distributions after a write that can move them.
func invalidateStats(ctx context.Context, log *logger.Logger, cache StatsCache) {
	if cache == nil {
		return
	}
	if err := cache.Invalidate(ctx); err != nil {
		log.Warn("stats cache invalidate failed", "error", err)
	}
}
