package services

import (
	"context"
	"fmt"
	"time"

	types "github.com/yungbote/custrisk-backend/internal/domain"
)

const (
	DefaultPageLimit    = 100
	MaxPageLimit        = 500
	DefaultHistoryLimit = 10
	DefaultDueSoonDays  = 7
)

// Page is an offset window over an ordered listing.
type Page struct {
	Skip  int
	Limit int
}

// Normalize applies the default limit and rejects out-of-range windows.
func (p Page) Normalize() (Page, error) {
	if p.Limit == 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Skip < 0 {
		return p, fmt.Errorf("%w: skip must be >= 0", types.ErrInvalidValue)
	}
	if p.Limit < 1 || p.Limit > MaxPageLimit {
		return p, fmt.Errorf("%w: limit must be between 1 and %d", types.ErrInvalidValue, MaxPageLimit)
	}
	return p, nil
}

// StatsCache holds computed risk distributions keyed by generation and scope.
// Invalidate moves the cache to a new generation, so a Set carrying a generation
// read before the invalidation can never be served afterwards.
type StatsCache interface {
	Generation(ctx context.Context) (int64, error)
	Get(ctx context.Context, gen int64, scope string) (*types.RiskDistribution, bool, error)
	Set(ctx context.Context, gen int64, scope string, dist *types.RiskDistribution) error
	Invalidate(ctx context.Context) error
}

// EventPublisher receives events after the write that produced them has committed.
type EventPublisher interface {
	Publish(ctx context.Context, ev types.Event) error
}

// Clock returns the current instant. Services store UTC truncated to microseconds.
type Clock func() time.Time

func SystemClock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func (c Clock) now() time.Time {
	if c == nil {
		return SystemClock()
	}
	return c().UTC().Truncate(time.Microsecond)
}
