package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const counterTTL = 24 * time.Hour

// Counter is the storage primitive behind the limiter. The increment must be
// atomic at the storage layer; a read-modify-write implementation would let
// concurrent requests slip past the quota.
type Counter interface {
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
}

// Info is quota telemetry for the current window. When Degraded is set the
// counter store was unreachable and the numbers are best-effort, not a
// guarantee.
type Info struct {
	Limit     int
	Current   int
	Remaining int
	ResetAt   time.Time
	Degraded  bool
}

// TierLimiter enforces per-tier daily quotas keyed by (user, UTC calendar day).
type TierLimiter struct {
	counter     Counter
	tiers       map[string]int
	defaultTier string
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a TierLimiter.
type Option func(*TierLimiter)

// WithClock overrides the limiter's clock.
func WithClock(now func() time.Time) Option {
	return func(l *TierLimiter) { l.now = now }
}

// New creates a TierLimiter. Unknown tiers fall back to the default tier's
// quota (the most restrictive one).
func New(counter Counter, tiers map[string]int, defaultTier string, logger *slog.Logger, opts ...Option) *TierLimiter {
	l := &TierLimiter{
		counter:     counter,
		tiers:       tiers,
		defaultTier: defaultTier,
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckAndConsume decides whether to admit one request for the user and, if
// admitted, consumes one unit of today's quota. The consume is a single atomic
// increment-with-expiry; after the quota is reached the counter may keep
// climbing within the window, which is harmless since the key expires with it.
func (l *TierLimiter) CheckAndConsume(ctx context.Context, userID, tier string) (bool, Info) {
	limit, ok := l.tiers[tier]
	if !ok {
		limit = l.tiers[l.defaultTier]
	}

	now := l.now().UTC()
	resetAt := nextUTCMidnight(now)
	key := counterKey(userID, now)

	count, err := l.counter.IncrWithExpiry(ctx, key, counterTTL)
	if err != nil {
		// Counter store unreachable: fail open. Admit the request and flag
		// the telemetry so callers know the numbers are not authoritative.
		l.logger.Error("Rate limit check failed, admitting request",
			slog.String("user_id", userID),
			slog.String("tier", tier),
			slog.Any("error", err),
		)
		return true, Info{
			Limit:    limit,
			ResetAt:  resetAt,
			Degraded: true,
		}
	}

	if count > int64(limit) {
		return false, Info{
			Limit:     limit,
			Current:   limit,
			Remaining: 0,
			ResetAt:   resetAt,
		}
	}

	return true, Info{
		Limit:     limit,
		Current:   int(count),
		Remaining: limit - int(count),
		ResetAt:   resetAt,
	}
}

func counterKey(userID string, now time.Time) string {
	return fmt.Sprintf("ratelimit:user:%s:%s", userID, now.Format("2006-01-02"))
}

func nextUTCMidnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}
