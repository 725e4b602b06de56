package middleware

import (
	"context"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// RaiseLimiter throttles alert submissions per identity. The event arrives
// over an established socket rather than a fresh HTTP request, so the limit
// is checked programmatically instead of through an HTTP middleware.
type RaiseLimiter struct {
	limiter *limiter.Limiter
}

// NewRaiseLimiter creates a per-identity limiter from a rate in ulule
// format, e.g. "30-M" for thirty submissions per minute. An empty rate
// disables limiting.
func NewRaiseLimiter(rateStr string) (*RaiseLimiter, error) {
	if rateStr == "" {
		return &RaiseLimiter{}, nil
	}

	rate, err := limiter.NewRateFromFormatted(rateStr)
	if err != nil {
		return nil, err
	}

	return &RaiseLimiter{
		limiter: limiter.New(memory.NewStore(), rate),
	}, nil
}

// Allow reports whether the identity is under its submission budget.
func (rl *RaiseLimiter) Allow(ctx context.Context, identity string) bool {
	if rl.limiter == nil {
		return true
	}

	lctx, err := rl.limiter.Get(ctx, identity)
	if err != nil {
		// limiter failure must not suppress an emergency
		return true
	}
	return !lctx.Reached
}
