package watchfeed

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// defaultRequestSpacing is the minimum delay between any two outbound
// requests. The site tolerates very little request pressure before banning.
const defaultRequestSpacing = 2 * time.Second

// Pacer enforces a minimum elapsed time between outbound requests. All
// requests for a run share one pacer, so pages and detail lookups never
// overtake each other. Single logical request stream; not built for
// concurrent callers.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer creates a pacer with the given minimum spacing. A zero or
// negative spacing falls back to the default.
func NewPacer(spacing time.Duration) *Pacer {
	if spacing <= 0 {
		spacing = defaultRequestSpacing
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(spacing), 1)}
}

// Wait blocks until at least the configured spacing has elapsed since the
// previous Wait returned. The first call returns immediately.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
