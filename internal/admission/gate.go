// Package admission bounds the rate and concurrency of outbound upstream calls.
package admission

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Gate admits at most maxConcurrent calls at once and spaces successive
// admissions at least minSpacing apart. A single Gate is shared by every
// caller in the process so the bound holds regardless of inbound load.
type Gate struct {
	slots   *semaphore.Weighted
	spacing *rate.Limiter
}

// New builds a Gate. minSpacing <= 0 disables spacing; maxConcurrent < 1 is treated as 1.
func New(minSpacing time.Duration, maxConcurrent int) *Gate {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	limit := rate.Inf
	if minSpacing > 0 {
		limit = rate.Every(minSpacing)
	}
	return &Gate{
		slots:   semaphore.NewWeighted(int64(maxConcurrent)),
		spacing: rate.NewLimiter(limit, 1),
	}
}

// Acquire blocks until the caller may start its call. The returned release
// must be called exactly once when the call has finished.
func (g *Gate) Acquire(ctx context.Context) (func(), error) {
	if err := g.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("admission slot: %w", err)
	}
	if err := g.spacing.Wait(ctx); err != nil {
		g.slots.Release(1)
		return nil, fmt.Errorf("admission spacing: %w", err)
	}
	return func() { g.slots.Release(1) }, nil
}
