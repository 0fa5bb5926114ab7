package source

import (
	"context"

	"github.com/primary-workspace/pulseai-hackshodh/internal/resilience"
)

// BreakerAdapter routes every backend call through a circuit breaker so a
// failing provider is rejected fast instead of hammered on each sync request.
// The long-running API server wraps its adapter with one; one-shot CLI syncs
// use the bare adapter since a single invocation cannot trip a breaker
// meaningfully.
//
// The wrapper intentionally does not forward the Identifier probe: account
// lookups are a debug aid and should not consume breaker budget.
type BreakerAdapter struct {
	inner Adapter
	cb    *resilience.CircuitBreaker
}

// WithBreaker wraps an adapter with the given circuit breaker.
func WithBreaker(inner Adapter, cb *resilience.CircuitBreaker) *BreakerAdapter {
	return &BreakerAdapter{inner: inner, cb: cb}
}

func (b *BreakerAdapter) ListFiles(ctx context.Context, userID int64, query Query) ([]File, error) {
	return resilience.ExecuteVal(ctx, b.cb, func(ctx context.Context) ([]File, error) {
		return b.inner.ListFiles(ctx, userID, query)
	})
}

func (b *BreakerAdapter) Download(ctx context.Context, userID int64, fileID string) ([]byte, error) {
	return resilience.ExecuteVal(ctx, b.cb, func(ctx context.Context) ([]byte, error) {
		return b.inner.Download(ctx, userID, fileID)
	})
}
