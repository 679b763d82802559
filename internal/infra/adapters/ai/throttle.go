package ai

import (
	"context"

	"golang.org/x/time/rate"

	"fincas-assistant/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*throttledAI)(nil)

// throttledAI spaces outgoing calls to stay under the provider's QPS quota.
type throttledAI struct {
	inner   adapter.AIServiceAdapter
	limiter *rate.Limiter
}

// NewThrottledAI allows rps calls per second with a burst of one second's worth.
func NewThrottledAI(inner adapter.AIServiceAdapter, rps float64) adapter.AIServiceAdapter {
	if rps <= 0 {
		return inner
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &throttledAI{inner: inner, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (t *throttledAI) Provider() string { return t.inner.Provider() }

func (t *throttledAI) Chat(ctx context.Context, messages []adapter.Message, opts adapter.ChatOptions) (string, adapter.Usage, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", adapter.Usage{}, err
	}
	return t.inner.Chat(ctx, messages, opts)
}

func (t *throttledAI) Embed(ctx context.Context, inputs []string) ([][]float64, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.inner.Embed(ctx, inputs)
}
