package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"fincas-assistant/internal/domain"
	"fincas-assistant/internal/domain/ports/adapter"
	"fincas-assistant/internal/infra/metrics"
)

var _ adapter.AIServiceAdapter = (*breakerAI)(nil)

// breakerAI trips after consecutive provider failures and fails fast with
// domain.ErrAIUnavailable until the recovery timeout lets a probe through.
// Chat and Embed trip independently.
type breakerAI struct {
	inner adapter.AIServiceAdapter
	chat  *gobreaker.CircuitBreaker
	embed *gobreaker.CircuitBreaker
}

func NewBreakerAI(inner adapter.AIServiceAdapter, failures uint32, recovery time.Duration) adapter.AIServiceAdapter {
	if failures == 0 {
		return inner
	}
	mk := func(name string) *gobreaker.CircuitBreaker {
		return gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     recovery,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= failures
			},
			IsSuccessful: func(err error) bool {
				// caller cancellations say nothing about provider health
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, _, to gobreaker.State) {
				metrics.SetBreakerState(name, int(to))
			},
		})
	}
	p := inner.Provider()
	return &breakerAI{inner: inner, chat: mk(p + "_chat"), embed: mk(p + "_embed")}
}

func (b *breakerAI) Provider() string { return b.inner.Provider() }

type chatResult struct {
	text  string
	usage adapter.Usage
}

func (b *breakerAI) Chat(ctx context.Context, messages []adapter.Message, opts adapter.ChatOptions) (string, adapter.Usage, error) {
	res, err := b.chat.Execute(func() (interface{}, error) {
		text, u, err := b.inner.Chat(ctx, messages, opts)
		return chatResult{text: text, usage: u}, err
	})
	if err != nil {
		return "", adapter.Usage{}, unavailable(err)
	}
	r := res.(chatResult)
	return r.text, r.usage, nil
}

func (b *breakerAI) Embed(ctx context.Context, inputs []string) ([][]float64, error) {
	res, err := b.embed.Execute(func() (interface{}, error) {
		return b.inner.Embed(ctx, inputs)
	})
	if err != nil {
		return nil, unavailable(err)
	}
	return res.([][]float64), nil
}

func unavailable(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", domain.ErrAIUnavailable, err)
	}
	return err
}
