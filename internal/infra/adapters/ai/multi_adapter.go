// File: internal/infra/adapters/ai/multi_adapter.go
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fincas-assistant/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*MultiAIAdapter)(nil)

var ErrNoProvider = errors.New("no ai provider configured")

// MultiAIAdapter routes chat by model name and pins embeddings to one provider,
// since query vectors must live in the same space as the indexed ones.
type MultiAIAdapter struct {
	chatProvider  string
	embedProvider string
	byProvider    map[string]adapter.AIServiceAdapter
}

func NewMultiAIAdapter(chatProvider, embedProvider string, byProvider map[string]adapter.AIServiceAdapter) *MultiAIAdapter {
	if embedProvider == "" {
		embedProvider = chatProvider
	}
	return &MultiAIAdapter{
		chatProvider:  strings.ToLower(chatProvider),
		embedProvider: strings.ToLower(embedProvider),
		byProvider:    byProvider,
	}
}

func (m *MultiAIAdapter) resolveProvider(model string) string {
	l := strings.ToLower(model)
	switch {
	case strings.HasPrefix(l, "gemini"):
		return "gemini"
	case strings.HasPrefix(l, "gpt"):
		return "openai"
	default:
		return m.chatProvider
	}
}

func (m *MultiAIAdapter) pick(provider string) adapter.AIServiceAdapter {
	if a := m.byProvider[provider]; a != nil {
		return a
	}
	if a := m.byProvider[m.chatProvider]; a != nil {
		return a
	}
	return nil
}

func (m *MultiAIAdapter) Provider() string { return m.chatProvider }

func (m *MultiAIAdapter) Chat(ctx context.Context, messages []adapter.Message, opts adapter.ChatOptions) (string, adapter.Usage, error) {
	a := m.pick(m.resolveProvider(opts.Model))
	if a == nil {
		return "", adapter.Usage{}, ErrNoProvider
	}
	if a.Provider() != m.resolveProvider(opts.Model) {
		// the model belongs to a provider we have no key for; use its default
		opts.Model = ""
	}
	return a.Chat(ctx, messages, opts)
}

func (m *MultiAIAdapter) Embed(ctx context.Context, inputs []string) ([][]float64, error) {
	a := m.byProvider[m.embedProvider]
	if a == nil {
		return nil, fmt.Errorf("%w: embeddings provider %q", ErrNoProvider, m.embedProvider)
	}
	return a.Embed(ctx, inputs)
}
