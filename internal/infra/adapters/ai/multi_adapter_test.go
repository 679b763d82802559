package ai_test

import (
	"context"
	"errors"
	"testing"

	"fincas-assistant/internal/domain/ports/adapter"
	ai "fincas-assistant/internal/infra/adapters/ai"
)

type stubAI struct {
	name      string
	chatN     int
	embedN    int
	lastModel string
	chatErr   error
}

func (s *stubAI) Provider() string { return s.name }
func (s *stubAI) Chat(ctx context.Context, messages []adapter.Message, opts adapter.ChatOptions) (string, adapter.Usage, error) {
	s.chatN++
	s.lastModel = opts.Model
	if s.chatErr != nil {
		return "", adapter.Usage{}, s.chatErr
	}
	return "ok", adapter.Usage{PromptTokens: 1, CompletionTokens: 1}, nil
}
func (s *stubAI) Embed(ctx context.Context, inputs []string) ([][]float64, error) {
	s.embedN++
	out := make([][]float64, len(inputs))
	for i := range out {
		out[i] = []float64{1, 0}
	}
	return out, nil
}

func TestRouting_ChatHeuristics_And_PinnedEmbeddings(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	open := &stubAI{name: "openai"}
	gem := &stubAI{name: "gemini"}

	m := ai.NewMultiAIAdapter("gemini", "openai",
		map[string]adapter.AIServiceAdapter{"openai": open, "gemini": gem})

	// gpt-* -> openai
	_, _, _ = m.Chat(ctx, nil, adapter.ChatOptions{Model: "gpt-3.5-turbo"})
	if open.chatN != 1 || gem.chatN != 0 {
		t.Fatalf("heuristic gpt-* should go openai")
	}

	// unknown -> chat provider (gemini)
	_, _, _ = m.Chat(ctx, nil, adapter.ChatOptions{Model: "custom"})
	if gem.chatN != 1 {
		t.Fatalf("unknown model should go to the chat provider")
	}

	// embeddings always go to the pinned provider
	if _, err := m.Embed(ctx, []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	if open.embedN != 1 || gem.embedN != 0 {
		t.Fatalf("embeddings should be pinned to openai, got open:%d gem:%d", open.embedN, gem.embedN)
	}
	if m.Provider() != "gemini" {
		t.Fatalf("provider should be the chat provider, got %s", m.Provider())
	}
}

func TestRouting_MissingProviderFallsBack(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	open := &stubAI{name: "openai"}
	m := ai.NewMultiAIAdapter("openai", "", map[string]adapter.AIServiceAdapter{"openai": open})

	_, _, err := m.Chat(ctx, nil, adapter.ChatOptions{Model: "gemini-2.0-flash"})
	if err != nil {
		t.Fatal(err)
	}
	if open.chatN != 1 || open.lastModel != "" {
		t.Fatalf("gemini model without gemini key should fall back to openai default model, got n=%d model=%q", open.chatN, open.lastModel)
	}

	empty := ai.NewMultiAIAdapter("openai", "gemini", map[string]adapter.AIServiceAdapter{})
	if _, _, err := empty.Chat(ctx, nil, adapter.ChatOptions{}); !errors.Is(err, ai.ErrNoProvider) {
		t.Fatalf("expected ErrNoProvider, got %v", err)
	}
	if _, err := empty.Embed(ctx, []string{"x"}); !errors.Is(err, ai.ErrNoProvider) {
		t.Fatalf("expected ErrNoProvider, got %v", err)
	}
}
