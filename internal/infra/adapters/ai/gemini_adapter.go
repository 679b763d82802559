// File: internal/infra/adapters/ai/gemini_adapter.go
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"fincas-assistant/internal/domain"
	"fincas-assistant/internal/domain/model"
	"fincas-assistant/internal/domain/ports/adapter"
	"fincas-assistant/internal/infra/metrics"
)

var _ adapter.AIServiceAdapter = (*GeminiAdapter)(nil)

// geminiMaxEmbedInputs is the batch cap of batchEmbedContents.
const geminiMaxEmbedInputs = 100

// DefaultGeminiEmbedModel supports a configurable output size, so its vectors
// can match the embeddings column.
const DefaultGeminiEmbedModel = "gemini-embedding-001"

type GeminiAdapter struct {
	client     *genai.Client
	chatModel  string
	embedModel string
}

// NewGeminiAdapter creates a Gemini adapter using the official SDK. An empty
// baseURL keeps the SDK default.
func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, chatModel, embedModel string) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	if chatModel == "" || strings.HasPrefix(chatModel, "gpt") {
		chatModel = "gemini-2.0-flash"
	}
	if embedModel == "" || strings.HasPrefix(embedModel, "text-embedding-ada") {
		embedModel = DefaultGeminiEmbedModel
	}
	return &GeminiAdapter{client: c, chatModel: chatModel, embedModel: embedModel}, nil
}

func (g *GeminiAdapter) Provider() string { return "gemini" }

// Chat folds system messages into the system instruction and sends the rest as history.
func (g *GeminiAdapter) Chat(ctx context.Context, messages []adapter.Message, opts adapter.ChatOptions) (string, adapter.Usage, error) {
	if len(messages) == 0 {
		return "", adapter.Usage{}, errors.New("gemini: no messages")
	}
	model := modelOrDefault(opts.Model, g.chatModel)
	if strings.HasPrefix(model, "gpt") {
		model = g.chatModel
	}

	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch strings.ToLower(m.Role) {
		case "system":
			system = append(system, m.Content)
		case "assistant", "model":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	cfg := &genai.GenerateContentConfig{}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	if opts.Temperature > 0 {
		cfg.Temperature = genai.Ptr[float32](float32(opts.Temperature))
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		metrics.ObserveChat(g.Provider(), model, 0, 0, time.Since(start), false)
		return "", adapter.Usage{}, fmt.Errorf("gemini chat: %w", err)
	}

	text := ""
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		var b strings.Builder
		for _, p := range resp.Candidates[0].Content.Parts {
			if p != nil {
				b.WriteString(p.Text)
			}
		}
		text = b.String()
	}
	u := adapter.Usage{}
	if resp != nil && resp.UsageMetadata != nil {
		u.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		u.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		u.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	metrics.ObserveChat(g.Provider(), model, u.PromptTokens, u.CompletionTokens, time.Since(start), text != "")
	if text == "" {
		return "", u, errors.New("gemini chat: empty response")
	}
	return text, u, nil
}

func (g *GeminiAdapter) Embed(ctx context.Context, inputs []string) ([][]float64, error) {
	out := make([][]float64, 0, len(inputs))
	for start := 0; start < len(inputs); start += geminiMaxEmbedInputs {
		end := start + geminiMaxEmbedInputs
		if end > len(inputs) {
			end = len(inputs)
		}
		contents := make([]*genai.Content, 0, end-start)
		for _, s := range inputs[start:end] {
			contents = append(contents, genai.NewContentFromText(s, genai.RoleUser))
		}
		t0 := time.Now()
		resp, err := g.client.Models.EmbedContent(ctx, g.embedModel, contents, embedConfig())
		metrics.ObserveEmbeddingTime(time.Since(t0))
		if err != nil {
			metrics.IncAICall(g.Provider(), "embed", false)
			return nil, fmt.Errorf("gemini embeddings: %w", err)
		}
		metrics.IncAICall(g.Provider(), "embed", true)
		if resp == nil || len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("gemini embeddings: %w", domain.ErrEmbeddingMissing)
		}
		for _, e := range resp.Embeddings {
			v, err := toVector(e)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
	}
	return out, nil
}

func embedConfig() *genai.EmbedContentConfig {
	dims := int32(model.EmbeddingDimensions)
	return &genai.EmbedContentConfig{OutputDimensionality: &dims}
}

// toVector widens an embedding and rejects any size the column cannot hold.
func toVector(e *genai.ContentEmbedding) ([]float64, error) {
	if e == nil {
		return nil, fmt.Errorf("gemini embeddings: %w", domain.ErrEmbeddingMissing)
	}
	if len(e.Values) != model.EmbeddingDimensions {
		return nil, fmt.Errorf("gemini embeddings: got %d dimensions, want %d", len(e.Values), model.EmbeddingDimensions)
	}
	v := make([]float64, len(e.Values))
	for i, x := range e.Values {
		v[i] = float64(x)
	}
	return v, nil
}

func modelOrDefault(model, def string) string {
	if strings.TrimSpace(model) != "" {
		return model
	}
	return def
}
