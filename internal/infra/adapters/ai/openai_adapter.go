package ai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"fincas-assistant/internal/domain"
	"fincas-assistant/internal/domain/ports/adapter"
	"fincas-assistant/internal/infra/metrics"
)

// MaxEmbeddingInputs is the provider's per-request input cap.
const MaxEmbeddingInputs = 2048

// Compile-time assurance this adapter satisfies the port
var _ adapter.AIServiceAdapter = (*OpenAIAdapter)(nil)

type OpenAIConfig struct {
	APIKey         string
	BaseURL        string // empty means the public API
	ChatModel      string
	EmbeddingModel string
	Timeout        time.Duration
	MaxRetries     int
	ChunkInputs    int
}

// OpenAIAdapter implements adapter.AIServiceAdapter with chat completions and embeddings.
type OpenAIAdapter struct {
	client      openai.Client
	chatModel   string
	embedModel  string
	chunkInputs int
}

func NewOpenAIAdapter(cfg OpenAIConfig) (*OpenAIAdapter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gpt-3.5-turbo"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-ada-002"
	}
	if cfg.ChunkInputs <= 0 || cfg.ChunkInputs > MaxEmbeddingInputs {
		cfg.ChunkInputs = MaxEmbeddingInputs
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &OpenAIAdapter{
		client:      openai.NewClient(opts...),
		chatModel:   cfg.ChatModel,
		embedModel:  cfg.EmbeddingModel,
		chunkInputs: cfg.ChunkInputs,
	}, nil
}

func (o *OpenAIAdapter) Provider() string { return "openai" }

func (o *OpenAIAdapter) Chat(ctx context.Context, messages []adapter.Message, opts adapter.ChatOptions) (string, adapter.Usage, error) {
	model := modelOrDefault(opts.Model, o.chatModel)
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: toOpenAIMessages(messages),
	}
	if opts.Temperature > 0 {
		params.Temperature = openai.Float(opts.Temperature)
	}

	start := time.Now()
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		metrics.ObserveChat(o.Provider(), model, 0, 0, time.Since(start), false)
		return "", adapter.Usage{}, fmt.Errorf("openai chat: %w", err)
	}
	u := adapter.Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	metrics.ObserveChat(o.Provider(), model, u.PromptTokens, u.CompletionTokens, time.Since(start), true)

	for _, c := range resp.Choices {
		if c.Message.Content != "" {
			return c.Message.Content, u, nil
		}
	}
	return "", u, errors.New("openai chat: no choice content")
}

// Embed sends inputs in chunks of at most chunkInputs and keeps input order.
func (o *OpenAIAdapter) Embed(ctx context.Context, inputs []string) ([][]float64, error) {
	out := make([][]float64, 0, len(inputs))
	for start := 0; start < len(inputs); start += o.chunkInputs {
		end := start + o.chunkInputs
		if end > len(inputs) {
			end = len(inputs)
		}
		vecs, err := o.embedChunk(ctx, inputs[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (o *OpenAIAdapter) embedChunk(ctx context.Context, chunk []string) ([][]float64, error) {
	t0 := time.Now()
	resp, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: chunk},
		Model: openai.EmbeddingModel(o.embedModel),
	})
	metrics.ObserveEmbeddingTime(time.Since(t0))
	if err != nil {
		metrics.IncAICall(o.Provider(), "embed", false)
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	metrics.IncAICall(o.Provider(), "embed", true)
	if len(resp.Data) != len(chunk) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d inputs: %w", len(resp.Data), len(chunk), domain.ErrEmbeddingMissing)
	}
	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	vecs := make([][]float64, len(data))
	for i, d := range data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

func toOpenAIMessages(msgs []adapter.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
