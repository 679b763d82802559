package adapter

import "context"

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// ChatOptions tunes a single completion call.
type ChatOptions struct {
	Model       string
	Temperature float64
}

// Usage for a single chat call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// AIServiceAdapter is the port for LLM chat and embeddings.
type AIServiceAdapter interface {
	// Provider names the backend ("openai", "gemini") for logs and metrics.
	Provider() string

	// Chat returns the assistant text and usage as reported by the provider.
	Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, Usage, error)

	// Embed returns one vector per input, in input order.
	Embed(ctx context.Context, inputs []string) ([][]float64, error)
}

// Tokenizer counts and truncates text in model tokens.
type Tokenizer interface {
	Count(text string) int
	Truncate(text string, maxTokens int) string
}
