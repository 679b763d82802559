package ai

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"

	"fincas-assistant/internal/domain/ports/adapter"
)

var (
	_ adapter.Tokenizer = (*TiktokenTokenizer)(nil)
	_ adapter.Tokenizer = WordTokenizer{}
)

// TiktokenTokenizer counts in cl100k_base, the encoding of the OpenAI chat
// and embedding models.
type TiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

func (t *TiktokenTokenizer) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

func (t *TiktokenTokenizer) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	toks := t.enc.Encode(text, nil, nil)
	if len(toks) <= maxTokens {
		return text
	}
	return t.enc.Decode(toks[:maxTokens])
}

// WordTokenizer approximates tokens with whitespace separated words.
type WordTokenizer struct{}

func (WordTokenizer) Count(text string) int { return len(strings.Fields(text)) }

func (WordTokenizer) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	words := strings.Fields(text)
	if len(words) <= maxTokens {
		return text
	}
	return strings.Join(words[:maxTokens], " ")
}

// NewTokenizer loads cl100k_base. The BPE ranks are fetched on first use, so
// offline hosts fall back to WordTokenizer.
func NewTokenizer(logger *zerolog.Logger) adapter.Tokenizer {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		logger.Warn().Err(err).Msg("tiktoken unavailable, counting words instead")
		return WordTokenizer{}
	}
	return &TiktokenTokenizer{enc: enc}
}
