package usecase

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"fincas-assistant/internal/domain/ports/adapter"
	"fincas-assistant/internal/infra/metrics"
)

// Letters, digits, underscore, whitespace and the Spanish question marks survive.
var questionNoise = regexp.MustCompile(`[^\p{L}\p{N}_\s¿?]`)

var whitespaceRun = regexp.MustCompile(`\s+`)

// CleanQuestion strips everything but letters, digits, '_', whitespace, '¿' and '?'.
func CleanQuestion(q string) string {
	return strings.TrimSpace(questionNoise.ReplaceAllString(strings.TrimSpace(q), ""))
}

// SanitizeQuestion is CleanQuestion capped at maxLen runes.
func SanitizeQuestion(q string, maxLen int) string {
	s := CleanQuestion(q)
	if maxLen > 0 && utf8.RuneCountInString(s) > maxLen {
		s = strings.TrimSpace(string([]rune(s)[:maxLen]))
	}
	return s
}

// CosineSimilarity returns 0 for vectors of different length or zero norm.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}

// TruncateContext keeps at most maxWords whitespace separated words. Only
// contexts that fit are recorded in the length histogram.
func TruncateContext(text string, maxWords int, logger *zerolog.Logger) string {
	words := strings.Fields(text)
	if maxWords > 0 && len(words) > maxWords {
		logger.Warn().Int("words", len(words)).Int("max", maxWords).Msg("context truncated")
		return strings.Join(words[:maxWords], " ")
	}
	metrics.ObserveContextLength(len(words))
	return text
}

// PreprocessText collapses whitespace and caps the text at maxTokens.
func PreprocessText(text string, maxTokens int, tok adapter.Tokenizer) string {
	s := strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
	if tok == nil || maxTokens <= 0 {
		return s
	}
	return tok.Truncate(s, maxTokens)
}
