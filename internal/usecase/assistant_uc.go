// File: internal/usecase/assistant_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fincas-assistant/internal/domain"
	"fincas-assistant/internal/domain/model"
	"fincas-assistant/internal/domain/ports/adapter"
	"fincas-assistant/internal/domain/ports/repository"
	"fincas-assistant/internal/infra/logging"
	"fincas-assistant/internal/infra/metrics"
)

// SystemPrompt frames every completion: answer from the retrieved context only.
const SystemPrompt = "Eres un asistente experto en administración de fincas. Tu función es responder únicamente basándote en la " +
	"información disponible en el contexto proporcionado. Utiliza el contenido recuperado de documentos embeddings, " +
	"que integran información de administraciones, fincas, usuarios e incidencias. Si el contexto es insuficiente, " +
	"indícalo amablemente al usuario. Emplea un lenguaje claro y preciso, adaptado a las necesidades de administración " +
	"de fincas. No inventes datos; responde solo con lo que se te proporciona."

// Compile-time check
var _ AssistantUseCase = (*assistantUC)(nil)

type AssistantUseCase interface {
	// RetrieveContext returns the top-k documents joined by blank lines, or "" when nothing matched.
	RetrieveContext(ctx context.Context, question string, k int) (string, error)
	AnswerWithLLM(ctx context.Context, question, contextText string) (string, error)
	// Answer runs the whole pipeline for a raw user question.
	Answer(ctx context.Context, question, userID string) (string, error)
}

type AssistantConfig struct {
	TopK              int
	MaxContextWords   int
	MaxQuestionLength int
	ChatModel         string
	Temperature       float64
}

type assistantUC struct {
	ai         adapter.AIServiceAdapter
	embeddings repository.EmbeddingRepository
	cache      repository.AnswerCache
	cfg        AssistantConfig
	log        *zerolog.Logger
}

func NewAssistantUseCase(
	ai adapter.AIServiceAdapter,
	embeddings repository.EmbeddingRepository,
	cache repository.AnswerCache,
	cfg AssistantConfig,
	logger *zerolog.Logger,
) *assistantUC {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.MaxContextWords <= 0 {
		cfg.MaxContextWords = 1500
	}
	if cfg.MaxQuestionLength <= 0 {
		cfg.MaxQuestionLength = 500
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.2
	}
	return &assistantUC{ai: ai, embeddings: embeddings, cache: cache, cfg: cfg, log: logger}
}

func (a *assistantUC) embedOne(ctx context.Context, text string) ([]float64, error) {
	vecs, err := a.ai.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, domain.ErrEmbeddingMissing
	}
	return vecs[0], nil
}

func (a *assistantUC) RetrieveContext(ctx context.Context, question string, k int) (string, error) {
	defer logging.TraceDuration(a.log, "AssistantUC.RetrieveContext")()
	if k <= 0 {
		k = a.cfg.TopK
	}

	qvec, err := a.embedOne(ctx, question)
	if err != nil {
		return "", fmt.Errorf("embed question: %w", err)
	}
	hits, err := a.embeddings.VectorSearch(ctx, nil, qvec, 2*k)
	if err != nil {
		return "", fmt.Errorf("vector search: %w", err)
	}
	if len(hits) == 0 {
		a.log.Warn().Msg("no documents matched the question")
		return "", nil
	}

	scored := make([]model.ScoredHit, 0, len(hits))
	for _, h := range hits {
		if len(h.Embedding) == 0 {
			a.log.Debug().Str("document_id", h.DocumentID).Msg("hit without embedding skipped")
			continue
		}
		s := CosineSimilarity(qvec, h.Embedding)
		metrics.ObserveSimilarity(s)
		scored = append(scored, model.ScoredHit{Score: s, Content: h.Content})
	}
	if len(scored) == 0 {
		a.log.Warn().Int("hits", len(hits)).Msg("no hit carried a usable embedding")
		return "", nil
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	parts := make([]string, len(scored))
	for i, s := range scored {
		parts[i] = s.Content
	}
	a.log.Info().Int("k", len(parts)).Float64("best_score", scored[0].Score).Msg("context selected")
	return TruncateContext(strings.Join(parts, "\n\n"), a.cfg.MaxContextWords, a.log), nil
}

func (a *assistantUC) AnswerWithLLM(ctx context.Context, question, contextText string) (string, error) {
	defer logging.TraceDuration(a.log, "AssistantUC.AnswerWithLLM")()
	msgs := []adapter.Message{
		{Role: "system", Content: SystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Contexto:\n%s\n\nPregunta: %s", contextText, question)},
	}
	reply, usage, err := a.ai.Chat(ctx, msgs, adapter.ChatOptions{Model: a.cfg.ChatModel, Temperature: a.cfg.Temperature})
	if err != nil {
		return "", err
	}
	a.log.Debug().Int("prompt_tokens", usage.PromptTokens).Int("completion_tokens", usage.CompletionTokens).Msg("completion usage")
	return strings.TrimSpace(reply), nil
}

func (a *assistantUC) Answer(ctx context.Context, question, userID string) (string, error) {
	sessionID := uuid.NewString()[:8]
	ctx = logging.WithSessID(logging.WithUserID(ctx, userID), sessionID)
	log := logging.With(ctx, a.log)

	q := SanitizeQuestion(question, a.cfg.MaxQuestionLength)
	if q == "" {
		metrics.IncAnswer("empty")
		return "", domain.ErrEmptyQuestion
	}
	log.Info().Msg("processing question")

	if a.cache != nil {
		if cached, ok, err := a.cache.Get(ctx, q); err != nil {
			log.Warn().Err(err).Msg("answer cache read failed")
		} else if ok {
			log.Info().Msg("answer served from cache")
			metrics.IncAnswer("cached")
			return cached, nil
		}
	}

	contextText, err := a.RetrieveContext(ctx, q, a.cfg.TopK)
	if err != nil {
		log.Error().Err(err).Msg("context retrieval failed")
		metrics.IncAnswer("failed")
		return "", fmt.Errorf("retrieve context: %w", err)
	}
	answer, err := a.AnswerWithLLM(ctx, q, contextText)
	if err != nil {
		log.Error().Err(err).Bool("breaker_open", errors.Is(err, domain.ErrAIUnavailable)).Msg("completion failed")
		metrics.IncAnswer("failed")
		return "", fmt.Errorf("answer with llm: %w", err)
	}

	if a.cache != nil {
		if err := a.cache.Set(ctx, q, answer); err != nil {
			log.Warn().Err(err).Msg("answer cache write failed")
		}
	}
	log.Info().Msg("answer generated")
	metrics.IncAnswer("answered")
	return answer, nil
}
