package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"fincas-assistant/internal/domain"
	"fincas-assistant/internal/domain/model"
	"fincas-assistant/internal/domain/ports/adapter"
	"fincas-assistant/internal/domain/ports/repository"
	"fincas-assistant/internal/infra/logging"
	"fincas-assistant/internal/usecase"
)

const defaultMaxQuestionLength = 500

// BotFacade composes usecases into high-level bot commands.
// Methods return the text to send so the Telegram adapter only forwards it.
// The returned error is for logging; the text is always safe to show.
type BotFacade struct {
	Auth      AuthUseCaseIface
	Assistant AssistantUseCaseIface
	Indexer   IndexerUseCaseIface // optional; /reindex is disabled without it
	Sessions  repository.SessionStore
	Notifier  adapter.Notifier
	T         Translator

	MaxQuestionLength int

	log        *zerolog.Logger
	reindexing atomic.Bool
	// goAsync runs background work; tests replace it to run inline.
	goAsync func(func())
}

func NewBotFacade(
	auth AuthUseCaseIface,
	assistant AssistantUseCaseIface,
	indexer IndexerUseCaseIface,
	sessions repository.SessionStore,
	notifier adapter.Notifier,
	tr Translator,
	logger *zerolog.Logger,
) *BotFacade {
	return &BotFacade{
		Auth:              auth,
		Assistant:         assistant,
		Indexer:           indexer,
		Sessions:          sessions,
		Notifier:          notifier,
		T:                 tr,
		MaxQuestionLength: defaultMaxQuestionLength,
		log:               logger,
		goAsync:           func(fn func()) { go fn() },
	}
}

// session returns the stored session, or nil when the user is not signed in.
func (b *BotFacade) session(ctx context.Context, tgID int64) (*model.Session, error) {
	s, err := b.Sessions.Get(ctx, tgID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return s, nil
}

func (b *BotFacade) dropSession(ctx context.Context, tgID int64) {
	if err := b.Sessions.Delete(ctx, tgID); err != nil {
		b.log.Warn().Err(err).Int64("tg_id", tgID).Msg("delete session failed")
	}
}

func (b *BotFacade) signIn(ctx context.Context, tgID int64, token string, u *model.User) (string, error) {
	s := model.NewSession(tgID, u, token)
	if err := b.Sessions.Put(ctx, s, b.Auth.TokenTTL()); err != nil {
		return b.T.T("answer_error"), fmt.Errorf("store session: %w", err)
	}
	name := u.Name
	if name == "" {
		name = "usuario"
	}
	return b.T.T("auth_ok", name), nil
}

// HandleStart greets the user; signed-in users get a shorter welcome back.
func (b *BotFacade) HandleStart(ctx context.Context, tgID int64) (string, error) {
	s, err := b.session(ctx, tgID)
	if err != nil {
		b.log.Warn().Err(err).Int64("tg_id", tgID).Msg("start without session lookup")
	}
	if s != nil {
		return b.T.T("welcome_back", s.Name), nil
	}
	return b.T.T("welcome"), nil
}

func (b *BotFacade) HandleHelp() string {
	return b.T.Help()
}

// HandleText treats text as credentials until the user is signed in and as a question afterwards.
func (b *BotFacade) HandleText(ctx context.Context, tgID int64, text string) (string, error) {
	ctx = logging.WithTgID(ctx, tgID)
	log := logging.With(ctx, b.log)

	s, err := b.session(ctx, tgID)
	if err != nil {
		return b.T.T("answer_error"), err
	}
	if s == nil {
		if strings.Contains(text, ":") {
			return b.handleCredentials(ctx, tgID, text)
		}
		log.Warn().Msg("unauthenticated user sent a message")
		return b.T.T("auth_required"), nil
	}
	if _, err := b.Auth.VerifyToken(s.Token); err != nil {
		log.Info().Msg("session token no longer valid")
		b.dropSession(ctx, tgID)
		return b.T.T("session_expired"), nil
	}

	if strings.TrimSpace(text) == "" {
		return b.T.T("send_text"), nil
	}
	if utf8.RuneCountInString(usecase.CleanQuestion(text)) > b.MaxQuestionLength {
		log.Warn().Int("len", utf8.RuneCountInString(text)).Msg("question too long")
		return b.T.T("question_too_long", b.MaxQuestionLength), nil
	}

	answer, err := b.Assistant.Answer(ctx, text, s.UserID)
	switch {
	case err == nil:
		return answer, nil
	case errors.Is(err, domain.ErrEmptyQuestion):
		return b.T.T("question_invalid"), nil
	case errors.Is(err, domain.ErrAIUnavailable):
		return b.T.T("ai_unavailable"), err
	default:
		return b.T.T("answer_error"), err
	}
}

func (b *BotFacade) handleCredentials(ctx context.Context, tgID int64, text string) (string, error) {
	user, pass, _ := strings.Cut(strings.TrimSpace(text), ":")
	user, pass = strings.TrimSpace(user), strings.TrimSpace(pass)
	if user == "" || pass == "" {
		return b.T.T("auth_bad_format"), nil
	}

	token, u, err := b.Auth.Authenticate(ctx, user, pass)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			b.log.Info().Int64("tg_id", tgID).Str("username", user).Msg("invalid credentials")
			return b.T.T("auth_invalid"), nil
		}
		return b.T.T("auth_invalid"), fmt.Errorf("authenticate: %w", err)
	}
	b.log.Info().Int64("tg_id", tgID).Str("user_id", u.ID).Msg("user authenticated")
	return b.signIn(ctx, tgID, token, u)
}

// HandleContact signs the user in with a shared contact. Only the sender's own contact counts.
func (b *BotFacade) HandleContact(ctx context.Context, tgID, contactUserID int64, phone string) (string, error) {
	if contactUserID != tgID {
		return b.T.T("contact_not_own"), nil
	}
	token, u, err := b.Auth.AuthenticateByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			return b.T.T("contact_unknown"), nil
		}
		return b.T.T("answer_error"), fmt.Errorf("authenticate by phone: %w", err)
	}
	return b.signIn(ctx, tgID, token, u)
}

func (b *BotFacade) HandleLogout(ctx context.Context, tgID int64) (string, error) {
	s, err := b.session(ctx, tgID)
	if err != nil {
		return b.T.T("answer_error"), err
	}
	if s == nil {
		return b.T.T("logout_none"), nil
	}
	if err := b.Sessions.Delete(ctx, tgID); err != nil {
		return b.T.T("answer_error"), fmt.Errorf("delete session: %w", err)
	}
	return b.T.T("logout_ok"), nil
}

// HandleReindex starts an indexer run for admins and reports the outcome through the Notifier.
func (b *BotFacade) HandleReindex(ctx context.Context, tgID int64) (string, error) {
	if b.Indexer == nil {
		return b.T.T("unknown_command"), nil
	}
	s, err := b.session(ctx, tgID)
	if err != nil {
		return b.T.T("answer_error"), err
	}
	if s == nil {
		return b.T.T("auth_required"), nil
	}
	u, err := b.Auth.RequireRole(ctx, s.Token, model.RoleAdmin)
	switch {
	case errors.Is(err, domain.ErrForbidden):
		return b.T.T("forbidden"), nil
	case errors.Is(err, domain.ErrInvalidToken), errors.Is(err, domain.ErrNotFound):
		b.dropSession(ctx, tgID)
		return b.T.T("session_expired"), nil
	case err != nil:
		return b.T.T("answer_error"), err
	}

	if !b.reindexing.CompareAndSwap(false, true) {
		return b.T.T("reindex_busy"), nil
	}
	runCtx := context.WithoutCancel(ctx)
	b.log.Info().Str("user_id", u.ID).Msg("reindex requested")
	b.goAsync(func() {
		defer b.reindexing.Store(false)
		b.notify(runCtx, tgID, b.reindexOutcome(runCtx))
	})
	return b.T.T("reindex_started"), nil
}

func (b *BotFacade) reindexOutcome(ctx context.Context) string {
	rep, err := b.Indexer.Run(ctx)
	switch {
	case errors.Is(err, domain.ErrIndexInProgress):
		return b.T.T("reindex_busy")
	case err != nil:
		b.log.Error().Err(err).Msg("reindex failed")
		return b.T.T("reindex_failed")
	}
	return b.T.T("reindex_done", rep.Saved, rep.Invalid, rep.FailedBatches)
}

func (b *BotFacade) notify(ctx context.Context, tgID int64, text string) {
	if b.Notifier == nil {
		return
	}
	if err := b.Notifier.SendMessage(ctx, tgID, text); err != nil {
		b.log.Warn().Err(err).Int64("tg_id", tgID).Msg("notify failed")
	}
}
