package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"fincas-assistant/internal/config"
	"fincas-assistant/internal/domain/ports/adapter"
	"fincas-assistant/internal/domain/ports/repository"
	"fincas-assistant/internal/infra/logging"
	"fincas-assistant/internal/infra/metrics"
	red "fincas-assistant/internal/infra/redis"
	"fincas-assistant/internal/infra/worker"
)

// MaxMessageLength is Telegram's limit for one text message, in runes.
const MaxMessageLength = 4096

const (
	updateTimeout   = 90 * time.Second
	maxWebhookBytes = 1 << 20
)

// ErrBlocked is returned by SendMessage when the user blocked the bot (HTTP 403).
var ErrBlocked = errors.New("telegram: bot blocked by user")

var _ adapter.Notifier = (*RealTelegramBotAdapter)(nil)

// botAPI is the subset of *tgbotapi.BotAPI the adapter uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Facade is what the adapter forwards updates to.
type Facade interface {
	HandleStart(ctx context.Context, tgID int64) (string, error)
	HandleHelp() string
	HandleText(ctx context.Context, tgID int64, text string) (string, error)
	HandleContact(ctx context.Context, tgID, contactUserID int64, phone string) (string, error)
	HandleLogout(ctx context.Context, tgID int64) (string, error)
	HandleReindex(ctx context.Context, tgID int64) (string, error)
}

type Translator interface {
	T(key string, args ...interface{}) string
}

// Submitter queues work; *worker.Pool satisfies it.
type Submitter interface {
	Submit(task worker.Task) error
}

// RealTelegramBotAdapter receives updates (polling or webhook) and delegates to the facade.
type RealTelegramBotAdapter struct {
	bot        botAPI
	cfg        *config.BotConfig
	facade     Facade
	translator Translator
	limiter    repository.RateLimiter // optional
	pool       Submitter
	log        *zerolog.Logger
}

func NewRealTelegramBotAdapter(
	cfg *config.BotConfig,
	facade Facade,
	translator Translator,
	limiter repository.RateLimiter,
	pool Submitter,
	logger *zerolog.Logger,
) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	if len(strings.TrimSpace(cfg.Token)) < config.MinTokenLength {
		return nil, errors.New("telegram token is missing or too short")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	a, err := newAdapter(bot, cfg, facade, translator, limiter, pool, logger)
	if err != nil {
		return nil, err
	}
	a.log.Info().Str("bot", bot.Self.UserName).Msg("telegram bot authorized")
	return a, nil
}

func newAdapter(
	bot botAPI,
	cfg *config.BotConfig,
	facade Facade,
	translator Translator,
	limiter repository.RateLimiter,
	pool Submitter,
	logger *zerolog.Logger,
) (*RealTelegramBotAdapter, error) {
	if facade == nil {
		return nil, errors.New("bot facade is nil")
	}
	if pool == nil {
		return nil, errors.New("worker pool is nil")
	}
	l := logger.With().Str("component", "TelegramAdapter").Logger()
	return &RealTelegramBotAdapter{
		bot:        bot,
		cfg:        cfg,
		facade:     facade,
		translator: translator,
		limiter:    limiter,
		pool:       pool,
		log:        &l,
	}, nil
}

// StartPolling removes any webhook and feeds long-polled updates to the worker pool until ctx ends.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	if _, err := r.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		r.log.Warn().Err(err).Msg("delete webhook before polling failed")
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)
	r.log.Info().Msg("polling started")

	for {
		select {
		case <-ctx.Done():
			r.bot.StopReceivingUpdates()
			r.log.Info().Msg("polling stopped")
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.enqueue(up)
		}
	}
}

// SetWebhook registers <WebhookURL>/<token> with Telegram.
func (r *RealTelegramBotAdapter) SetWebhook(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	wh, err := tgbotapi.NewWebhook(r.cfg.WebhookURL + r.WebhookPath())
	if err != nil {
		return fmt.Errorf("build webhook: %w", err)
	}
	if _, err := r.bot.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	r.log.Info().Str("url", r.cfg.WebhookURL+"/"+logging.Redact(r.cfg.Token, false)).Msg("webhook registered")
	return nil
}

// WebhookPath is the secret route Telegram posts updates to.
func (r *RealTelegramBotAdapter) WebhookPath() string {
	return "/" + r.cfg.Token
}

// WebhookHandler decodes one update, queues it and answers 200 at once.
func (r *RealTelegramBotAdapter) WebhookHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var up tgbotapi.Update
		if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxWebhookBytes)).Decode(&up); err != nil {
			r.log.Warn().Err(err).Msg("undecodable webhook payload")
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		r.enqueue(up)
		w.WriteHeader(http.StatusOK)
	})
}

func (r *RealTelegramBotAdapter) enqueue(up tgbotapi.Update) {
	err := r.pool.Submit(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, updateTimeout)
		defer cancel()
		return r.HandleUpdate(ctx, up)
	})
	if err != nil {
		metrics.IncTelegramUpdate("dropped")
		r.log.Error().Err(err).Int("update_id", up.UpdateID).Msg("update dropped")
	}
}

// SendMessage sends text to a private chat, split into Telegram-sized parts.
func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, tgID int64, text string) error {
	for _, part := range splitMessage(text, MaxMessageLength) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := r.bot.Send(tgbotapi.NewMessage(tgID, part)); err != nil {
			return r.classifySendError(tgID, err)
		}
	}
	return nil
}

func (r *RealTelegramBotAdapter) classifySendError(tgID int64, err error) error {
	var apiErr *tgbotapi.Error
	var netErr net.Error
	switch {
	case errors.As(err, &apiErr) && apiErr.Code == http.StatusForbidden:
		metrics.IncSendError("forbidden")
		r.log.Warn().Int64("tg_id", tgID).Msg("user blocked the bot; reply skipped")
		return ErrBlocked
	case errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests:
		metrics.IncSendError("flood")
		r.log.Warn().Int64("tg_id", tgID).Int("retry_after", apiErr.RetryAfter).Msg("telegram flood limit")
	case errors.As(err, &netErr):
		metrics.IncSendError("network")
		r.log.Error().Err(err).Int64("tg_id", tgID).Msg("network error talking to telegram")
	default:
		metrics.IncSendError("other")
		r.log.Error().Err(err).Int64("tg_id", tgID).Msg("send failed")
	}
	return fmt.Errorf("send message: %w", err)
}

func (r *RealTelegramBotAdapter) sendTyping(chatID int64) {
	if _, err := r.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		r.log.Debug().Err(err).Msg("typing action failed")
	}
}

// HandleUpdate routes one update: rate limit, then commands, contacts and plain text.
func (r *RealTelegramBotAdapter) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	msg := update.Message
	if msg == nil || msg.From == nil {
		metrics.IncTelegramUpdate("ignored")
		return nil
	}
	tgID := msg.From.ID
	ctx = logging.WithTgID(logging.WithTraceID(ctx, fmt.Sprintf("upd-%d", update.UpdateID)), tgID)

	kind, command := "text", "message"
	switch {
	case msg.IsCommand():
		kind, command = "command", "/"+strings.ToLower(msg.Command())
	case msg.Contact != nil:
		kind, command = "contact", "contact"
	case msg.Text == "":
		metrics.IncTelegramUpdate("ignored")
		return nil
	}
	metrics.IncTelegramUpdate(kind)

	if !r.allow(ctx, tgID, command) {
		return r.reply(ctx, msg.Chat.ID, r.translator.T("rate_limited"), nil)
	}

	switch kind {
	case "command":
		h, ok := r.commandRoutes()[strings.TrimPrefix(command, "/")]
		if !ok {
			return r.reply(ctx, msg.Chat.ID, r.translator.T("unknown_command"), nil)
		}
		return h(ctx, msg)
	case "contact":
		text, err := r.facade.HandleContact(ctx, tgID, msg.Contact.UserID, msg.Contact.PhoneNumber)
		return r.reply(ctx, msg.Chat.ID, text, err)
	default:
		r.sendTyping(msg.Chat.ID)
		text, err := r.facade.HandleText(ctx, tgID, msg.Text)
		return r.reply(ctx, msg.Chat.ID, text, err)
	}
}

func (r *RealTelegramBotAdapter) allow(ctx context.Context, tgID int64, command string) bool {
	if r.limiter == nil || r.cfg.RateLimit <= 0 {
		return true
	}
	ok, err := r.limiter.Allow(ctx, red.UserCommandKey(tgID, command), r.cfg.RateLimit, time.Minute)
	if err != nil {
		r.log.Warn().Err(err).Msg("rate limiter unavailable; allowing")
		return true
	}
	if !ok {
		metrics.IncRateLimitTriggered()
		logging.With(ctx, r.log).Info().Str("command", command).Msg("rate limit exceeded")
	}
	return ok
}

// reply logs the facade error, if any, and sends the text it produced.
func (r *RealTelegramBotAdapter) reply(ctx context.Context, chatID int64, text string, herr error) error {
	if herr != nil {
		logging.With(ctx, r.log).Error().Err(herr).Msg("handler error")
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	err := r.SendMessage(ctx, chatID, text)
	if errors.Is(err, ErrBlocked) {
		return nil
	}
	return err
}

// splitMessage cuts text into parts of at most limit runes, preferring line breaks.
func splitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var parts []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
