//go:build !integration

package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fincas-assistant/internal/config"
	"fincas-assistant/internal/infra/cache"
	"fincas-assistant/internal/infra/worker"
)

const testToken = "123456:ABCDEFGHIJKLMNOPQRSTUVWXYZabcdef"

type sent struct {
	chatID int64
	text   string
}

type fakeBot struct {
	mu       sync.Mutex
	sent     []sent
	requests []tgbotapi.Chattable
	sendErr  error
	updates  chan tgbotapi.Update
	stopped  bool
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, sent{chatID: m.ChatID, text: m.Text})
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel { return f.updates }

func (f *fakeBot) StopReceivingUpdates() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func (f *fakeBot) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, s := range f.sent {
		out[i] = s.text
	}
	return out
}

type fakeFacade struct {
	mu       sync.Mutex
	calls    []string
	textErr  error
	lastText string
	contact  [2]int64
}

func (f *fakeFacade) record(c string) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

func (f *fakeFacade) HandleStart(context.Context, int64) (string, error) {
	f.record("start")
	return "welcome", nil
}

func (f *fakeFacade) HandleHelp() string { f.record("help"); return "help" }

func (f *fakeFacade) HandleText(_ context.Context, _ int64, text string) (string, error) {
	f.record("text")
	f.lastText = text
	if f.textErr != nil {
		return "answer_error", f.textErr
	}
	return "answer: " + text, nil
}

func (f *fakeFacade) HandleContact(_ context.Context, tgID, contactUserID int64, phone string) (string, error) {
	f.record("contact:" + phone)
	f.contact = [2]int64{tgID, contactUserID}
	return "auth_ok", nil
}

func (f *fakeFacade) HandleLogout(context.Context, int64) (string, error) {
	f.record("logout")
	return "logout_ok", nil
}

func (f *fakeFacade) HandleReindex(context.Context, int64) (string, error) {
	f.record("reindex")
	return "reindex_started", nil
}

type keyTranslator struct{}

func (keyTranslator) T(key string, _ ...interface{}) string { return key }

// inlinePool runs tasks synchronously.
type inlinePool struct {
	err error
}

func (p inlinePool) Submit(task worker.Task) error {
	if p.err != nil {
		return p.err
	}
	return task(context.Background())
}

func newTestAdapter(t *testing.T, bot *fakeBot, facade *fakeFacade, rateLimit int) *RealTelegramBotAdapter {
	t.Helper()
	l := zerolog.Nop()
	cfg := &config.BotConfig{Token: testToken, WebhookURL: "https://bot.example.com", RateLimit: rateLimit}
	a, err := newAdapter(bot, cfg, facade, keyTranslator{}, cache.NewRateLimiter(), inlinePool{}, &l)
	require.NoError(t, err)
	return a
}

func textUpdate(from int64, text string) tgbotapi.Update {
	return tgbotapi.Update{UpdateID: 1, Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: from},
		Chat: &tgbotapi.Chat{ID: from},
		Text: text,
	}}
}

func commandUpdate(from int64, cmd string) tgbotapi.Update {
	up := textUpdate(from, cmd)
	up.Message.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	return up
}

func TestHandleUpdate_Routing(t *testing.T) {
	ctx := context.Background()
	bot, facade := &fakeBot{}, &fakeFacade{}
	a := newTestAdapter(t, bot, facade, 100)

	for _, cmd := range []string{"/start", "/help", "/logout", "/reindex", "/START"} {
		require.NoError(t, a.HandleUpdate(ctx, commandUpdate(7, cmd)))
	}
	require.NoError(t, a.HandleUpdate(ctx, commandUpdate(7, "/plans")))
	require.NoError(t, a.HandleUpdate(ctx, textUpdate(7, "¿Horario?")))

	contact := textUpdate(7, "")
	contact.Message.Contact = &tgbotapi.Contact{PhoneNumber: "+34600", UserID: 7}
	require.NoError(t, a.HandleUpdate(ctx, contact))

	assert.Equal(t, []string{"start", "help", "logout", "reindex", "start", "text", "contact:+34600"}, facade.calls)
	assert.Equal(t, [2]int64{7, 7}, facade.contact)
	assert.Equal(t, []string{
		"welcome", "help", "logout_ok", "reindex_started", "welcome",
		"unknown_command", "answer: ¿Horario?", "auth_ok",
	}, bot.texts())
}

func TestHandleUpdate_IgnoresNonMessages(t *testing.T) {
	bot, facade := &fakeBot{}, &fakeFacade{}
	a := newTestAdapter(t, bot, facade, 100)

	require.NoError(t, a.HandleUpdate(context.Background(), tgbotapi.Update{UpdateID: 2}))
	require.NoError(t, a.HandleUpdate(context.Background(), textUpdate(7, "")))
	assert.Empty(t, facade.calls)
	assert.Empty(t, bot.texts())
}

func TestHandleUpdate_RateLimitPerCommand(t *testing.T) {
	ctx := context.Background()
	bot, facade := &fakeBot{}, &fakeFacade{}
	a := newTestAdapter(t, bot, facade, 2)

	for i := 0; i < 3; i++ {
		require.NoError(t, a.HandleUpdate(ctx, textUpdate(7, "hola")))
	}
	// A different command and a different user have their own windows.
	require.NoError(t, a.HandleUpdate(ctx, commandUpdate(7, "/help")))
	require.NoError(t, a.HandleUpdate(ctx, textUpdate(8, "hola")))

	assert.Equal(t, []string{"answer: hola", "answer: hola", "rate_limited", "help", "answer: hola"}, bot.texts())
}

func TestHandleUpdate_FacadeErrorStillReplies(t *testing.T) {
	bot, facade := &fakeBot{}, &fakeFacade{textErr: errors.New("internal")}
	a := newTestAdapter(t, bot, facade, 100)

	require.NoError(t, a.HandleUpdate(context.Background(), textUpdate(7, "hola")))
	assert.Equal(t, []string{"answer_error"}, bot.texts())
}

func TestSendMessage_Errors(t *testing.T) {
	ctx := context.Background()

	blocked := &fakeBot{sendErr: &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}}
	a := newTestAdapter(t, blocked, &fakeFacade{}, 100)
	assert.ErrorIs(t, a.SendMessage(ctx, 7, "hola"), ErrBlocked)
	assert.NoError(t, a.HandleUpdate(ctx, textUpdate(7, "hola")), "a blocked user is not an update failure")

	broken := &fakeBot{sendErr: errors.New("boom")}
	a = newTestAdapter(t, broken, &fakeFacade{}, 100)
	err := a.SendMessage(ctx, 7, "hola")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBlocked)
}

func TestSendMessage_SplitsLongText(t *testing.T) {
	bot := &fakeBot{}
	a := newTestAdapter(t, bot, &fakeFacade{}, 100)
	long := strings.Repeat("ñ", MaxMessageLength+10)

	require.NoError(t, a.SendMessage(context.Background(), 7, long))
	texts := bot.texts()
	require.Len(t, texts, 2)
	assert.Equal(t, MaxMessageLength, utf8.RuneCountInString(texts[0]))
	assert.Equal(t, 10, utf8.RuneCountInString(texts[1]))
}

func TestSplitMessage_PrefersLineBreaks(t *testing.T) {
	text := strings.Repeat("a", 8) + "\n" + strings.Repeat("b", 4)
	assert.Equal(t, []string{strings.Repeat("a", 8) + "\n", "bbbb"}, splitMessage(text, 10))
	assert.Equal(t, []string{"abc"}, splitMessage("abc", 10))
}

func TestWebhookHandler(t *testing.T) {
	bot, facade := &fakeBot{}, &fakeFacade{}
	a := newTestAdapter(t, bot, facade, 100)
	assert.Equal(t, "/"+testToken, a.WebhookPath())
	h := a.WebhookHandler()

	body := `{"update_id":10,"message":{"message_id":1,"date":0,"from":{"id":7,"is_bot":false,"first_name":"Ana"},"chat":{"id":7,"type":"private"},"text":"hola"}}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, a.WebhookPath(), strings.NewReader(body)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hola", facade.lastText)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, a.WebhookPath(), strings.NewReader("{not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, a.WebhookPath(), nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestWebhookHandler_QueueFullStillAcks(t *testing.T) {
	l := zerolog.Nop()
	facade := &fakeFacade{}
	a, err := newAdapter(&fakeBot{}, &config.BotConfig{Token: testToken}, facade, keyTranslator{}, nil, inlinePool{err: worker.ErrQueueFull}, &l)
	require.NoError(t, err)

	body := `{"update_id":11,"message":{"message_id":1,"date":0,"from":{"id":7},"chat":{"id":7,"type":"private"},"text":"hola"}}`
	rec := httptest.NewRecorder()
	a.WebhookHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, facade.calls)
}

func TestSetWebhook(t *testing.T) {
	bot := &fakeBot{}
	a := newTestAdapter(t, bot, &fakeFacade{}, 100)

	require.NoError(t, a.SetWebhook(context.Background()))
	require.Len(t, bot.requests, 1)
	wh, ok := bot.requests[0].(tgbotapi.WebhookConfig)
	require.True(t, ok)
	assert.Equal(t, "https://bot.example.com/"+testToken, wh.URL.String())
}

func TestStartPolling(t *testing.T) {
	bot := &fakeBot{updates: make(chan tgbotapi.Update, 2)}
	facade := &fakeFacade{}
	a := newTestAdapter(t, bot, facade, 100)
	bot.updates <- textUpdate(7, "uno")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.StartPolling(ctx) }()

	assert.Eventually(t, func() bool { return len(bot.texts()) == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	bot.mu.Lock()
	assert.True(t, bot.stopped)
	_, deleted := bot.requests[0].(tgbotapi.DeleteWebhookConfig)
	bot.mu.Unlock()
	assert.True(t, deleted, "polling clears the webhook first")
}

func TestSetMenuCommands(t *testing.T) {
	bot := &fakeBot{}
	a := newTestAdapter(t, bot, &fakeFacade{}, 100)
	require.NoError(t, a.SetMenuCommands(context.Background()))
	cfg, ok := bot.requests[0].(tgbotapi.SetMyCommandsConfig)
	require.True(t, ok)
	require.Len(t, cfg.Commands, 4)
	assert.Equal(t, "cmd_reindex", cfg.Commands[3].Description)
}
