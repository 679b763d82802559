package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type commandHandler func(ctx context.Context, message *tgbotapi.Message) error

// commandRoutes maps command names (without '/') to their handlers.
func (r *RealTelegramBotAdapter) commandRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		"start":   r.handleStartCommand,
		"help":    r.handleHelpCommand,
		"logout":  r.handleLogoutCommand,
		"reindex": r.handleReindexCommand,
	}
}

func (r *RealTelegramBotAdapter) handleStartCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.facade.HandleStart(ctx, message.From.ID)
	if err := r.reply(ctx, message.Chat.ID, text, err); err != nil {
		return err
	}
	r.log.Debug().Int64("tg_id", message.From.ID).Msg("welcome sent")
	return nil
}

func (r *RealTelegramBotAdapter) handleHelpCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.reply(ctx, message.Chat.ID, r.facade.HandleHelp(), nil)
}

func (r *RealTelegramBotAdapter) handleLogoutCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.facade.HandleLogout(ctx, message.From.ID)
	return r.reply(ctx, message.Chat.ID, text, err)
}

func (r *RealTelegramBotAdapter) handleReindexCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.facade.HandleReindex(ctx, message.From.ID)
	return r.reply(ctx, message.Chat.ID, text, err)
}

// SetMenuCommands publishes the localized command list shown in Telegram's menu.
func (r *RealTelegramBotAdapter) SetMenuCommands(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	names := []string{"start", "help", "logout", "reindex"}
	cmds := make([]tgbotapi.BotCommand, 0, len(names))
	for _, name := range names {
		cmds = append(cmds, tgbotapi.BotCommand{Command: name, Description: r.translator.T("cmd_" + name)})
	}
	if _, err := r.bot.Request(tgbotapi.NewSetMyCommands(cmds...)); err != nil {
		r.log.Warn().Err(err).Msg("set menu commands failed")
		return err
	}
	return nil
}
