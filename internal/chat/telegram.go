package chat

import (
	"context"
	"fmt"

	"intralu-bot/internal/components/telemetry"
	"intralu-bot/internal/portal"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	report_telegram_send     = "telegram.send"
	report_telegram_commands = "telegram.commands"
)

// Telegram sends and receives messages through the Bot API with long
// polling.
type Telegram struct {
	bot *tgbotapi.BotAPI
	tel telemetry.API
}

func NewTelegram(token string, tel telemetry.API) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %w", err)
	}
	return &Telegram{
		bot: bot,
		tel: telemetry.NewScopedAPI("chat", tel),
	}, nil
}

func (t *Telegram) Username() string {
	return t.bot.Self.UserName
}

func (t *Telegram) Send(ctx context.Context, chatID portal.ChatID, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	out := tgbotapi.NewMessage(int64(chatID), msg.Text)
	if msg.HTML {
		out.ParseMode = tgbotapi.ModeHTML
	}
	_, err := t.bot.Send(out)
	if err != nil {
		t.tel.ReportWarning(report_telegram_send, err, chatID)
		return fmt.Errorf("telegram: send: %w", err)
	}
	return nil
}

func (t *Telegram) registerCommands() {
	cfg := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: "Cómo usar el bot"},
		tgbotapi.BotCommand{Command: "login", Description: "Registrar código UNI y contraseña DIRCE"},
		tgbotapi.BotCommand{Command: "notas", Description: "Ver la lista de cursos matriculados"},
		tgbotapi.BotCommand{Command: "cancelar", Description: "Cancelar el registro en curso"},
	)
	_, err := t.bot.Request(cfg)
	if err != nil {
		t.tel.ReportWarning(report_telegram_commands, err)
	}
}

// Run polls for updates until ctx is done, passing every text message to
// dispatch.
func (t *Telegram) Run(ctx context.Context, pollTimeoutSeconds int, dispatch func(Update)) {
	t.registerCommands()

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeoutSeconds
	updates := t.bot.GetUpdatesChan(cfg)
	defer t.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || update.Message.Chat == nil || update.Message.Text == "" {
				continue
			}
			t.tel.ReportDebug("update", update.Message.Chat.ID, update.UpdateID)
			dispatch(Update{
				ChatID: portal.ChatID(update.Message.Chat.ID),
				Text:   update.Message.Text,
			})
		}
	}
}
