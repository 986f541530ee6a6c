package services

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// TelegramBotService runs the inbound bot loop and feeds every message into
// the conversation state machine. With an empty token it degrades to a no-op
// so the rest of the bridge runs without a bot account.
type TelegramBotService struct {
	bot  *tgbotapi.BotAPI
	conv *Conversation
	log  *zap.Logger
}

func NewTelegramBotService(botToken string, conv *Conversation, log *zap.Logger) (*TelegramBotService, error) {
	if botToken == "" {
		return &TelegramBotService{conv: conv, log: log}, nil
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	bot.Debug = false
	log.Info("telegram bot authorized", zap.String("account", bot.Self.UserName))

	return &TelegramBotService{bot: bot, conv: conv, log: log}, nil
}

func (t *TelegramBotService) Run(ctx context.Context) error {
	if t.bot == nil {
		return nil
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := t.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			chatID := strconv.FormatInt(update.Message.Chat.ID, 10)
			reply := t.conv.Handle(chatID, update.Message.Text)
			if reply == "" {
				continue
			}
			if err := t.Send(chatID, reply); err != nil {
				t.log.Warn("telegram reply failed", zap.String("chat", chatID), zap.Error(err))
			}
		}
	}
}

// Send delivers one rendered message to a chat. It also serves the
// dispatcher as the outbound ChatSender.
func (t *TelegramBotService) Send(chatID, text string) error {
	if t.bot == nil {
		return nil
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("bad chat id %q: %w", chatID, err)
	}
	msg := tgbotapi.NewMessage(id, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
