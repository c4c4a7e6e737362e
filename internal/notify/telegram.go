package notify

import (
	"context"
	"errors"
	"fmt"
	"html"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MessageSender is the part of *tgbotapi.BotAPI the sink needs.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// ChatDirectory resolves the Telegram chat linked to a user.
type ChatDirectory interface {
	ChatID(ctx context.Context, userID string) (int64, bool, error)
}

// TelegramSink sends events to the direct recipients that linked a chat.
// Broadcast channels are not delivered over Telegram.
type TelegramSink struct {
	api   MessageSender
	chats ChatDirectory
}

func NewTelegramSink(api MessageSender, chats ChatDirectory) *TelegramSink {
	return &TelegramSink{api: api, chats: chats}
}

func (s *TelegramSink) Deliver(ctx context.Context, ev Event) error {
	var errs []error
	for _, userID := range ev.UserIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		chatID, ok, err := s.chats.ChatID(ctx, userID)
		if err != nil {
			errs = append(errs, fmt.Errorf("resolve chat for %s: %w", userID, err))
			continue
		}
		if !ok {
			continue
		}
		msg := tgbotapi.NewMessage(chatID, formatTelegram(ev))
		msg.ParseMode = tgbotapi.ModeHTML
		if _, err := s.api.Send(msg); err != nil {
			errs = append(errs, fmt.Errorf("send to chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

func formatTelegram(ev Event) string {
	icon := "🔔"
	switch ev.Kind {
	case TaskAssigned:
		icon = "📌"
	case TaskStatusChanged:
		icon = "🔄"
	case TaskCommentAdded:
		icon = "💬"
	case TaskDueSoon:
		icon = "⏳"
	case TaskOverdue:
		icon = "⚠️"
	}
	return fmt.Sprintf("%s %s\n<code>%s</code>", icon, html.EscapeString(ev.Message()), html.EscapeString(ev.Task.ID))
}
