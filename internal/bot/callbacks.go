package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cmdInbox  = "inbox"
	cmdDone   = "done"
	cmdSnooze = "snooze"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	data := cb.Data
	chatID := cb.Message.Chat.ID

	callback := tgbotapi.NewCallback(cb.ID, "")
	if _, err := b.api.Send(callback); err != nil {
		b.log.Error("send callback ack", "error", err)
	}

	if !b.cfg.IsUserAllowed(cb.From.ID) {
		return
	}

	parts := strings.SplitN(data, ":", 2)
	if len(parts) != 2 || parts[1] == "" {
		return
	}

	action := parts[0]
	id := parts[1]

	b.log.Info("callback",
		"action", action,
		"id", id,
		"chat_id", chatID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	switch action {
	case cmdDone:
		b.handleDone(ctx, chatID, id)
	case cmdSnooze:
		b.handleSnooze(ctx, chatID, id)
	}
}
