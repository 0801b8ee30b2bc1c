package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewDefaultHandler returns the handler for updates no other handler matched.
// It tracks users blocking and unblocking the bot, and answers plain private
// messages with the help text.
func NewDefaultHandler(deps HandlerDeps) bot.HandlerFunc {
	help := NewHelpHandler(deps)
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if m := update.MyChatMember; m != nil {
			memberChange(ctx, deps, m)
			return
		}
		msg := update.Message
		if msg == nil || string(msg.Chat.Type) != "private" || strings.HasPrefix(msg.Text, "/") {
			return
		}
		help(ctx, b, update)
	}
}

func memberChange(ctx context.Context, deps HandlerDeps, m *models.ChatMemberUpdated) {
	if string(m.Chat.Type) != "private" {
		return
	}
	log := deps.Logger.With("handler", "default", "chat_id", m.Chat.ID)

	var err error
	switch m.NewChatMember.Type {
	case models.ChatMemberTypeBanned:
		log.InfoContext(ctx, "User blocked the bot")
		err = deps.Repo.DeactivateChat(ctx, m.Chat.ID)
	case models.ChatMemberTypeMember:
		log.InfoContext(ctx, "User unblocked the bot")
		err = deps.Repo.UpsertChat(ctx, m.Chat.ID, ChatName(m.Chat))
	default:
		return
	}
	if err != nil {
		log.ErrorContext(ctx, "Failed to record membership change", "error", err)
	}
}
