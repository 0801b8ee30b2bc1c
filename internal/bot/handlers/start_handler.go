package handlers

import (
	"context"
	"html"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewStartHandler returns a handler for the /start command.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	return startHandler{deps}.Handle
}

// startHandler registers the chat, shows the root menu and sends the pinned notice.
type startHandler struct {
	deps HandlerDeps
}

func (h startHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "start")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Start handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	chat := update.Message.Chat
	log.InfoContext(ctx, "Handling /start command", "chat_id", chat.ID, "user_id", update.Message.From.ID)

	if err := h.deps.Repo.UpsertChat(ctx, chat.ID, ChatName(chat)); err != nil {
		log.ErrorContext(ctx, "Failed to register chat", "error", err, "chat_id", chat.ID)
	}
	h.deps.Sessions.Reset(chat.ID)

	nav := navigator{h.deps}
	v, err := nav.root(ctx, html.EscapeString(nav.welcome()))
	if err != nil {
		log.ErrorContext(ctx, "Failed to render root menu", "error", err, "chat_id", chat.ID)
		v = view{text: html.EscapeString(nav.welcome())}
	}
	if err := sendView(ctx, b, chat.ID, v); err != nil {
		log.ErrorContext(ctx, "Failed to send welcome message", "error", err, "chat_id", chat.ID)
		return
	}

	if h.deps.Pins == nil {
		return
	}
	sent, err := h.deps.Pins.SendActive(ctx, chat.ID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to send pin message", "error", err, "chat_id", chat.ID)
	} else if sent {
		log.DebugContext(ctx, "Sent active pin message", "chat_id", chat.ID)
	}
}
