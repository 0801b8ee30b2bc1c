package handlers

import (
	"context"
	"html"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewMenuHandler returns a handler for the /menu command.
func NewMenuHandler(deps HandlerDeps) bot.HandlerFunc {
	return menuHandler{deps}.Handle
}

// menuHandler sends the root menu and starts a fresh navigation stack.
type menuHandler struct {
	deps HandlerDeps
}

func (h menuHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "menu")

	if update.Message == nil {
		log.WarnContext(ctx, "Menu handler received update with nil message", "update_id", update.ID)
		return
	}
	chatID := update.Message.Chat.ID
	h.deps.Sessions.Reset(chatID)

	nav := navigator{h.deps}
	v, err := nav.root(ctx, html.EscapeString(nav.welcome()))
	if err != nil {
		log.ErrorContext(ctx, "Failed to render root menu", "error", err, "chat_id", chatID)
		if sendErr := sendText(ctx, b, chatID, h.deps.Config.Messages.GeneralError); sendErr != nil {
			log.ErrorContext(ctx, "Failed to send error message", "error", sendErr, "chat_id", chatID)
		}
		return
	}
	if err := sendView(ctx, b, chatID, v); err != nil {
		log.ErrorContext(ctx, "Failed to send menu", "error", err, "chat_id", chatID)
	}
}
