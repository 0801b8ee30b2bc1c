package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewStatsHandler returns a handler for the admin /stats command.
func NewStatsHandler(deps HandlerDeps) bot.HandlerFunc {
	return statsHandler{deps}.Handle
}

type statsHandler struct {
	deps HandlerDeps
}

func (h statsHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "stats")

	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	text := h.deps.Config.Messages.GeneralError
	stats, err := h.deps.Repo.Stats(ctx)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load stats", "error", err)
	} else {
		text = fmt.Sprintf(h.deps.Config.Messages.StatsFmt,
			stats.ActiveChats, stats.TotalChats,
			stats.ActiveAds, stats.TotalAds,
			stats.PendingJobs, stats.FailedJobs,
		)
	}

	if err := sendText(ctx, b, chatID, text); err != nil {
		log.ErrorContext(ctx, "Failed to send stats", "error", err, "chat_id", chatID)
	}
}
