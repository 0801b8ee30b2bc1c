package handlers

import (
	"context"
	"log/slog"

	"github.com/edgard/promobot/internal/config"
	"github.com/edgard/promobot/internal/database"
	"github.com/edgard/promobot/internal/session"
)

// PinSender sends the active pin message to a chat.
type PinSender interface {
	SendActive(ctx context.Context, chatID int64) (bool, error)
}

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger   *slog.Logger
	Config   *config.Config
	Repo     database.Repository
	Sessions *session.Store
	Pins     PinSender
}
