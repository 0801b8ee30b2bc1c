// Package handlers contains Telegram bot command and callback handlers,
// along with their registration logic and middleware.
package handlers

import (
	"context"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// AdminOnly creates a middleware that checks if the message sender is the configured admin user.
// If not, it sends a "Not Authorized" message and stops processing by returning early.
func AdminOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			if update.Message == nil || update.Message.From == nil {
				return
			}

			userID := update.Message.From.ID
			if !deps.Config.IsAdmin(userID) {
				chatID := update.Message.Chat.ID
				log := deps.Logger.With("middleware", "AdminOnly")
				log.WarnContext(ctx, "Unauthorized access attempt", "user_id", userID, "chat_id", chatID)

				_, err := bot.SendMessage(ctx, &tgbot.SendMessageParams{
					ChatID: chatID,
					Text:   deps.Config.Messages.Unauthorized,
				})
				if err != nil {
					log.ErrorContext(ctx, "Failed to send unauthorized message", "error", err, "chat_id", chatID)
				}
				return
			}

			next(ctx, bot, update)
		}
	}
}

// RegisterChat creates a middleware that records every private chat writing
// to the bot, so it receives broadcasts.
func RegisterChat(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			if update.Message != nil && string(update.Message.Chat.Type) == "private" {
				chat := update.Message.Chat
				if err := deps.Repo.UpsertChat(ctx, chat.ID, ChatName(chat)); err != nil {
					deps.Logger.ErrorContext(ctx, "Failed to register chat", "error", err, "chat_id", chat.ID)
				}
			}
			next(ctx, bot, update)
		}
	}
}

// ChatName returns a display name for the chat.
func ChatName(chat models.Chat) string {
	if chat.Title != "" {
		return chat.Title
	}
	name := strings.TrimSpace(chat.FirstName + " " + chat.LastName)
	if name == "" && chat.Username != "" {
		name = "@" + chat.Username
	}
	return name
}
