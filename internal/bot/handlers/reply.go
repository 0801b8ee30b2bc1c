package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// sendView sends v as a new HTML message.
func sendView(ctx context.Context, b *bot.Bot, chatID int64, v view) error {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      v.text,
		ParseMode: models.ParseModeHTML,
	}
	if v.keyboard != nil {
		params.ReplyMarkup = v.keyboard
	}
	_, err := b.SendMessage(ctx, params)
	return err
}

// showView replaces msg with v when msg is a text message. Media messages,
// such as advertisements, are left alone and v is sent below them.
func showView(ctx context.Context, b *bot.Bot, msg *models.Message, v view) error {
	if msg.Text == "" {
		return sendView(ctx, b, msg.Chat.ID, v)
	}
	params := &bot.EditMessageTextParams{
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
		Text:      v.text,
		ParseMode: models.ParseModeHTML,
	}
	if v.keyboard != nil {
		params.ReplyMarkup = v.keyboard
	}
	_, err := b.EditMessageText(ctx, params)
	if err != nil && strings.Contains(err.Error(), "message is not modified") {
		return nil
	}
	return err
}

// sendText sends a plain text message.
func sendText(ctx context.Context, b *bot.Bot, chatID int64, text string) error {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text})
	return err
}
