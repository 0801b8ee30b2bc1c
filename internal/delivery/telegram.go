// Package delivery sends broadcast messages to Telegram chats through a rate
// limiter, a fixed-retry loop and a circuit breaker.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/promobot/internal/resilience"
)

// Telegram message size limits.
const (
	MaxTextLength    = 4096
	MaxCaptionLength = 1024
)

// ErrBlocked is returned when the chat blocked the bot or no longer exists.
var ErrBlocked = errors.New("chat unreachable")

// Message is a broadcast payload. Text is HTML whose visible length the
// caller keeps within MaxTextLength, or MaxCaptionLength when MediaURL is set.
type Message struct {
	Text     string
	MediaURL string
	Keyboard *models.InlineKeyboardMarkup
	// Pin pins the message silently after it is sent.
	Pin bool
}

// Sender delivers one message to one chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, msg Message) (messageID int, err error)
	Pin(ctx context.Context, chatID int64, messageID int) error
}

// TelegramSender implements Sender with the Bot API.
type TelegramSender struct {
	b *bot.Bot
}

// NewTelegramSender creates a Sender backed by b.
func NewTelegramSender(b *bot.Bot) *TelegramSender {
	return &TelegramSender{b: b}
}

// Send sends msg as a photo, a video or a text message depending on MediaURL.
func (s *TelegramSender) Send(ctx context.Context, chatID int64, msg Message) (int, error) {
	var (
		sent *models.Message
		err  error
	)

	switch {
	case msg.MediaURL != "" && IsVideoURL(msg.MediaURL):
		params := &bot.SendVideoParams{
			ChatID:    chatID,
			Video:     &models.InputFileString{Data: msg.MediaURL},
			Caption:   msg.Text,
			ParseMode: models.ParseModeHTML,
		}
		if msg.Keyboard != nil {
			params.ReplyMarkup = msg.Keyboard
		}
		sent, err = s.b.SendVideo(ctx, params)

	case msg.MediaURL != "":
		params := &bot.SendPhotoParams{
			ChatID:    chatID,
			Photo:     &models.InputFileString{Data: msg.MediaURL},
			Caption:   msg.Text,
			ParseMode: models.ParseModeHTML,
		}
		if msg.Keyboard != nil {
			params.ReplyMarkup = msg.Keyboard
		}
		sent, err = s.b.SendPhoto(ctx, params)

	default:
		params := &bot.SendMessageParams{
			ChatID:    chatID,
			Text:      msg.Text,
			ParseMode: models.ParseModeHTML,
		}
		if msg.Keyboard != nil {
			params.ReplyMarkup = msg.Keyboard
		}
		sent, err = s.b.SendMessage(ctx, params)
	}

	if err != nil {
		return 0, ClassifyError(err)
	}
	return sent.ID, nil
}

// Pin pins a message without notifying chat members.
func (s *TelegramSender) Pin(ctx context.Context, chatID int64, messageID int) error {
	_, err := s.b.PinChatMessage(ctx, &bot.PinChatMessageParams{
		ChatID:              chatID,
		MessageID:           messageID,
		DisableNotification: true,
	})
	if err != nil {
		return ClassifyError(err)
	}
	return nil
}

// ClassifyError maps Bot API errors to retry semantics: 403 becomes a
// permanent ErrBlocked, 400 is permanent, 429 carries its retry_after hint.
func ClassifyError(err error) error {
	var tooMany *bot.TooManyRequestsError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &tooMany):
		return resilience.RetryAfter(err, time.Duration(tooMany.RetryAfter)*time.Second)
	case errors.Is(err, bot.ErrorForbidden):
		return resilience.NoRetry(fmt.Errorf("%w: %w", ErrBlocked, err))
	case errors.Is(err, bot.ErrorBadRequest):
		if isChatGone(err) {
			return resilience.NoRetry(fmt.Errorf("%w: %w", ErrBlocked, err))
		}
		return resilience.NoRetry(err)
	default:
		return err
	}
}

// isChatGone detects 400 answers for chats that were deleted or never existed.
func isChatGone(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "chat not found") || strings.Contains(msg, "user is deactivated")
}

var videoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".m4v":  true,
	".webm": true,
	".avi":  true,
	".mkv":  true,
}

// IsVideoURL reports whether the URL path ends in a video extension.
func IsVideoURL(raw string) bool {
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	}
	return videoExtensions[strings.ToLower(path.Ext(p))]
}

// Truncate shortens s to at most limit runes, ending with an ellipsis when cut.
func Truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit <= 1 {
		return string(r[:limit])
	}
	return string(r[:limit-1]) + "…"
}
