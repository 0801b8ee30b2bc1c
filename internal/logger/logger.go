// Package logger provides structured logging functionality for promobot.
// It uses Go's slog package for logging with configurable levels and formats,
// and adapts it to the Telegram bot, the cron scheduler and the HTTP API.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron/v2"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
)

// NewLogger creates a new slog Logger with the specified level and format.
// If jsonOutput is true, logs will be formatted as JSON, otherwise as text.
func NewLogger(levelStr string, jsonOutput bool) *slog.Logger {
	return newLogger(os.Stdout, levelStr, jsonOutput)
}

func newLogger(w io.Writer, levelStr string, jsonOutput bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(levelStr),
	}

	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a config level name to a slog level, defaulting to info.
func ParseLevel(levelStr string) slog.Level {
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Middleware creates a logging middleware for the Telegram bot.
// It logs information about incoming updates and their processing time.
func Middleware(log *slog.Logger) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			startTime := time.Now()

			logEntry := log.With("update_id", update.ID)

			var updateType string
			switch {
			case update.Message != nil:
				updateType = "message"
				var userID int64
				if update.Message.From != nil {
					userID = update.Message.From.ID
				}
				logEntry = logEntry.With(
					"message_id", update.Message.ID,
					"chat_id", update.Message.Chat.ID,
					"user_id", userID,
					"text_preview", truncateString(update.Message.Text, 50),
				)
			case update.CallbackQuery != nil:
				updateType = "callback_query"
				logEntry = logEntry.With(
					"callback_query_id", update.CallbackQuery.ID,
					"user_id", update.CallbackQuery.From.ID,
					"data", update.CallbackQuery.Data,
				)
				switch msg := update.CallbackQuery.Message; {
				case msg.Message != nil:
					logEntry = logEntry.With("chat_id", msg.Message.Chat.ID, "message_accessible", true)
				case msg.InaccessibleMessage != nil:
					logEntry = logEntry.With("chat_id", msg.InaccessibleMessage.Chat.ID, "message_accessible", false)
				}
			case update.MyChatMember != nil:
				updateType = "my_chat_member"
				logEntry = logEntry.With("chat_id", update.MyChatMember.Chat.ID)
			default:
				updateType = "other"
			}
			logEntry = logEntry.With("update_type", updateType)

			logEntry.DebugContext(ctx, "Processing update")

			next(ctx, b, update)

			logEntry.InfoContext(ctx, "Finished processing update", "duration", time.Since(startTime))
		}
	}
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return string(r[:maxLen-3]) + "..."
}

// schedulerLogger adapts slog to the gocron Logger interface.
type schedulerLogger struct {
	log *slog.Logger
}

var _ gocron.Logger = (*schedulerLogger)(nil)

// NewSchedulerLogger returns a gocron.Logger writing to log.
func NewSchedulerLogger(log *slog.Logger) gocron.Logger {
	return &schedulerLogger{log: log.With("component", "gocron")}
}

func (l *schedulerLogger) Debug(msg string, args ...any) { l.log.Debug(msg, args...) }
func (l *schedulerLogger) Info(msg string, args ...any)  { l.log.Info(msg, args...) }
func (l *schedulerLogger) Warn(msg string, args ...any)  { l.log.Warn(msg, args...) }
func (l *schedulerLogger) Error(msg string, args ...any) { l.log.Error(msg, args...) }

// RequestIDHeader carries the request ID set by GinMiddleware.
const RequestIDHeader = "X-Request-ID"

// GinMiddleware logs every HTTP request with its status and latency.
// A request ID is taken from X-Request-ID or generated, and echoed back.
func GinMiddleware(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		ctx := c.Request.Context()
		switch {
		case status >= 500:
			log.ErrorContext(ctx, "HTTP request failed", attrs...)
		case status >= 400:
			log.WarnContext(ctx, "HTTP request rejected", attrs...)
		default:
			log.InfoContext(ctx, "HTTP request", attrs...)
		}
	}
}
