package delivery

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/edgard/promobot/internal/resilience"
)

// ChatDeactivator marks chats that can no longer receive messages.
type ChatDeactivator interface {
	DeactivateChat(ctx context.Context, chatID int64) error
}

// Config holds the broadcaster settings.
type Config struct {
	RatePerSecond      int
	MaxRetries         int
	RetryDelay         time.Duration
	SendTimeout        time.Duration
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
}

// Result counts the outcome of a broadcast.
// Remaining holds chats not attempted because the breaker opened or ctx ended.
type Result struct {
	Sent      int
	Failed    int
	Blocked   int
	Remaining []int64
}

// Broadcaster sends one message to many chats.
type Broadcaster struct {
	sender  Sender
	chats   ChatDeactivator
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
	logger  *slog.Logger
}

// NewBroadcaster creates a Broadcaster. One Broadcaster should be shared by
// all workers so the rate limit and breaker are global to the bot.
func NewBroadcaster(sender Sender, chats ChatDeactivator, cfg Config, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 25
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}

	return &Broadcaster{
		sender:  sender,
		chats:   chats,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:        "telegram-send",
			MaxFailures: cfg.BreakerMaxFailures,
			OpenTimeout: cfg.BreakerOpenTimeout,
			CallTimeout: cfg.SendTimeout,
			// Per-chat refusals say nothing about Telegram's health.
			IsFailure: func(err error) bool { return !resilience.IsNoRetry(err) },
		}),
		retry: resilience.RetryConfig{
			MaxRetries:    cfg.MaxRetries,
			Delay:         cfg.RetryDelay,
			MaxRetryAfter: time.Minute,
		},
		logger: logger.With("component", "broadcaster"),
	}
}

// BreakerOpenTimeout is how long callers should wait before resuming after ErrCircuitOpen.
func (b *Broadcaster) BreakerOpenTimeout() time.Duration {
	return b.breaker.OpenTimeout()
}

// SendAll delivers msg to every chat in order. It stops early, filling
// Result.Remaining, when ctx ends or the circuit breaker opens.
func (b *Broadcaster) SendAll(ctx context.Context, chatIDs []int64, msg Message) Result {
	var res Result

	for i, chatID := range chatIDs {
		if err := b.limiter.Wait(ctx); err != nil {
			res.Remaining = append(res.Remaining, chatIDs[i:]...)
			return res
		}

		err := b.SendOne(ctx, chatID, msg)
		switch {
		case err == nil:
			res.Sent++

		case errors.Is(err, ErrBlocked):
			res.Blocked++
			if b.chats != nil {
				if deErr := b.chats.DeactivateChat(ctx, chatID); deErr != nil {
					b.logger.WarnContext(ctx, "Failed to deactivate blocked chat", "chat_id", chatID, "error", deErr)
				}
			}

		case errors.Is(err, resilience.ErrCircuitOpen) || ctx.Err() != nil:
			b.logger.WarnContext(ctx, "Broadcast interrupted",
				"error", err, "sent", res.Sent, "remaining", len(chatIDs)-i)
			res.Remaining = append(res.Remaining, chatIDs[i:]...)
			return res

		default:
			res.Failed++
			b.logger.WarnContext(ctx, "Failed to deliver message", "chat_id", chatID, "error", err)
		}
	}

	return res
}

// SendOne delivers msg to a single chat, pinning it when requested.
func (b *Broadcaster) SendOne(ctx context.Context, chatID int64, msg Message) error {
	var messageID int
	err := resilience.WithRetry(ctx, func(ctx context.Context) error {
		return b.breaker.Execute(ctx, func(ctx context.Context) error {
			id, err := b.sender.Send(ctx, chatID, msg)
			if err != nil {
				return err
			}
			messageID = id
			return nil
		})
	}, b.retry)
	if err != nil {
		return err
	}

	if msg.Pin {
		pinErr := resilience.WithRetry(ctx, func(ctx context.Context) error {
			return b.breaker.Execute(ctx, func(ctx context.Context) error {
				return b.sender.Pin(ctx, chatID, messageID)
			})
		}, b.retry)
		if pinErr != nil && !errors.Is(pinErr, ErrBlocked) {
			// Delivered but not pinned, e.g. missing admin rights in a group.
			b.logger.WarnContext(ctx, "Failed to pin message", "chat_id", chatID, "message_id", messageID, "error", pinErr)
		}
	}

	b.logger.DebugContext(ctx, "Message delivered", "chat_id", chatID, "message_id", messageID)
	return nil
}

// Chunk splits ids into consecutive slices of at most size elements.
func Chunk(ids []int64, size int) [][]int64 {
	if size <= 0 {
		size = len(ids)
	}
	var chunks [][]int64
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
