// Package pinning broadcasts pin messages to every active chat and pins them.
package pinning

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/edgard/promobot/internal/database"
	"github.com/edgard/promobot/internal/delivery"
	"github.com/edgard/promobot/internal/queue"
)

// Job kinds.
const (
	KindDelivery = "pin_message.delivery"
	KindBatch    = "pin_message.batch"
)

// ErrInactive is returned when broadcasting a disabled pin message.
var ErrInactive = errors.New("pin message is inactive")

// Broadcaster sends messages to chats.
type Broadcaster interface {
	SendAll(ctx context.Context, chatIDs []int64, msg delivery.Message) delivery.Result
	SendOne(ctx context.Context, chatID int64, msg delivery.Message) error
	BreakerOpenTimeout() time.Duration
}

type deliveryPayload struct {
	PinMessageID int64 `json:"pin_message_id"`
}

type batchPayload struct {
	PinMessageID int64   `json:"pin_message_id"`
	ChatIDs      []int64 `json:"chat_ids"`
}

// Service dispatches and executes pin message broadcasts.
type Service struct {
	repo        database.Repository
	queue       *queue.Queue
	broadcaster Broadcaster
	chunkSize   int
	logger      *slog.Logger
}

// NewService creates the pin message service.
func NewService(repo database.Repository, q *queue.Queue, broadcaster Broadcaster, chunkSize int, logger *slog.Logger) *Service {
	if chunkSize <= 0 {
		chunkSize = 100
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		repo:        repo,
		queue:       q,
		broadcaster: broadcaster,
		chunkSize:   chunkSize,
		logger:      logger.With("component", "pinning"),
	}
}

// Register installs the pin message job handlers on w.
func (s *Service) Register(w *queue.Worker) {
	w.Handle(KindDelivery, s.handleDelivery)
	w.Handle(KindBatch, s.handleBatch)
}

// Broadcast queues a broadcast of the pin message to every active chat.
func (s *Service) Broadcast(ctx context.Context, pinMessageID int64) (*database.Job, error) {
	pin, err := s.repo.GetPinMessage(ctx, pinMessageID)
	if err != nil {
		return nil, err
	}
	if pin.Status != database.StatusActive {
		return nil, fmt.Errorf("%w: %d", ErrInactive, pin.ID)
	}
	return s.queue.Dispatch(ctx, queue.Dispatch{
		Queue:   queue.QueueDefault,
		Kind:    KindDelivery,
		Payload: deliveryPayload{PinMessageID: pin.ID},
	})
}

// SendActive sends the current active pin message to one chat. It reports
// false when there is no active pin message.
func (s *Service) SendActive(ctx context.Context, chatID int64) (bool, error) {
	pin, err := s.repo.GetActivePinMessage(ctx)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := s.broadcaster.SendOne(ctx, chatID, Render(pin)); err != nil {
		return false, fmt.Errorf("failed to send pin message %d to chat %d: %w", pin.ID, chatID, err)
	}
	return true, nil
}

// Render builds the message for a pin. Content is admin-authored HTML.
func Render(pin *database.PinMessage) delivery.Message {
	return delivery.Message{Text: pin.Content, MediaURL: pin.MediaURL, Pin: true}
}

// load returns the pin message, or nil when it was deleted or disabled.
func (s *Service) load(ctx context.Context, id int64) (*database.PinMessage, error) {
	pin, err := s.repo.GetPinMessage(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if pin.Status != database.StatusActive {
		return nil, nil
	}
	return pin, nil
}

func (s *Service) handleDelivery(ctx context.Context, job *database.Job) error {
	p, err := queue.Decode[deliveryPayload](job)
	if err != nil {
		return err
	}
	pin, err := s.load(ctx, p.PinMessageID)
	if err != nil || pin == nil {
		return err
	}

	chatIDs, err := s.repo.ListActiveChatIDs(ctx)
	if err != nil {
		return err
	}
	chunks := delivery.Chunk(chatIDs, s.chunkSize)
	for _, chunk := range chunks {
		if _, err := s.queue.Dispatch(ctx, queue.Dispatch{
			Queue:   queue.QueueDefault,
			Kind:    KindBatch,
			Payload: batchPayload{PinMessageID: pin.ID, ChatIDs: chunk},
		}); err != nil {
			return err
		}
	}
	s.logger.InfoContext(ctx, "Pin message fanned out", "pin_message_id", pin.ID, "chats", len(chatIDs), "batches", len(chunks))
	return nil
}

func (s *Service) handleBatch(ctx context.Context, job *database.Job) error {
	p, err := queue.Decode[batchPayload](job)
	if err != nil {
		return err
	}
	pin, err := s.load(ctx, p.PinMessageID)
	if err != nil || pin == nil {
		return err
	}

	res := s.broadcaster.SendAll(ctx, p.ChatIDs, Render(pin))
	if len(res.Remaining) > 0 {
		var delay time.Duration
		if ctx.Err() == nil {
			delay = s.broadcaster.BreakerOpenTimeout()
		}
		if _, err := s.queue.Dispatch(context.WithoutCancel(ctx), queue.Dispatch{
			Queue:   queue.QueueDefault,
			Kind:    KindBatch,
			Payload: batchPayload{PinMessageID: pin.ID, ChatIDs: res.Remaining},
			Delay:   delay,
		}); err != nil {
			return fmt.Errorf("failed to requeue %d undelivered chats: %w", len(res.Remaining), err)
		}
	}

	s.logger.InfoContext(ctx, "Pin message batch delivered",
		"pin_message_id", pin.ID,
		"sent", res.Sent,
		"failed", res.Failed,
		"blocked", res.Blocked,
		"requeued", len(res.Remaining),
	)
	return nil
}
