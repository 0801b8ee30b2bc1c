package advertising

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/promobot/internal/callback"
	"github.com/edgard/promobot/internal/database"
	"github.com/edgard/promobot/internal/delivery"
	"github.com/edgard/promobot/internal/queue"
)

// Broadcaster sends one message to many chats.
type Broadcaster interface {
	SendAll(ctx context.Context, chatIDs []int64, msg delivery.Message) delivery.Result
	BreakerOpenTimeout() time.Duration
}

type deliveryPayload struct {
	AdvertisementID int64 `json:"advertisement_id"`
}

type batchPayload struct {
	AdvertisementID int64   `json:"advertisement_id"`
	ChatIDs         []int64 `json:"chat_ids"`
}

// Register installs the advertisement job handlers on w.
func (s *Service) Register(w *queue.Worker) {
	w.Handle(KindDelivery, s.handleDelivery)
	w.Handle(KindBatch, s.handleBatch)
}

// deliverable loads the advertisement of a job. It returns nil when the ad is
// gone or inactive so the job is dropped.
func (s *Service) deliverable(ctx context.Context, id int64) (*database.Advertisement, error) {
	ad, err := s.repo.GetAdvertisement(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		s.logger.InfoContext(ctx, "Advertisement deleted, dropping job", "advertisement_id", id)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !ad.IsActive() {
		s.logger.InfoContext(ctx, "Advertisement inactive, dropping job", "advertisement_id", id)
		return nil, nil
	}
	return ad, nil
}

// handleDelivery fans an advertisement out into one batch job per chunk of
// active chats, then schedules the next recurring delivery.
func (s *Service) handleDelivery(ctx context.Context, job *database.Job) error {
	p, err := queue.Decode[deliveryPayload](job)
	if err != nil {
		return err
	}
	ad, err := s.deliverable(ctx, p.AdvertisementID)
	if err != nil || ad == nil {
		return err
	}

	now := s.queue.Clock().Now()
	if ad.StartDate != nil && now.Before(*ad.StartDate) {
		_, err := s.queue.Dispatch(ctx, queue.Dispatch{
			Queue:           queue.QueueAdvertisements,
			Kind:            KindDelivery,
			AdvertisementID: ad.ID,
			Payload:         p,
			Delay:           ad.StartDate.Sub(now),
		})
		if err == nil {
			s.logger.InfoContext(ctx, "Delivery deferred to start date", "advertisement_id", ad.ID, "start_date", ad.StartDate)
		}
		return err
	}
	if ad.Expired(now) {
		s.logger.InfoContext(ctx, "Advertisement ended, dropping delivery", "advertisement_id", ad.ID)
		return nil
	}

	chatIDs, err := s.repo.ListActiveChatIDs(ctx)
	if err != nil {
		return err
	}
	// One-shot ads stay delivered even if the fan-out below fails and retries.
	if err := s.repo.MarkAdvertisementDelivered(ctx, ad.ID, now); err != nil {
		return err
	}
	ad.LastDeliveredAt = &now
	chunks := delivery.Chunk(chatIDs, s.cfg.ChunkSize)
	for _, chunk := range chunks {
		_, err := s.queue.Dispatch(ctx, queue.Dispatch{
			Queue:           queue.QueueAdvertisements,
			Kind:            KindBatch,
			AdvertisementID: ad.ID,
			Payload:         batchPayload{AdvertisementID: ad.ID, ChatIDs: chunk},
		})
		if err != nil {
			return err
		}
	}
	s.logger.InfoContext(ctx, "Advertisement fanned out",
		"advertisement_id", ad.ID, "chats", len(chatIDs), "batches", len(chunks))

	if ad.FrequencyCapMinutes > 0 {
		if _, err := s.Schedule(ctx, ad); err != nil {
			s.logger.ErrorContext(ctx, "Failed to schedule next delivery", "advertisement_id", ad.ID, "error", err)
		}
	}
	return nil
}

// handleBatch sends the advertisement to one chunk of chats and records the
// outcome. Chats left over by an open breaker or shutdown go to a new batch job.
func (s *Service) handleBatch(ctx context.Context, job *database.Job) error {
	p, err := queue.Decode[batchPayload](job)
	if err != nil {
		return err
	}
	ad, err := s.deliverable(ctx, p.AdvertisementID)
	if err != nil || ad == nil {
		return err
	}
	if ad.Expired(s.queue.Clock().Now()) {
		return nil
	}

	var store *database.Store
	if ad.StoreID != nil {
		store, err = s.repo.GetStore(ctx, *ad.StoreID)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return err
		}
	}

	res := s.broadcaster.SendAll(ctx, p.ChatIDs, Render(ad, store, s.cfg.ViewStoreButton))

	// The sends happened; record them even if shutdown cancelled ctx.
	settleCtx := context.WithoutCancel(ctx)
	entry := &database.DeliveryLog{
		AdvertisementID: ad.ID,
		JobID:           job.ID,
		Sent:            res.Sent,
		Failed:          res.Failed,
		Blocked:         res.Blocked,
	}
	if err := s.repo.InsertDeliveryLog(settleCtx, entry); err != nil {
		s.logger.ErrorContext(ctx, "Failed to write delivery log", "advertisement_id", ad.ID, "error", err)
	}

	if len(res.Remaining) > 0 {
		var delay time.Duration
		if ctx.Err() == nil {
			delay = s.broadcaster.BreakerOpenTimeout()
		}
		_, err := s.queue.Dispatch(settleCtx, queue.Dispatch{
			Queue:           queue.QueueAdvertisements,
			Kind:            KindBatch,
			AdvertisementID: ad.ID,
			Payload:         batchPayload{AdvertisementID: ad.ID, ChatIDs: res.Remaining},
			Delay:           delay,
		})
		if err != nil {
			return fmt.Errorf("failed to requeue %d undelivered chats: %w", len(res.Remaining), err)
		}
	}

	s.logger.InfoContext(ctx, "Advertisement batch delivered",
		"advertisement_id", ad.ID,
		"sent", res.Sent,
		"failed", res.Failed,
		"blocked", res.Blocked,
		"requeued", len(res.Remaining),
	)
	return nil
}

// Render builds the broadcast message: bold title, escaped description, the
// media and, when the store is active, a button opening the store card.
// Lengths are counted on the visible text before escaping.
func Render(ad *database.Advertisement, store *database.Store, viewStoreLabel string) delivery.Message {
	limit := delivery.MaxTextLength
	if ad.MediaURL != "" {
		limit = delivery.MaxCaptionLength
	}
	title := delivery.Truncate(strings.TrimSpace(ad.Title), limit)

	var b strings.Builder
	b.WriteString("<b>")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</b>")
	room := limit - utf8.RuneCountInString(title) - 2
	if desc := strings.TrimSpace(ad.Description); desc != "" && room > 0 {
		b.WriteString("\n\n")
		b.WriteString(html.EscapeString(delivery.Truncate(desc, room)))
	}

	msg := delivery.Message{Text: b.String(), MediaURL: ad.MediaURL}
	if store != nil && store.Status == database.StatusActive {
		msg.Keyboard = &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{{
				{Text: viewStoreLabel, CallbackData: callback.Store(store.ID)},
			}},
		}
	}
	return msg
}
