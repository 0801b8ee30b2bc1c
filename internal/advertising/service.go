// Package advertising schedules advertisement deliveries on the job queue and
// executes them through the broadcaster.
package advertising

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/edgard/promobot/internal/database"
	"github.com/edgard/promobot/internal/queue"
)

// Job kinds.
const (
	KindDelivery = "advertisement.delivery"
	KindBatch    = "advertisement.batch"
)

// ErrInvalid is returned for advertisements that fail validation.
var ErrInvalid = errors.New("invalid advertisement")

// Config holds the delivery settings used by the service.
type Config struct {
	// ChunkSize is the number of chats per batch job.
	ChunkSize int
	// ViewStoreButton labels the store button under an advertisement.
	ViewStoreButton string
}

// Service wraps advertisement persistence with its scheduling side effects.
type Service struct {
	repo        database.Repository
	queue       *queue.Queue
	broadcaster Broadcaster
	cfg         Config
	logger      *slog.Logger
}

// NewService creates the advertisement service.
func NewService(repo database.Repository, q *queue.Queue, broadcaster Broadcaster, cfg Config, logger *slog.Logger) *Service {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 100
	}
	if cfg.ViewStoreButton == "" {
		cfg.ViewStoreButton = "View store"
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		repo:        repo,
		queue:       q,
		broadcaster: broadcaster,
		cfg:         cfg,
		logger:      logger.With("component", "advertising"),
	}
}

func validate(ad *database.Advertisement) error {
	switch {
	case ad == nil:
		return fmt.Errorf("%w: nil advertisement", ErrInvalid)
	case strings.TrimSpace(ad.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalid)
	case ad.FrequencyCapMinutes < 0:
		return fmt.Errorf("%w: frequency cap must not be negative", ErrInvalid)
	case ad.Status != database.StatusActive && ad.Status != database.StatusInactive:
		return fmt.Errorf("%w: unknown status %d", ErrInvalid, ad.Status)
	case ad.StartDate != nil && ad.EndDate != nil && !ad.EndDate.After(*ad.StartDate):
		return fmt.Errorf("%w: end date must be after start date", ErrInvalid)
	}
	return nil
}

// Create stores a new advertisement and schedules its first delivery when active.
func (s *Service) Create(ctx context.Context, ad *database.Advertisement) error {
	if err := validate(ad); err != nil {
		return err
	}
	if err := s.repo.CreateAdvertisement(ctx, ad); err != nil {
		return err
	}
	_, err := s.Schedule(ctx, ad)
	return err
}

// Update saves ad. Changing a scheduling field cancels pending jobs and
// schedules again from the new values.
func (s *Service) Update(ctx context.Context, ad *database.Advertisement) error {
	if err := validate(ad); err != nil {
		return err
	}
	old, err := s.repo.GetAdvertisement(ctx, ad.ID)
	if err != nil {
		return err
	}
	ad.CreatedAt = old.CreatedAt
	// A new start date re-arms a one-shot advertisement.
	if sameTime(old.StartDate, ad.StartDate) {
		ad.LastDeliveredAt = old.LastDeliveredAt
	} else {
		ad.LastDeliveredAt = nil
	}
	if err := s.repo.UpdateAdvertisement(ctx, ad); err != nil {
		return err
	}

	if schedulingChanged(old, ad) {
		if _, err := s.queue.Cancel(ctx, ad.ID); err != nil {
			return err
		}
	}
	_, err = s.Schedule(ctx, ad)
	return err
}

// SetStatus activates or deactivates an advertisement.
func (s *Service) SetStatus(ctx context.Context, id int64, status int) (*database.Advertisement, error) {
	if status != database.StatusActive && status != database.StatusInactive {
		return nil, fmt.Errorf("%w: unknown status %d", ErrInvalid, status)
	}
	ad, err := s.repo.GetAdvertisement(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetAdvertisementStatus(ctx, id, status); err != nil {
		return nil, err
	}

	if ad.Status != status {
		if _, err := s.queue.Cancel(ctx, id); err != nil {
			return nil, err
		}
	}
	ad.Status = status
	if _, err := s.Schedule(ctx, ad); err != nil {
		return nil, err
	}
	return ad, nil
}

// Delete cancels pending jobs and removes the advertisement.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.queue.Cancel(ctx, id); err != nil {
		return err
	}
	return s.repo.DeleteAdvertisement(ctx, id)
}

// Schedule dispatches the next delivery job for ad unless it is inactive,
// expired or already has one pending. It returns the dispatched job, or nil.
func (s *Service) Schedule(ctx context.Context, ad *database.Advertisement) (*database.Job, error) {
	now := s.queue.Clock().Now()
	at, ok := NextDeliveryTime(ad, now)
	if !ok {
		s.logger.DebugContext(ctx, "Advertisement not scheduled", "advertisement_id", ad.ID, "status", ad.Status)
		return nil, nil
	}

	pending, err := s.queue.HasPending(ctx, ad.ID, KindDelivery)
	if err != nil {
		return nil, err
	}
	if pending {
		s.logger.DebugContext(ctx, "Delivery already pending", "advertisement_id", ad.ID)
		return nil, nil
	}

	return s.queue.Dispatch(ctx, queue.Dispatch{
		Queue:           queue.QueueAdvertisements,
		Kind:            KindDelivery,
		AdvertisementID: ad.ID,
		Payload:         deliveryPayload{AdvertisementID: ad.ID},
		Delay:           at.Sub(now),
	})
}

// NextDeliveryTime returns max(start_date, now) + frequency cap, and false
// when the advertisement is inactive, is a one-shot that was already
// delivered, or that time is not before end_date.
func NextDeliveryTime(ad *database.Advertisement, now time.Time) (time.Time, bool) {
	if ad == nil || !ad.IsActive() || ad.Expired(now) {
		return time.Time{}, false
	}
	if ad.FrequencyCapMinutes == 0 && ad.Delivered() {
		return time.Time{}, false
	}
	base := now
	if ad.StartDate != nil && ad.StartDate.After(now) {
		base = *ad.StartDate
	}
	at := base.Add(time.Duration(ad.FrequencyCapMinutes) * time.Minute)
	if ad.Expired(at) {
		return time.Time{}, false
	}
	return at, true
}

// schedulingChanged reports whether a field that drives delivery timing differs.
func schedulingChanged(old, cur *database.Advertisement) bool {
	return old.Status != cur.Status ||
		old.FrequencyCapMinutes != cur.FrequencyCapMinutes ||
		!sameTime(old.StartDate, cur.StartDate) ||
		!sameTime(old.EndDate, cur.EndDate)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// Sync reconciles scheduling with the stored advertisements: active ads past
// their end date are deactivated and their jobs cancelled, other active ads
// get a delivery job when none is queued or running. It returns how many ads
// were scheduled and expired.
func (s *Service) Sync(ctx context.Context) (scheduled, expired int, err error) {
	ads, err := s.repo.ListActiveAdvertisements(ctx)
	if err != nil {
		return 0, 0, err
	}
	now := s.queue.Clock().Now()

	for _, ad := range ads {
		if ctx.Err() != nil {
			return scheduled, expired, ctx.Err()
		}
		if ad.Expired(now) {
			if err := s.repo.SetAdvertisementStatus(ctx, ad.ID, database.StatusInactive); err != nil {
				return scheduled, expired, err
			}
			if _, err := s.queue.Cancel(ctx, ad.ID); err != nil {
				return scheduled, expired, err
			}
			expired++
			s.logger.InfoContext(ctx, "Advertisement expired", "advertisement_id", ad.ID)
			continue
		}
		// A running delivery schedules its own successor.
		queued, err := s.queue.HasQueued(ctx, ad.ID, KindDelivery)
		if err != nil {
			return scheduled, expired, err
		}
		if queued {
			continue
		}
		job, err := s.Schedule(ctx, ad)
		if err != nil {
			return scheduled, expired, err
		}
		if job != nil {
			scheduled++
		}
	}
	return scheduled, expired, nil
}
