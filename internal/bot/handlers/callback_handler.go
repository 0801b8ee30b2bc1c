package handlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/promobot/internal/callback"
)

// mediaGroupLimit is the maximum number of photos Telegram accepts per album.
const mediaGroupLimit = 10

// NewCallbackHandler returns the handler for every inline keyboard press.
func NewCallbackHandler(deps HandlerDeps) bot.HandlerFunc {
	return callbackHandler{deps: deps, nav: navigator{deps}}.Handle
}

type callbackHandler struct {
	deps HandlerDeps
	nav  navigator
}

func (h callbackHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	q := update.CallbackQuery
	if q == nil {
		return
	}
	log := h.deps.Logger.With("handler", "callback", "data", q.Data, "user_id", q.From.ID)

	// Telegram keeps a spinner on the button until the query is answered.
	var (
		answer string
		alert  bool
	)
	defer func() {
		_, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
			CallbackQueryID: q.ID,
			Text:            answer,
			ShowAlert:       alert,
		})
		if err != nil {
			log.WarnContext(ctx, "Failed to answer callback query", "error", err)
		}
	}()

	msg := q.Message.Message
	d, err := callback.Parse(q.Data)
	if err != nil || msg == nil {
		log.InfoContext(ctx, "Ignoring unusable callback", "error", err)
		answer, alert = h.deps.Config.Messages.StaleCallback, true
		return
	}
	chatID := msg.Chat.ID
	var back bool

	switch d.Action {
	case callback.ActionBack:
		prev, ok := h.deps.Sessions.Previous(chatID)
		if !ok {
			prev = callback.Data{Action: callback.ActionHome}
		}
		d, back = prev, ok

	case callback.ActionStoreMenu:
		answer, alert = h.sendStoreMenu(ctx, b, log, chatID, d.Arg(0))
		return

	case callback.ActionMenu:
		text, leaf, err := h.nav.actionText(ctx, d.Arg(0))
		if err != nil {
			answer, alert = h.failure(ctx, log, err)
			return
		}
		if leaf {
			if err := sendText(ctx, b, chatID, text); err != nil {
				log.ErrorContext(ctx, "Failed to send action text", "error", err)
			}
			return
		}
	}

	v, err := h.nav.render(ctx, d)
	if err != nil {
		if back && errors.Is(err, errStale) {
			h.deps.Sessions.DropPrevious(chatID)
		}
		answer, alert = h.failure(ctx, log, err)
		return
	}

	switch {
	case d.Action == callback.ActionHome:
		h.deps.Sessions.Reset(chatID)
	case back:
		h.deps.Sessions.Back(chatID)
	default:
		h.deps.Sessions.Push(chatID, d)
	}
	if err := showView(ctx, b, msg, v); err != nil {
		log.ErrorContext(ctx, "Failed to show view", "error", err, "view", d.String())
	}
}

// failure maps a render error to the callback answer.
func (h callbackHandler) failure(ctx context.Context, log *slog.Logger, err error) (string, bool) {
	if errors.Is(err, errStale) {
		log.InfoContext(ctx, "Stale callback", "error", err)
		return h.deps.Config.Messages.StaleCallback, true
	}
	log.ErrorContext(ctx, "Failed to handle callback", "error", err)
	return h.deps.Config.Messages.GeneralError, true
}

// sendStoreMenu sends the store's menu images as albums of up to ten photos.
func (h callbackHandler) sendStoreMenu(ctx context.Context, b *bot.Bot, log *slog.Logger, chatID, storeID int64) (string, bool) {
	s, err := h.nav.activeStore(ctx, storeID)
	if err != nil {
		return h.failure(ctx, log, err)
	}
	if len(s.MenuURLs) == 0 {
		return h.deps.Config.Messages.StoreMenuEmpty, true
	}

	for start := 0; start < len(s.MenuURLs); start += mediaGroupLimit {
		urls := s.MenuURLs[start:min(start+mediaGroupLimit, len(s.MenuURLs))]

		// Albums need at least two items.
		if len(urls) == 1 {
			_, err = b.SendPhoto(ctx, &bot.SendPhotoParams{
				ChatID: chatID,
				Photo:  &models.InputFileString{Data: urls[0]},
			})
		} else {
			media := make([]models.InputMedia, 0, len(urls))
			for _, u := range urls {
				media = append(media, &models.InputMediaPhoto{Media: u})
			}
			_, err = b.SendMediaGroup(ctx, &bot.SendMediaGroupParams{ChatID: chatID, Media: media})
		}
		if err != nil {
			log.ErrorContext(ctx, "Failed to send store menu", "error", err, "store_id", storeID)
			return h.deps.Config.Messages.GeneralError, true
		}
	}
	return "", false
}
