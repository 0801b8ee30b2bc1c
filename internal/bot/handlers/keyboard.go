package handlers

import (
	"net/url"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/promobot/internal/callback"
	"github.com/edgard/promobot/internal/config"
	"github.com/edgard/promobot/internal/database"
)

// menuColumns is the number of menu buttons per keyboard row.
const menuColumns = 2

// KeyboardBuilder assembles inline keyboards row by row.
type KeyboardBuilder struct {
	msgs config.MessagesConfig
	rows [][]models.InlineKeyboardButton
}

// NewKeyboardBuilder returns an empty builder labelling navigation buttons with msgs.
func NewKeyboardBuilder(msgs config.MessagesConfig) *KeyboardBuilder {
	return &KeyboardBuilder{msgs: msgs}
}

// Row appends a row of buttons. Empty rows are skipped.
func (k *KeyboardBuilder) Row(buttons ...models.InlineKeyboardButton) *KeyboardBuilder {
	if len(buttons) > 0 {
		k.rows = append(k.rows, buttons)
	}
	return k
}

// Grid appends buttons cols per row.
func (k *KeyboardBuilder) Grid(cols int, buttons []models.InlineKeyboardButton) *KeyboardBuilder {
	for start := 0; start < len(buttons); start += cols {
		end := min(start+cols, len(buttons))
		k.Row(buttons[start:end]...)
	}
	return k
}

// MenuButtons lays out menu buttons two per row. An action button holding a
// URL and listed in urlLeaves opens the URL directly.
func (k *KeyboardBuilder) MenuButtons(buttons []*database.MenuButton, urlLeaves map[int64]bool) *KeyboardBuilder {
	row := make([]models.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		if urlLeaves[b.ID] {
			row = append(row, models.InlineKeyboardButton{Text: b.Name, URL: b.Action})
			continue
		}
		row = append(row, models.InlineKeyboardButton{Text: b.Name, CallbackData: callback.Menu(b.ID)})
	}
	return k.Grid(menuColumns, row)
}

// Stores lists stores one per row.
func (k *KeyboardBuilder) Stores(stores []*database.Store) *KeyboardBuilder {
	for _, s := range stores {
		k.Row(models.InlineKeyboardButton{Text: s.Name, CallbackData: callback.Store(s.ID)})
	}
	return k
}

// Pager adds Prev/Next buttons around page when there are more results.
// pageData builds the callback data for a page number.
func (k *KeyboardBuilder) Pager(page, pageSize, total int, pageData func(int) string) *KeyboardBuilder {
	var row []models.InlineKeyboardButton
	if page > 0 {
		row = append(row, models.InlineKeyboardButton{Text: k.msgs.PrevButton, CallbackData: pageData(page - 1)})
	}
	if (page+1)*pageSize < total {
		row = append(row, models.InlineKeyboardButton{Text: k.msgs.NextButton, CallbackData: pageData(page + 1)})
	}
	return k.Row(row...)
}

// Links adds URL buttons two per row, skipping entries without a usable URL.
func (k *KeyboardBuilder) Links(links database.Links) *KeyboardBuilder {
	row := make([]models.InlineKeyboardButton, 0, len(links))
	for _, l := range links {
		if l.Text == "" || !IsURL(l.URL) {
			continue
		}
		row = append(row, models.InlineKeyboardButton{Text: l.Text, URL: l.URL})
	}
	return k.Grid(menuColumns, row)
}

// Recommend adds the recommended stores entry.
func (k *KeyboardBuilder) Recommend() *KeyboardBuilder {
	return k.Row(models.InlineKeyboardButton{Text: k.msgs.RecommendButton, CallbackData: callback.Recommend(0)})
}

// Navigation adds the Back and Home row.
func (k *KeyboardBuilder) Navigation() *KeyboardBuilder {
	return k.Row(
		models.InlineKeyboardButton{Text: k.msgs.BackButton, CallbackData: callback.Back()},
		models.InlineKeyboardButton{Text: k.msgs.HomeButton, CallbackData: callback.Home()},
	)
}

// Build returns the markup, or nil when no rows were added.
func (k *KeyboardBuilder) Build() *models.InlineKeyboardMarkup {
	if len(k.rows) == 0 {
		return nil
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: k.rows}
}

// IsURL reports whether s is an absolute http(s) or tg URL.
func IsURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || u.Host == "" && u.Scheme != "tg" {
		return false
	}
	switch u.Scheme {
	case "http", "https", "tg":
		return true
	}
	return false
}
