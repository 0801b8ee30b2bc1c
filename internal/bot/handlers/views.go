package handlers

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/promobot/internal/callback"
	"github.com/edgard/promobot/internal/database"
)

// maxPage bounds page numbers taken from callback data.
const maxPage = 10000

// errStale is returned for views whose record is gone or disabled.
var errStale = errors.New("stale view")

// view is a rendered screen of the bot menu.
type view struct {
	text     string
	keyboard *models.InlineKeyboardMarkup
}

// navigator renders menu screens from the database.
type navigator struct {
	deps HandlerDeps
}

func (n navigator) keyboard() *KeyboardBuilder {
	return NewKeyboardBuilder(n.deps.Config.Messages)
}

func (n navigator) pageSize() int {
	if size := n.deps.Config.Session.PageSize; size > 0 {
		return size
	}
	return 8
}

// welcome returns the welcome text with the bot username filled in.
func (n navigator) welcome() string {
	text := n.deps.Config.Messages.Welcome
	if info := n.deps.Config.Telegram.BotInfo; info != nil && info.Username != "" {
		text = strings.ReplaceAll(text, "@botname", "@"+info.Username)
	}
	return text
}

// render builds the screen for d.
func (n navigator) render(ctx context.Context, d callback.Data) (view, error) {
	switch d.Action {
	case callback.ActionHome:
		return n.root(ctx, html.EscapeString(n.welcome()))
	case callback.ActionMenu:
		return n.menu(ctx, d.Arg(0))
	case callback.ActionStores:
		return n.stores(ctx, d.Arg(0), pageArg(d.Arg(1)))
	case callback.ActionStore:
		return n.store(ctx, d.Arg(0))
	case callback.ActionRecommend:
		return n.recommended(ctx, pageArg(d.Arg(0)))
	default:
		return view{}, fmt.Errorf("%w: no view for %q", errStale, d.String())
	}
}

// pageArg clamps a page number from callback data to [0, maxPage].
func pageArg(v int64) int {
	return int(min(max(v, 0), maxPage))
}

// lastPage returns the index of the last page holding total items, or 0.
func lastPage(total, size int) int {
	if total <= 0 {
		return 0
	}
	return (total - 1) / size
}

// root lists the top-level menu buttons under the HTML text.
func (n navigator) root(ctx context.Context, text string) (view, error) {
	buttons, err := n.deps.Repo.ListMenuButtons(ctx, nil)
	if err != nil {
		return view{}, err
	}
	leaves, err := n.urlLeaves(ctx, buttons)
	if err != nil {
		return view{}, err
	}
	if len(buttons) == 0 {
		text = html.EscapeString(n.deps.Config.Messages.MenuEmpty)
	}
	kb := n.keyboard().MenuButtons(buttons, leaves).Recommend()
	return view{text: text, keyboard: kb.Build()}, nil
}

// menu opens a menu button: a store category or a submenu.
func (n navigator) menu(ctx context.Context, id int64) (view, error) {
	button, err := n.activeButton(ctx, id)
	if err != nil {
		return view{}, err
	}
	if button.Type == database.MenuButtonTypeStore {
		return n.stores(ctx, id, 0)
	}

	children, err := n.deps.Repo.ListMenuButtons(ctx, &button.ID)
	if err != nil {
		return view{}, err
	}
	leaves, err := n.urlLeaves(ctx, children)
	if err != nil {
		return view{}, err
	}
	text := "<b>" + html.EscapeString(button.Name) + "</b>"
	if len(children) == 0 {
		text += "\n\n" + html.EscapeString(n.deps.Config.Messages.MenuEmpty)
	}
	kb := n.keyboard().MenuButtons(children, leaves).Navigation()
	return view{text: text, keyboard: kb.Build()}, nil
}

// stores pages through the stores of a category.
func (n navigator) stores(ctx context.Context, menuID int64, page int) (view, error) {
	button, err := n.activeButton(ctx, menuID)
	if err != nil {
		return view{}, err
	}
	size := n.pageSize()
	page = max(page, 0)
	stores, total, err := n.deps.Repo.ListStoresByMenuButton(ctx, menuID, database.Page{Limit: size, Offset: page * size})
	if err != nil {
		return view{}, err
	}
	if last := lastPage(total, size); page > last {
		page = last
		stores, total, err = n.deps.Repo.ListStoresByMenuButton(ctx, menuID, database.Page{Limit: size, Offset: page * size})
		if err != nil {
			return view{}, err
		}
	}

	text := "<b>" + html.EscapeString(button.Name) + "</b>"
	if total == 0 {
		text += "\n\n" + html.EscapeString(n.deps.Config.Messages.StoresEmpty)
	}
	kb := n.keyboard().
		Stores(stores).
		Pager(page, size, total, func(p int) string { return callback.Stores(menuID, p) }).
		Navigation()
	return view{text: text, keyboard: kb.Build()}, nil
}

// recommended pages through the recommended stores.
func (n navigator) recommended(ctx context.Context, page int) (view, error) {
	size := n.pageSize()
	page = max(page, 0)
	stores, total, err := n.deps.Repo.ListRecommendedStores(ctx, database.Page{Limit: size, Offset: page * size})
	if err != nil {
		return view{}, err
	}
	if last := lastPage(total, size); page > last {
		page = last
		stores, total, err = n.deps.Repo.ListRecommendedStores(ctx, database.Page{Limit: size, Offset: page * size})
		if err != nil {
			return view{}, err
		}
	}

	text := "<b>" + html.EscapeString(n.deps.Config.Messages.RecommendButton) + "</b>"
	if total == 0 {
		text += "\n\n" + html.EscapeString(n.deps.Config.Messages.RecommendEmpty)
	}
	kb := n.keyboard().
		Stores(stores).
		Pager(page, size, total, callback.Recommend).
		Navigation()
	return view{text: text, keyboard: kb.Build()}, nil
}

// store renders a store card.
func (n navigator) store(ctx context.Context, id int64) (view, error) {
	s, err := n.activeStore(ctx, id)
	if err != nil {
		return view{}, err
	}
	kb := n.keyboard().Links(s.SubBtns)
	if len(s.MenuURLs) > 0 {
		kb.Row(models.InlineKeyboardButton{Text: n.deps.Config.Messages.StoreMenuButton, CallbackData: callback.StoreMenu(s.ID)})
	}
	kb.Navigation()
	return view{text: StoreCard(s), keyboard: kb.Build()}, nil
}

// StoreCard formats the store details as HTML.
func StoreCard(s *database.Store) string {
	var b strings.Builder
	b.WriteString("<b>")
	b.WriteString(html.EscapeString(s.Name))
	b.WriteString("</b>")
	if addr := strings.TrimSpace(s.Address); addr != "" {
		b.WriteString("\n📍 ")
		b.WriteString(html.EscapeString(addr))
	}
	if hours := strings.TrimSpace(s.Hours); hours != "" {
		b.WriteString("\n🕒 ")
		b.WriteString(html.EscapeString(hours))
	}
	return b.String()
}

func (n navigator) activeButton(ctx context.Context, id int64) (*database.MenuButton, error) {
	button, err := n.deps.Repo.GetMenuButton(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: menu button %d", errStale, id)
	}
	if err != nil {
		return nil, err
	}
	if button.Status != database.StatusActive {
		return nil, fmt.Errorf("%w: menu button %d disabled", errStale, id)
	}
	return button, nil
}

func (n navigator) activeStore(ctx context.Context, id int64) (*database.Store, error) {
	s, err := n.deps.Repo.GetStore(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: store %d", errStale, id)
	}
	if err != nil {
		return nil, err
	}
	if s.Status != database.StatusActive {
		return nil, fmt.Errorf("%w: store %d disabled", errStale, id)
	}
	return s, nil
}

// actionText returns the text of an action button without children. It
// reports false for store categories and submenus, which render as views.
func (n navigator) actionText(ctx context.Context, id int64) (string, bool, error) {
	button, err := n.activeButton(ctx, id)
	if err != nil || button.Type != database.MenuButtonTypeAction {
		return "", false, err
	}
	children, err := n.deps.Repo.ListMenuButtons(ctx, &button.ID)
	if err != nil || len(children) > 0 {
		return "", false, err
	}
	text := strings.TrimSpace(button.Action)
	if text == "" {
		text = n.deps.Config.Messages.MenuEmpty
	}
	return text, true, nil
}

// urlLeaves finds the action buttons that hold a URL and have no children.
func (n navigator) urlLeaves(ctx context.Context, buttons []*database.MenuButton) (map[int64]bool, error) {
	leaves := make(map[int64]bool)
	for _, b := range buttons {
		if b.Type != database.MenuButtonTypeAction || !IsURL(b.Action) {
			continue
		}
		children, err := n.deps.Repo.ListMenuButtons(ctx, &b.ID)
		if err != nil {
			return nil, err
		}
		if len(children) == 0 {
			leaves[b.ID] = true
		}
	}
	return leaves, nil
}
