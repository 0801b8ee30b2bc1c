package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/promobot/internal/config"
	"github.com/edgard/promobot/internal/database"
	"github.com/edgard/promobot/internal/session"
)

const (
	adminID = 7
	userID  = 8
	chatID  = 42
)

// apiCall is one request received by the fake Bot API.
type apiCall struct {
	method string
	form   map[string]string
}

type fakeAPI struct {
	mu    sync.Mutex
	calls []apiCall
}

func (f *fakeAPI) byMethod(method string) []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []apiCall
	for _, c := range f.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

type fakePins struct{ calls []int64 }

func (f *fakePins) SendActive(_ context.Context, chatID int64) (bool, error) {
	f.calls = append(f.calls, chatID)
	return true, nil
}

type harness struct {
	deps HandlerDeps
	repo database.Repository
	api  *fakeAPI
	bot  *bot.Bot
	pins *fakePins
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	api := &fakeAPI{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		_ = r.ParseMultipartForm(1 << 20)
		form := make(map[string]string)
		for k, v := range r.Form {
			form[k] = v[0]
		}
		if r.MultipartForm != nil {
			for k, v := range r.MultipartForm.Value {
				form[k] = v[0]
			}
		}
		api.mu.Lock()
		api.calls = append(api.calls, apiCall{method: method, form: form})
		api.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		msg := `{"message_id":100,"date":0,"chat":{"id":42,"type":"private"}}`
		switch method {
		case "answerCallbackQuery":
			_, _ = io.WriteString(w, `{"ok":true,"result":true}`)
		case "sendMediaGroup":
			_, _ = io.WriteString(w, `{"ok":true,"result":[`+msg+`]}`)
		default:
			_, _ = io.WriteString(w, `{"ok":true,"result":`+msg+`}`)
		}
	}))
	t.Cleanup(srv.Close)

	b, err := bot.New("123:test", bot.WithServerURL(srv.URL), bot.WithSkipGetMe())
	if err != nil {
		t.Fatalf("bot.New() error = %v", err)
	}

	db, err := database.NewDB(":memory:")
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })
	repo := database.NewRepository(db, nil)

	cfg := &config.Config{
		Telegram: config.TelegramConfig{AdminUserID: adminID, BotInfo: &models.User{Username: "promo_bot"}},
		Messages: config.DefaultMessages,
		Session:  config.SessionConfig{PageSize: 2},
	}
	pins := &fakePins{}
	deps := HandlerDeps{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config:   cfg,
		Repo:     repo,
		Sessions: session.New(100, time.Minute),
		Pins:     pins,
	}
	return &harness{deps: deps, repo: repo, api: api, bot: b, pins: pins}
}

func textUpdate(from int64, text string) *models.Update {
	return &models.Update{
		ID: 1,
		Message: &models.Message{
			ID:   10,
			From: &models.User{ID: from},
			Chat: models.Chat{ID: chatID, Type: "private", FirstName: "Ann", LastName: "Lee"},
			Text: text,
		},
	}
}

func callbackUpdate(data string) *models.Update {
	return &models.Update{
		ID: 2,
		CallbackQuery: &models.CallbackQuery{
			ID:   "q1",
			From: models.User{ID: userID},
			Data: data,
			Message: models.MaybeInaccessibleMessage{
				Message: &models.Message{ID: 55, Chat: models.Chat{ID: chatID, Type: "private"}, Text: "menu"},
			},
		},
	}
}

// seed creates a store category with three stores and an action submenu.
func (h *harness) seed(t *testing.T) (food *database.MenuButton, stores []*database.Store) {
	t.Helper()
	ctx := context.Background()

	food = &database.MenuButton{Name: "Food", Type: database.MenuButtonTypeStore, Status: database.StatusActive, SortOrder: 1}
	info := &database.MenuButton{Name: "Info", Type: database.MenuButtonTypeAction, Action: "Open daily 9-21", Status: database.StatusActive, SortOrder: 2}
	site := &database.MenuButton{Name: "Site", Type: database.MenuButtonTypeAction, Action: "https://example.com", Status: database.StatusActive, SortOrder: 3}
	for _, b := range []*database.MenuButton{food, info, site} {
		if err := h.repo.CreateMenuButton(ctx, b); err != nil {
			t.Fatalf("CreateMenuButton() error = %v", err)
		}
	}
	for i, name := range []string{"Pizza", "Sushi", "Tacos"} {
		s := &database.Store{
			Name:         name,
			Address:      "Main St " + name,
			Status:       database.StatusActive,
			MenuButtonID: &food.ID,
			SortOrder:    i,
			Recommend:    i == 0,
			SubBtns:      database.Links{{Text: "Instagram", URL: "https://instagram.com/" + name}, {Text: "bad", URL: "nope"}},
		}
		if err := h.repo.CreateStore(ctx, s); err != nil {
			t.Fatalf("CreateStore() error = %v", err)
		}
		stores = append(stores, s)
	}
	return food, stores
}

func TestStartHandler(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	food, _ := h.seed(t)

	NewStartHandler(h.deps)(context.Background(), h.bot, textUpdate(userID, "/start"))

	ids, err := h.repo.ListActiveChatIDs(context.Background())
	if err != nil || len(ids) != 1 || ids[0] != chatID {
		t.Fatalf("ListActiveChatIDs() = %v, %v; want [42]", ids, err)
	}

	sent := h.api.byMethod("sendMessage")
	if len(sent) != 1 {
		t.Fatalf("sendMessage calls = %d, want 1", len(sent))
	}
	if !strings.Contains(sent[0].form["text"], "@promo_bot") {
		t.Errorf("welcome text = %q, want bot username", sent[0].form["text"])
	}
	markup := sent[0].form["reply_markup"]
	for _, want := range []string{`"menu:` + itoa(food.ID) + `"`, `"rec:0"`, `"https://example.com"`, `"Info"`} {
		if !strings.Contains(markup, want) {
			t.Errorf("reply_markup %s missing %s", markup, want)
		}
	}
	if len(h.pins.calls) != 1 || h.pins.calls[0] != chatID {
		t.Errorf("pin sends = %v, want [42]", h.pins.calls)
	}
}

func TestStatsHandler_AdminOnly(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	handler := AdminOnly(h.deps)(NewStatsHandler(h.deps))

	handler(context.Background(), h.bot, textUpdate(userID, "/stats"))
	sent := h.api.byMethod("sendMessage")
	if len(sent) != 1 || sent[0].form["text"] != config.DefaultMessages.Unauthorized {
		t.Fatalf("non-admin got %+v, want unauthorized text", sent)
	}

	if err := h.repo.UpsertChat(context.Background(), chatID, "Ann"); err != nil {
		t.Fatalf("UpsertChat() error = %v", err)
	}
	handler(context.Background(), h.bot, textUpdate(adminID, "/stats"))
	sent = h.api.byMethod("sendMessage")
	if len(sent) != 2 || !strings.Contains(sent[1].form["text"], "Chats: 1 active / 1 total") {
		t.Errorf("admin stats = %q", sent[len(sent)-1].form["text"])
	}
}

func TestCallback_StoreListPagingAndBack(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)
	food, stores := h.seed(t)
	handle := NewCallbackHandler(h.deps)

	handle(ctx, h.bot, callbackUpdate("menu:"+itoa(food.ID)))
	edits := h.api.byMethod("editMessageText")
	if len(edits) != 1 {
		t.Fatalf("editMessageText calls = %d, want 1", len(edits))
	}
	markup := edits[0].form["reply_markup"]
	if !strings.Contains(markup, `"store:`+itoa(stores[0].ID)+`"`) || strings.Contains(markup, `"store:`+itoa(stores[2].ID)+`"`) {
		t.Errorf("first page markup = %s, want stores 1-2 only", markup)
	}
	if !strings.Contains(markup, `"stores:`+itoa(food.ID)+`:1"`) {
		t.Errorf("first page markup = %s, want next page button", markup)
	}

	handle(ctx, h.bot, callbackUpdate("store:"+itoa(stores[1].ID)))
	edits = h.api.byMethod("editMessageText")
	card := edits[1].form
	if !strings.Contains(card["text"], "<b>Sushi</b>") || !strings.Contains(card["text"], "Main St Sushi") {
		t.Errorf("store card = %q", card["text"])
	}
	if !strings.Contains(card["reply_markup"], "instagram.com/Sushi") || strings.Contains(card["reply_markup"], `"nope"`) {
		t.Errorf("store card markup = %s", card["reply_markup"])
	}

	handle(ctx, h.bot, callbackUpdate("back"))
	edits = h.api.byMethod("editMessageText")
	if len(edits) != 3 || !strings.Contains(edits[2].form["text"], "<b>Food</b>") {
		t.Errorf("back rendered %q, want the Food list", edits[len(edits)-1].form["text"])
	}

	if n := len(h.api.byMethod("answerCallbackQuery")); n != 3 {
		t.Errorf("answerCallbackQuery calls = %d, want 3", n)
	}
}

func TestCallback_BackWithoutHistoryShowsRoot(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.seed(t)

	NewCallbackHandler(h.deps)(context.Background(), h.bot, callbackUpdate("back"))
	edits := h.api.byMethod("editMessageText")
	if len(edits) != 1 || !strings.Contains(edits[0].form["text"], "Welcome") {
		t.Errorf("back without history = %+v, want root menu", edits)
	}
}

func TestCallback_BackToStaleViewKeepsHistory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)
	food, stores := h.seed(t)
	handle := NewCallbackHandler(h.deps)

	handle(ctx, h.bot, callbackUpdate("menu:"+itoa(food.ID)))
	handle(ctx, h.bot, callbackUpdate("store:"+itoa(stores[0].ID)))

	food.Status = database.StatusInactive
	if err := h.repo.UpdateMenuButton(ctx, food); err != nil {
		t.Fatalf("UpdateMenuButton() error = %v", err)
	}

	handle(ctx, h.bot, callbackUpdate("back"))
	answers := h.api.byMethod("answerCallbackQuery")
	if last := answers[len(answers)-1].form; last["text"] != config.DefaultMessages.StaleCallback {
		t.Errorf("back to disabled category answered %q, want stale alert", last["text"])
	}
	if cur, _ := h.deps.Sessions.Current(chatID); cur.String() != "store:"+itoa(stores[0].ID) {
		t.Errorf("current view = %q, want the store card", cur.String())
	}

	handle(ctx, h.bot, callbackUpdate("back"))
	edits := h.api.byMethod("editMessageText")
	if !strings.Contains(edits[len(edits)-1].form["text"], "Welcome") {
		t.Errorf("second back rendered %q, want root menu", edits[len(edits)-1].form["text"])
	}
}

func TestCallback_HugePageShowsLastPage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)
	food, stores := h.seed(t)
	handle := NewCallbackHandler(h.deps)

	tests := []struct {
		data      string
		wantStore int64
	}{
		{"stores:" + itoa(food.ID) + ":9223372036854775807", stores[2].ID},
		{"rec:9223372036854775807", stores[0].ID},
		{"rec:-5", stores[0].ID},
	}
	for i, tt := range tests {
		handle(ctx, h.bot, callbackUpdate(tt.data))
		edits := h.api.byMethod("editMessageText")
		if len(edits) != i+1 {
			t.Fatalf("%s: editMessageText calls = %d, want %d", tt.data, len(edits), i+1)
		}
		if markup := edits[i].form["reply_markup"]; !strings.Contains(markup, `"store:`+itoa(tt.wantStore)+`"`) {
			t.Errorf("%s: markup = %s, want store %d", tt.data, markup, tt.wantStore)
		}
	}
}

func TestCallback_StaleAndMalformed(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	handle := NewCallbackHandler(h.deps)

	for _, data := range []string{"store:999", "menu:999", "garbage:x", "unknown"} {
		handle(context.Background(), h.bot, callbackUpdate(data))
	}
	answers := h.api.byMethod("answerCallbackQuery")
	if len(answers) != 4 {
		t.Fatalf("answers = %d, want 4", len(answers))
	}
	for _, a := range answers {
		if a.form["text"] != config.DefaultMessages.StaleCallback || a.form["show_alert"] != "true" {
			t.Errorf("answer = %+v, want stale alert", a.form)
		}
	}
	if n := len(h.api.byMethod("editMessageText")); n != 0 {
		t.Errorf("stale callbacks edited %d messages", n)
	}
}

func TestCallback_ActionLeafSendsText(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.seed(t)

	buttons, err := h.repo.ListMenuButtons(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListMenuButtons() error = %v", err)
	}
	NewCallbackHandler(h.deps)(context.Background(), h.bot, callbackUpdate("menu:"+itoa(buttons[1].ID)))

	sent := h.api.byMethod("sendMessage")
	if len(sent) != 1 || sent[0].form["text"] != "Open daily 9-21" {
		t.Errorf("action leaf sent %+v", sent)
	}
}

func TestCallback_StoreMenu(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)

	urls := make(database.StringList, 11)
	for i := range urls {
		urls[i] = "https://cdn.example.com/menu/" + itoa(int64(i)) + ".jpg"
	}
	withMenu := &database.Store{Name: "Diner", Status: database.StatusActive, MenuURLs: urls}
	empty := &database.Store{Name: "Kiosk", Status: database.StatusActive}
	for _, s := range []*database.Store{withMenu, empty} {
		if err := h.repo.CreateStore(ctx, s); err != nil {
			t.Fatalf("CreateStore() error = %v", err)
		}
	}
	handle := NewCallbackHandler(h.deps)

	handle(ctx, h.bot, callbackUpdate("storemenu:"+itoa(withMenu.ID)))
	if n := len(h.api.byMethod("sendMediaGroup")); n != 1 {
		t.Errorf("sendMediaGroup calls = %d, want 1 album of ten", n)
	}
	if n := len(h.api.byMethod("sendPhoto")); n != 1 {
		t.Errorf("sendPhoto calls = %d, want 1 for the eleventh photo", n)
	}

	handle(ctx, h.bot, callbackUpdate("storemenu:"+itoa(empty.ID)))
	answers := h.api.byMethod("answerCallbackQuery")
	if last := answers[len(answers)-1].form; last["text"] != config.DefaultMessages.StoreMenuEmpty {
		t.Errorf("empty store menu answer = %+v", last)
	}
}

func TestRegisterChatMiddleware(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	var called bool
	next := func(context.Context, *bot.Bot, *models.Update) { called = true }
	RegisterChat(h.deps)(next)(context.Background(), h.bot, textUpdate(userID, "hello"))

	chats, _, err := h.repo.ListChats(context.Background(), database.Page{})
	if err != nil || len(chats) != 1 || chats[0].Name != "Ann Lee" {
		t.Errorf("ListChats() = %+v, %v; want Ann Lee", chats, err)
	}
	if !called {
		t.Error("middleware did not call next handler")
	}
}

func TestRegisterAllCommands(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	got := RegisterAllCommands(h.deps)
	for _, key := range []string{"/start", "/help", "/menu", "/stats", CallbackKey} {
		if _, ok := got[key]; !ok {
			t.Errorf("missing handler %s", key)
		}
	}
	if len(got["/stats"].Middleware) != 1 {
		t.Error("/stats should be admin only")
	}
	if got["/stats"].Description != "" {
		t.Error("/stats should be hidden from the command list")
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

func TestDefaultHandler(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	handle := NewDefaultHandler(h.deps)

	member := func(kind models.ChatMemberType) *models.Update {
		return &models.Update{MyChatMember: &models.ChatMemberUpdated{
			Chat:          models.Chat{ID: chatID, Type: "private", FirstName: "Ann"},
			NewChatMember: models.ChatMember{Type: kind},
		}}
	}

	handle(ctx, h.bot, member(models.ChatMemberTypeMember))
	if ids, _ := h.repo.ListActiveChatIDs(ctx); len(ids) != 1 {
		t.Fatalf("active chats after unblock = %v, want [42]", ids)
	}
	handle(ctx, h.bot, member(models.ChatMemberTypeBanned))
	if ids, _ := h.repo.ListActiveChatIDs(ctx); len(ids) != 0 {
		t.Fatalf("active chats after block = %v, want none", ids)
	}

	handle(ctx, h.bot, textUpdate(userID, "/unknown"))
	if n := len(h.api.byMethod("sendMessage")); n != 0 {
		t.Errorf("unknown command sent %d messages, want 0", n)
	}
	handle(ctx, h.bot, textUpdate(userID, "hello"))
	if n := len(h.api.byMethod("sendMessage")); n != 1 {
		t.Errorf("plain message sent %d messages, want 1 help reply", n)
	}
}
