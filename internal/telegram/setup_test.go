package telegram

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/promobot/internal/bot/handlers"
	"github.com/edgard/promobot/internal/config"
)

type recorder struct {
	mu    sync.Mutex
	calls map[string]map[string]string
}

func newFakeBot(t *testing.T) (*bot.Bot, *recorder) {
	t.Helper()
	rec := &recorder{calls: make(map[string]map[string]string)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		_ = r.ParseMultipartForm(1 << 20)
		form := make(map[string]string)
		if r.MultipartForm != nil {
			for k, v := range r.MultipartForm.Value {
				form[k] = v[0]
			}
		}
		rec.mu.Lock()
		rec.calls[method] = form
		rec.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"result":true}`)
	}))
	t.Cleanup(srv.Close)

	b, err := NewTelegramBot("123456789:test", nil, bot.WithServerURL(srv.URL), bot.WithSkipGetMe())
	if err != nil {
		t.Fatalf("NewTelegramBot() error = %v", err)
	}
	return b, rec
}

func (r *recorder) form(method string) (map[string]string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.calls[method]
	return f, ok
}

func TestNewTelegramBot_RequiresToken(t *testing.T) {
	t.Parallel()
	if _, err := NewTelegramBot("", nil); err == nil {
		t.Error("expected error for empty token")
	}
}

func TestSetCommands(t *testing.T) {
	t.Parallel()
	b, rec := newFakeBot(t)

	registered := map[string]handlers.RegisteredHandler{
		"/start": {HandlerType: bot.HandlerTypeMessageText, Pattern: "start", Description: "Open the menu"},
		"/help":  {HandlerType: bot.HandlerTypeMessageText, Pattern: "help", Description: "Help"},
		"/stats": {HandlerType: bot.HandlerTypeMessageText, Pattern: "stats"},
		"cb":     {HandlerType: bot.HandlerTypeCallbackQueryData, Description: "ignored"},
	}
	if err := SetCommands(context.Background(), b, registered); err != nil {
		t.Fatalf("SetCommands() error = %v", err)
	}

	form, ok := rec.form("setMyCommands")
	if !ok {
		t.Fatal("setMyCommands was not called")
	}
	var commands []models.BotCommand
	if err := json.Unmarshal([]byte(form["commands"]), &commands); err != nil {
		t.Fatalf("decode commands %q: %v", form["commands"], err)
	}
	if len(commands) != 2 || commands[0].Command != "help" || commands[1].Command != "start" {
		t.Errorf("commands = %+v, want help and start", commands)
	}
}

func TestConfigureUpdates(t *testing.T) {
	t.Parallel()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name   string
		cfg    config.TelegramConfig
		method string
	}{
		{"polling removes webhook", config.TelegramConfig{}, "deleteWebhook"},
		{"webhook is registered", config.TelegramConfig{WebhookURL: "https://bot.example.com/api/v1/telegram/webhook", WebhookSecret: "abc"}, "setWebhook"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b, rec := newFakeBot(t)
			if err := ConfigureUpdates(context.Background(), b, tt.cfg, log); err != nil {
				t.Fatalf("ConfigureUpdates() error = %v", err)
			}
			form, ok := rec.form(tt.method)
			if !ok {
				t.Fatalf("%s was not called", tt.method)
			}
			if tt.cfg.WebhookSecret != "" && form["secret_token"] != tt.cfg.WebhookSecret {
				t.Errorf("secret_token = %q, want %q", form["secret_token"], tt.cfg.WebhookSecret)
			}
		})
	}
}

func TestRegisterHandlers_AppliesMiddleware(t *testing.T) {
	t.Parallel()

	var order []string
	mw := func(name string) bot.Middleware {
		return func(next bot.HandlerFunc) bot.HandlerFunc {
			return func(ctx context.Context, b *bot.Bot, u *models.Update) {
				order = append(order, name)
				next(ctx, b, u)
			}
		}
	}
	h := applyMiddleware(func(context.Context, *bot.Bot, *models.Update) {
		order = append(order, "handler")
	}, []bot.Middleware{mw("outer"), mw("inner")})
	h(context.Background(), nil, &models.Update{})

	if strings.Join(order, ",") != "outer,inner,handler" {
		t.Errorf("order = %v", order)
	}

	b, _ := newFakeBot(t)
	if err := RegisterHandlers(nil, nil, nil); err == nil {
		t.Error("RegisterHandlers(nil bot) should fail")
	}
	if err := RegisterHandlers(b, nil, map[string]handlers.RegisteredHandler{}); err != nil {
		t.Errorf("RegisterHandlers(empty) error = %v", err)
	}
}
