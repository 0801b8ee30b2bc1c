package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/edgard/promobot/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
  admin_user_id: 42
api:
  token: "secret"
`)

	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Delivery.ChunkSize != config.DefaultDeliveryChunkSize {
		t.Errorf("Delivery.ChunkSize = %d, want %d", cfg.Delivery.ChunkSize, config.DefaultDeliveryChunkSize)
	}
	if cfg.Queue.PollInterval != time.Second {
		t.Errorf("Queue.PollInterval = %v, want 1s", cfg.Queue.PollInterval)
	}
	if cfg.Messages.Welcome != config.DefaultMessages.Welcome {
		t.Errorf("Messages.Welcome = %q, want default", cfg.Messages.Welcome)
	}
	if len(cfg.Scheduler.Tasks) != len(config.DefaultTasks) {
		t.Errorf("Scheduler.Tasks has %d entries, want %d", len(cfg.Scheduler.Tasks), len(config.DefaultTasks))
	}
	if !cfg.IsAdmin(42) || cfg.IsAdmin(7) || cfg.IsAdmin(0) {
		t.Errorf("IsAdmin() does not match admin_user_id 42")
	}
	if cfg.Telegram.UseWebhook() {
		t.Errorf("UseWebhook() = true without webhook_url")
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
logger:
  level: debug
telegram:
  token: "123:abc"
  admin_user_id: 42
  webhook_url: "https://bot.example.com/telegram/webhook"
delivery:
  chunk_size: 50
  retry_delay: 5s
scheduler:
  tasks:
    sql_maintenance:
      enabled: false
api:
  enabled: false
`)

	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Logger.Level != "debug" {
		t.Errorf("Logger.Level = %q, want debug", cfg.Logger.Level)
	}
	if cfg.Delivery.ChunkSize != 50 {
		t.Errorf("Delivery.ChunkSize = %d, want 50", cfg.Delivery.ChunkSize)
	}
	if cfg.Delivery.RetryDelay != 5*time.Second {
		t.Errorf("Delivery.RetryDelay = %v, want 5s", cfg.Delivery.RetryDelay)
	}
	task := cfg.Scheduler.Tasks["sql_maintenance"]
	if task.Enabled {
		t.Errorf("sql_maintenance should be disabled")
	}
	if task.Schedule != config.DefaultTasks["sql_maintenance"].Schedule {
		t.Errorf("sql_maintenance schedule = %q, want default kept", task.Schedule)
	}
	if !cfg.Telegram.UseWebhook() {
		t.Errorf("UseWebhook() = false with webhook_url set")
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	path := writeConfig(t, `
telegram:
  admin_user_id: 42
api:
  enabled: false
`)
	t.Setenv("PROMOBOT_TELEGRAM_TOKEN", "from-env")

	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Telegram.Token != "from-env" {
		t.Errorf("Telegram.Token = %q, want from-env", cfg.Telegram.Token)
	}
}

func TestLoadConfig_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "missing token",
			body: "telegram:\n  admin_user_id: 1\napi:\n  enabled: false\n",
		},
		{
			name: "missing admin",
			body: "telegram:\n  token: x\napi:\n  enabled: false\n",
		},
		{
			name: "api enabled without token",
			body: "telegram:\n  token: x\n  admin_user_id: 1\n",
		},
		{
			name: "invalid log level",
			body: "logger:\n  level: trace\ntelegram:\n  token: x\n  admin_user_id: 1\napi:\n  enabled: false\n",
		},
		{
			name: "chunk size out of range",
			body: "telegram:\n  token: x\n  admin_user_id: 1\ndelivery:\n  chunk_size: 0\napi:\n  enabled: false\n",
		},
		{
			name: "webhook without api",
			body: "telegram:\n  token: x\n  admin_user_id: 1\n  webhook_url: https://bot.example.com/hook\napi:\n  enabled: false\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadConfig(writeConfig(t, tt.body))
			if err == nil {
				t.Fatalf("LoadConfig() expected error")
			}
			if !errors.Is(err, config.ErrConfiguration) {
				t.Errorf("error %v does not wrap ErrConfiguration", err)
			}
		})
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("PROMOBOT_TELEGRAM_TOKEN", "x")
	t.Setenv("PROMOBOT_TELEGRAM_ADMIN_USER_ID", "9")
	t.Setenv("PROMOBOT_API_ENABLED", "false")

	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Telegram.AdminUserID != 9 {
		t.Errorf("AdminUserID = %d, want 9", cfg.Telegram.AdminUserID)
	}
	if cfg.Database.Path != config.DefaultDBPath {
		t.Errorf("Database.Path = %q, want default", cfg.Database.Path)
	}
}
