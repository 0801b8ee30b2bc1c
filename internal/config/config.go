// Package config provides configuration loading, validation, and management
// for promobot. It handles reading from YAML files, environment overrides,
// setting default values, and validating configuration parameters.
package config

import (
	"time"

	"github.com/go-telegram/bot/models"
)

// Config defines the application configuration parameters for all components.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Messages  MessagesConfig  `mapstructure:"messages"`
	Delivery  DeliveryConfig  `mapstructure:"delivery"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Session   SessionConfig   `mapstructure:"session"`
	API       APIConfig       `mapstructure:"api"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// DatabaseConfig holds the SQLite database settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// TelegramConfig holds bot credentials and transport settings.
type TelegramConfig struct {
	Token              string `mapstructure:"token"                validate:"required"`
	AdminUserID        int64  `mapstructure:"admin_user_id"        validate:"required,gt=0"`
	WebhookURL         string `mapstructure:"webhook_url"          validate:"omitempty,url"`
	WebhookSecret      string `mapstructure:"webhook_secret"`
	DropPendingUpdates bool   `mapstructure:"drop_pending_updates"`

	// BotInfo is filled at startup from getMe.
	BotInfo *models.User `mapstructure:"-"`
}

// UseWebhook reports whether updates arrive through the API server instead of long polling.
func (t TelegramConfig) UseWebhook() bool {
	return t.WebhookURL != ""
}

// MessagesConfig holds every user-facing bot text.
type MessagesConfig struct {
	Welcome        string `mapstructure:"welcome"         validate:"required"`
	Help           string `mapstructure:"help"            validate:"required"`
	Unauthorized   string `mapstructure:"unauthorized"    validate:"required"`
	GeneralError   string `mapstructure:"general_error"   validate:"required"`
	MenuEmpty      string `mapstructure:"menu_empty"      validate:"required"`
	StoresEmpty    string `mapstructure:"stores_empty"    validate:"required"`
	RecommendEmpty string `mapstructure:"recommend_empty" validate:"required"`
	StaleCallback  string `mapstructure:"stale_callback"  validate:"required"`
	StoreMenuEmpty string `mapstructure:"store_menu_empty" validate:"required"`
	StatsFmt       string `mapstructure:"stats_fmt"       validate:"required"`

	RecommendButton string `mapstructure:"recommend_button" validate:"required"`
	ViewStoreButton string `mapstructure:"view_store_button" validate:"required"`
	StoreMenuButton string `mapstructure:"store_menu_button" validate:"required"`
	BackButton      string `mapstructure:"back_button"      validate:"required"`
	HomeButton      string `mapstructure:"home_button"      validate:"required"`
	PrevButton      string `mapstructure:"prev_button"      validate:"required"`
	NextButton      string `mapstructure:"next_button"      validate:"required"`
}

// DeliveryConfig controls how broadcast messages are fanned out and sent.
type DeliveryConfig struct {
	ChunkSize          int           `mapstructure:"chunk_size"           validate:"min=1,max=1000"`
	RatePerSecond      int           `mapstructure:"rate_per_second"      validate:"min=1,max=30"`
	MaxRetries         int           `mapstructure:"max_retries"          validate:"min=0,max=10"`
	RetryDelay         time.Duration `mapstructure:"retry_delay"          validate:"min=0,max=1m"`
	SendTimeout        time.Duration `mapstructure:"send_timeout"         validate:"min=1s,max=2m"`
	BreakerMaxFailures uint32        `mapstructure:"breaker_max_failures" validate:"min=1"`
	BreakerOpenTimeout time.Duration `mapstructure:"breaker_open_timeout" validate:"min=1s"`
}

// QueueConfig controls the persistent job queue worker.
type QueueConfig struct {
	Workers            int           `mapstructure:"workers"              validate:"min=1,max=64"`
	PollInterval       time.Duration `mapstructure:"poll_interval"        validate:"min=100ms,max=1m"`
	BatchSize          int           `mapstructure:"batch_size"           validate:"min=1,max=500"`
	MaxAttempts        int           `mapstructure:"max_attempts"         validate:"min=1,max=20"`
	RetryDelay         time.Duration `mapstructure:"retry_delay"          validate:"min=0"`
	ReservationTimeout time.Duration `mapstructure:"reservation_timeout"  validate:"min=1m"`
	FailedJobRetention time.Duration `mapstructure:"failed_job_retention" validate:"min=1h"`
}

// SessionConfig controls the per-chat navigation context.
type SessionConfig struct {
	TTL      time.Duration `mapstructure:"ttl"       validate:"min=1m"`
	Capacity int           `mapstructure:"capacity"  validate:"min=1"`
	PageSize int           `mapstructure:"page_size" validate:"min=1,max=20"`
}

// APIConfig controls the admin HTTP API.
type APIConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Addr           string   `mapstructure:"addr"            validate:"required_if=Enabled true"`
	Token          string   `mapstructure:"token"           validate:"required_if=Enabled true"`
	GinMode        string   `mapstructure:"gin_mode"        validate:"oneof=debug release test"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// SchedulerConfig maps task names to their cron settings.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig configures a single scheduled task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// IsAdmin reports whether the given Telegram user is the configured administrator.
func (c *Config) IsAdmin(userID int64) bool {
	return userID != 0 && userID == c.Telegram.AdminUserID
}
