package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ErrConfiguration wraps every loading or validation failure.
var ErrConfiguration = errors.New("configuration error")

// EnvPrefix is the prefix of environment overrides, e.g. PROMOBOT_TELEGRAM_TOKEN.
const EnvPrefix = "PROMOBOT"

// LoadConfig loads and validates configuration from:
// 1. Default values
// 2. the YAML file at path (optional)
// 3. PROMOBOT_* environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: failed to read config file %s: %v", ErrConfiguration, path, err)
			}
			// Config file not found is okay, defaults and env apply
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	return cfg, nil
}

// Validate checks struct tags on the whole configuration tree.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	// Webhook updates are served by the API server.
	if c.Telegram.UseWebhook() && !c.API.Enabled {
		return errors.New("telegram.webhook_url requires api.enabled")
	}
	return nil
}

// setDefaults sets default values for optional configuration parameters
func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", DefaultLogLevel)
	v.SetDefault("logger.json", DefaultLogJSON)

	v.SetDefault("database.path", DefaultDBPath)

	// Secrets have empty defaults so AutomaticEnv can bind them
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_user_id", 0)
	v.SetDefault("telegram.webhook_url", "")
	v.SetDefault("telegram.webhook_secret", "")
	v.SetDefault("telegram.drop_pending_updates", true)

	v.SetDefault("messages.welcome", DefaultMessages.Welcome)
	v.SetDefault("messages.help", DefaultMessages.Help)
	v.SetDefault("messages.unauthorized", DefaultMessages.Unauthorized)
	v.SetDefault("messages.general_error", DefaultMessages.GeneralError)
	v.SetDefault("messages.menu_empty", DefaultMessages.MenuEmpty)
	v.SetDefault("messages.stores_empty", DefaultMessages.StoresEmpty)
	v.SetDefault("messages.recommend_empty", DefaultMessages.RecommendEmpty)
	v.SetDefault("messages.stale_callback", DefaultMessages.StaleCallback)
	v.SetDefault("messages.store_menu_empty", DefaultMessages.StoreMenuEmpty)
	v.SetDefault("messages.stats_fmt", DefaultMessages.StatsFmt)
	v.SetDefault("messages.recommend_button", DefaultMessages.RecommendButton)
	v.SetDefault("messages.view_store_button", DefaultMessages.ViewStoreButton)
	v.SetDefault("messages.store_menu_button", DefaultMessages.StoreMenuButton)
	v.SetDefault("messages.back_button", DefaultMessages.BackButton)
	v.SetDefault("messages.home_button", DefaultMessages.HomeButton)
	v.SetDefault("messages.prev_button", DefaultMessages.PrevButton)
	v.SetDefault("messages.next_button", DefaultMessages.NextButton)

	v.SetDefault("delivery.chunk_size", DefaultDeliveryChunkSize)
	v.SetDefault("delivery.rate_per_second", DefaultDeliveryRatePerSecond)
	v.SetDefault("delivery.max_retries", DefaultDeliveryMaxRetries)
	v.SetDefault("delivery.retry_delay", DefaultDeliveryRetryDelay)
	v.SetDefault("delivery.send_timeout", DefaultDeliverySendTimeout)
	v.SetDefault("delivery.breaker_max_failures", DefaultDeliveryBreakerMaxFailures)
	v.SetDefault("delivery.breaker_open_timeout", DefaultDeliveryBreakerOpenTimeout)

	v.SetDefault("queue.workers", DefaultQueueWorkers)
	v.SetDefault("queue.poll_interval", DefaultQueuePollInterval)
	v.SetDefault("queue.batch_size", DefaultQueueBatchSize)
	v.SetDefault("queue.max_attempts", DefaultQueueMaxAttempts)
	v.SetDefault("queue.retry_delay", DefaultQueueRetryDelay)
	v.SetDefault("queue.reservation_timeout", DefaultQueueReservationTimeout)
	v.SetDefault("queue.failed_job_retention", DefaultQueueFailedJobRetention)

	v.SetDefault("session.ttl", DefaultSessionTTL)
	v.SetDefault("session.capacity", DefaultSessionCapacity)
	v.SetDefault("session.page_size", DefaultSessionPageSize)

	v.SetDefault("api.enabled", DefaultAPIEnabled)
	v.SetDefault("api.addr", DefaultAPIAddr)
	v.SetDefault("api.token", "")
	v.SetDefault("api.gin_mode", DefaultAPIGinMode)
	v.SetDefault("api.allowed_origins", []string{"*"})

	// Tasks are set key by key so a config file can override a single field
	for name, task := range DefaultTasks {
		v.SetDefault("scheduler.tasks."+name+".enabled", task.Enabled)
		v.SetDefault("scheduler.tasks."+name+".schedule", task.Schedule)
	}
}
