package config

import "time"

// Default values for configuration
const (
	DefaultLogLevel = "info"
	DefaultLogJSON  = true

	DefaultDBPath = "promobot.db"

	DefaultDeliveryChunkSize          = 100
	DefaultDeliveryRatePerSecond      = 25 // Telegram allows ~30 msg/s per bot
	DefaultDeliveryMaxRetries         = 3
	DefaultDeliveryRetryDelay         = 2 * time.Second
	DefaultDeliverySendTimeout        = 15 * time.Second
	DefaultDeliveryBreakerMaxFailures = 20
	DefaultDeliveryBreakerOpenTimeout = time.Minute

	DefaultQueueWorkers            = 4
	DefaultQueuePollInterval       = time.Second
	DefaultQueueBatchSize          = 10
	DefaultQueueMaxAttempts        = 3
	DefaultQueueRetryDelay         = 30 * time.Second
	DefaultQueueReservationTimeout = 15 * time.Minute
	DefaultQueueFailedJobRetention = 7 * 24 * time.Hour

	DefaultSessionTTL      = 30 * time.Minute
	DefaultSessionCapacity = 10000
	DefaultSessionPageSize = 8

	DefaultAPIEnabled = true
	DefaultAPIAddr    = ":8080"
	DefaultAPIGinMode = "release"
)

// DefaultMessages holds the bot texts used when config.yaml does not override them.
var DefaultMessages = MessagesConfig{
	Welcome:        "👋 Welcome to @botname! Pick a category below to discover stores and offers.",
	Help:           "Use /menu to browse categories, tap a store to see its details, and check ⭐ Recommended for our picks.",
	Unauthorized:   "🚫 You are not authorized to use this command.",
	GeneralError:   "❌ An error occurred. Please try again later.",
	MenuEmpty:      "Nothing here yet. Please check back later.",
	StoresEmpty:    "No stores in this category yet.",
	RecommendEmpty: "No recommended stores right now.",
	StaleCallback:  "This menu has expired. Send /menu to start again.",
	StoreMenuEmpty: "This store has not published a menu yet.",
	StatsFmt:       "📊 Chats: %d active / %d total\n📣 Advertisements: %d active / %d total\n⏳ Pending jobs: %d\n⚠️ Failed jobs: %d",

	RecommendButton: "⭐ Recommended",
	ViewStoreButton: "🏪 View store",
	StoreMenuButton: "📖 Menu",
	BackButton:      "⬅️ Back",
	HomeButton:      "🏠 Home",
	PrevButton:      "◀️",
	NextButton:      "▶️",
}

// DefaultTasks lists the housekeeping tasks and their cron schedules (with seconds).
var DefaultTasks = map[string]TaskConfig{
	"sql_maintenance":    {Enabled: true, Schedule: "0 0 4 * * *"},
	"advertisement_sync": {Enabled: true, Schedule: "0 */5 * * * *"},
	"queue_cleanup":      {Enabled: true, Schedule: "0 */10 * * * *"},
}
