// Package main contains the entrypoint for the promobot Telegram bot.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	tgbot "github.com/go-telegram/bot"
	"github.com/jonboulle/clockwork"

	"github.com/edgard/promobot/internal/advertising"
	"github.com/edgard/promobot/internal/api"
	"github.com/edgard/promobot/internal/bot"
	"github.com/edgard/promobot/internal/bot/handlers"
	"github.com/edgard/promobot/internal/bot/tasks"
	"github.com/edgard/promobot/internal/config"
	"github.com/edgard/promobot/internal/database"
	"github.com/edgard/promobot/internal/delivery"
	"github.com/edgard/promobot/internal/logger"
	"github.com/edgard/promobot/internal/pinning"
	"github.com/edgard/promobot/internal/queue"
	"github.com/edgard/promobot/internal/session"
	"github.com/edgard/promobot/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop() // Ensure context cancellation is signaled before exit
	os.Exit(exitCode)
}

// run initializes and starts all application components (config, logger, db, queue, bot, scheduler, api),
// handles graceful shutdown, and returns an exit code (0 for success, 1 for failure).
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db) // Ensure DB is closed on function exit
	repo := database.NewRepository(db, log)

	clock := clockwork.NewRealClock()
	jobs := queue.New(repo, clock, log)
	sessions := session.New(cfg.Session.Capacity, cfg.Session.TTL)

	// The sender needs the bot and handlers need the pin service, so the
	// handler deps are completed once the bot exists.
	hDeps := handlers.HandlerDeps{
		Logger:   log,
		Config:   cfg,
		Repo:     repo,
		Sessions: sessions,
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log), handlers.RegisterChat(hDeps)),
		tgbot.WithDefaultHandler(handlers.NewDefaultHandler(hDeps)),
	}
	if cfg.Telegram.UseWebhook() && cfg.Telegram.WebhookSecret != "" {
		botOpts = append(botOpts, tgbot.WithWebhookSecretToken(cfg.Telegram.WebhookSecret))
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	// Retrieve bot info and store it in the config for runtime use
	cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	broadcaster := delivery.NewBroadcaster(delivery.NewTelegramSender(tg), repo, delivery.Config{
		RatePerSecond:      cfg.Delivery.RatePerSecond,
		MaxRetries:         cfg.Delivery.MaxRetries,
		RetryDelay:         cfg.Delivery.RetryDelay,
		SendTimeout:        cfg.Delivery.SendTimeout,
		BreakerMaxFailures: cfg.Delivery.BreakerMaxFailures,
		BreakerOpenTimeout: cfg.Delivery.BreakerOpenTimeout,
	}, log)

	ads := advertising.NewService(repo, jobs, broadcaster, advertising.Config{
		ChunkSize:       cfg.Delivery.ChunkSize,
		ViewStoreButton: cfg.Messages.ViewStoreButton,
	}, log)
	pins := pinning.NewService(repo, jobs, broadcaster, cfg.Delivery.ChunkSize, log)
	hDeps.Pins = pins

	worker := queue.NewWorker(jobs, queue.WorkerConfig{
		Concurrency:        cfg.Queue.Workers,
		PollInterval:       cfg.Queue.PollInterval,
		BatchSize:          cfg.Queue.BatchSize,
		MaxAttempts:        cfg.Queue.MaxAttempts,
		RetryDelay:         cfg.Queue.RetryDelay,
		ReservationTimeout: cfg.Queue.ReservationTimeout,
	})
	ads.Register(worker)
	pins.Register(worker)

	cmdHandlers := handlers.RegisterAllCommands(hDeps)
	if err := telegram.RegisterHandlers(tg, log, cmdHandlers); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}
	if err := telegram.SetCommands(ctx, tg, cmdHandlers); err != nil {
		log.Warn("Failed to publish bot commands", "error", err)
	}
	if err := telegram.ConfigureUpdates(ctx, tg, cfg.Telegram, log); err != nil {
		log.Error("Failed to configure Telegram updates", "error", err)
		return 1
	}

	tDeps := tasks.TaskDeps{
		Logger:         log,
		Repo:           repo,
		Advertisements: ads,
		Queue:          jobs,
		Config:         cfg,
	}
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps), clock)
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	var apiServer bot.Runner
	if cfg.API.Enabled {
		gin.SetMode(cfg.API.GinMode)
		apiDeps := api.Deps{
			Logger:         log,
			Config:         cfg.API,
			Repo:           repo,
			Advertisements: ads,
			Pins:           pins,
		}
		if cfg.Telegram.UseWebhook() {
			apiDeps.Webhook = tg.WebhookHandler()
		}
		apiServer = api.NewServer(apiDeps)
	}

	app := bot.NewBot(log, cfg, tg, sched, worker, apiServer)

	log.Info("Starting bot...")
	runErr := app.Run(ctx) // Run blocks until context is cancelled or an error occurs
	log.Info("Bot run loop finished. Initiating shutdown...")

	// Check if the error is significant (not just context cancellation)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		// Allow logs to flush before exiting on error
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	return 0
}
