// Package api implements the admin HTTP API used to manage the bot content.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edgard/promobot/internal/config"
	"github.com/edgard/promobot/internal/database"
	"github.com/edgard/promobot/internal/logger"
)

const shutdownTimeout = 10 * time.Second

// AdvertisementService applies advertisement changes together with their scheduling.
type AdvertisementService interface {
	Create(ctx context.Context, ad *database.Advertisement) error
	Update(ctx context.Context, ad *database.Advertisement) error
	SetStatus(ctx context.Context, id int64, status int) (*database.Advertisement, error)
	Delete(ctx context.Context, id int64) error
}

// PinBroadcaster queues a pin message broadcast.
type PinBroadcaster interface {
	Broadcast(ctx context.Context, pinMessageID int64) (*database.Job, error)
}

// Deps contains the dependencies of the API server.
type Deps struct {
	Logger         *slog.Logger
	Config         config.APIConfig
	Repo           database.Repository
	Advertisements AdvertisementService
	Pins           PinBroadcaster
	// Webhook receives Telegram updates; nil when the bot uses long polling.
	Webhook http.HandlerFunc
}

// Server is the admin API HTTP server.
type Server struct {
	engine *gin.Engine
	srv    *http.Server
	logger *slog.Logger
}

// NewServer builds the router and its routes.
func NewServer(deps Deps) *Server {
	log := deps.Logger.With("component", "api")

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(gin.Recovery(), logger.GinMiddleware(log), CORS(deps.Config.AllowedOrigins))
	engine.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, "Route not found")
	})
	engine.NoMethod(func(c *gin.Context) {
		fail(c, http.StatusMethodNotAllowed, "Method not allowed")
	})

	SetupRoutes(engine, deps)

	return &Server{
		engine: engine,
		srv: &http.Server{
			Addr:              deps.Config.Addr,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: log,
	}
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutdown signal received, stopping API server...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down api server: %w", err)
	}
	s.logger.Info("API server stopped gracefully.")
	return nil
}
