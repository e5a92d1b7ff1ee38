package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/opsdesk/opsdesk/internal/auth"
	"github.com/opsdesk/opsdesk/internal/config"
	"github.com/opsdesk/opsdesk/internal/database"
	"github.com/opsdesk/opsdesk/internal/notify"
	"github.com/opsdesk/opsdesk/internal/realtime"
	"github.com/opsdesk/opsdesk/internal/storage"
)

// Gateway is the long-running opsdesk daemon. It combines:
//   - the REST API (tickets, todos, inventory, users, auth)
//   - the WebSocket endpoint with the realtime fan-out hub
//   - outbound notification channels (Telegram, Slack, webhook, email)
//   - a cron scheduler for due-date and stale-ticket reminders
type Gateway struct {
	cfg       *config.Config
	db        database.DB
	hub       *realtime.Hub
	tokens    *auth.Tokens
	files     *storage.Store
	notifier  *notify.Dispatcher
	cron      *cron.Cron
	startedAt time.Time
}

// New creates a Gateway. Call Start() to begin serving.
func New(cfg *config.Config, db database.DB) (*Gateway, error) {
	tokens, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTLHours)
	if err != nil {
		return nil, err
	}
	files, err := storage.New(cfg.Storage)
	if err != nil {
		return nil, err
	}
	return &Gateway{
		cfg:       cfg,
		db:        db,
		hub:       realtime.NewHub(),
		tokens:    tokens,
		files:     files,
		notifier:  notify.NewDispatcher(cfg.Notify),
		startedAt: time.Now(),
	}, nil
}

// Hub exposes the fan-out hub (used by tests and the reminder job).
func (gw *Gateway) Hub() *realtime.Hub { return gw.hub }

// Start runs the gateway until ctx is cancelled. It:
//  1. Starts the reminder cron scheduler (if enabled)
//  2. Binds the HTTP server (blocks until shutdown)
func (gw *Gateway) Start(ctx context.Context) error {
	host := gw.cfg.Server.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := gw.cfg.Server.Port
	if port == 0 {
		port = 6090
	}
	addr := fmt.Sprintf("%s:%d", host, port)

	if gw.cfg.Reminders.Enabled {
		if err := gw.startReminders(); err != nil {
			return fmt.Errorf("starting reminder scheduler: %w", err)
		}
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           buildHandler(gw),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Shut down HTTP server and scheduler when ctx is cancelled.
	go func() {
		<-ctx.Done()
		if gw.cron != nil {
			gw.cron.Stop()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("gateway: listening", "addr", "http://"+addr, "ws", "ws://"+addr+"/ws")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// publish hands a domain event to the fan-out hub. Best-effort by contract:
// the calling handler never learns about delivery failures.
func (gw *Gateway) publish(ctx context.Context, evt realtime.Event) {
	gw.hub.Deliver(ctx, evt)
}
