package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opsdesk/opsdesk/internal/config"
	"github.com/opsdesk/opsdesk/internal/database"
	"github.com/opsdesk/opsdesk/internal/gateway"
)

var servePort int
var serveLogDir string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the opsdesk server",
	Long: `Starts the opsdesk server: a long-running daemon that combines the
REST API, the WebSocket event stream, outbound notifications and the
reminder scheduler.

The server listens on http://127.0.0.1:6090 by default. Connected
clients receive live updates for:

  • ticket_created / ticket_updated / ticket_deleted / ticket_assigned
  • comment_added on subscribed ticket threads
  • todo_created / todo_updated / todo_deleted for creator and assignees
  • inventory changes (staff only)
  • todo_due_soon and ticket_stale reminders

Quick API reference:
  POST /api/auth/login                 exchange credentials for a token
  GET  /ws?token=...                   WebSocket event stream
  GET  /health                         liveness check
  GET  /api/status                     session and topic counters
  GET/POST /api/tickets                list / create tickets
  PUT/DELETE /api/tickets/:id          update / delete a ticket
  POST /api/tickets/:id/comments       comment on a ticket
  GET/POST /api/todos                  todo board
  GET/POST /api/inventory              equipment inventory
  GET/POST /api/users                  account management (admin)`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0,
		"HTTP port to listen on (default 6090, overrides config)")
	serveCmd.Flags().StringVar(&serveLogDir, "log-dir", "logs",
		"directory to write server logs for later inspection")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		fmt.Println("\nShutting down gracefully...")
		cancel()
	}()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is not set — run 'opsdesk setup' first")
	}

	logFilePath, closeLog, err := setupServeFileLogger(serveLogDir)
	if err != nil {
		return fmt.Errorf("initialising server logger: %w", err)
	}
	defer closeLog()

	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 6090
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	fmt.Printf("opsdesk server starting\n")
	fmt.Printf("  Database  : %s\n", db.Driver())
	fmt.Printf("  API       : http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("  WebSocket : ws://%s:%d/ws\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("  Logs      : %s\n\n", logFilePath)
	fmt.Println("Press Ctrl+C to stop gracefully.")
	fmt.Println()

	gw, err := gateway.New(cfg, db)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	return gw.Start(ctx)
}

func setupServeFileLogger(logDir string) (string, func(), error) {
	if logDir == "" {
		logDir = "logs"
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("creating log dir %s: %w", logDir, err)
	}

	ts := time.Now().UTC().Format("20060102-150405")
	runLogPath := filepath.Join(logDir, fmt.Sprintf("opsdesk-%s.log", ts))
	runFile, err := os.OpenFile(runLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", nil, fmt.Errorf("opening run log file: %w", err)
	}

	latestPath := filepath.Join(logDir, "opsdesk.log")
	latestFile, err := os.OpenFile(latestPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		_ = runFile.Close()
		return "", nil, fmt.Errorf("opening latest log file: %w", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, runFile, latestFile), &slog.HandlerOptions{
		Level:     level,
		AddSource: verbose,
	})
	slog.SetDefault(slog.New(handler))
	slog.SetLogLoggerLevel(level)

	cleanup := func() {
		_ = latestFile.Close()
		_ = runFile.Close()
	}
	return runLogPath, cleanup, nil
}
