package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opsdesk/opsdesk/internal/auth"
	"github.com/opsdesk/opsdesk/internal/config"
	"github.com/opsdesk/opsdesk/internal/database"
	"github.com/opsdesk/opsdesk/internal/notify"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Verify config, database, and notification channels",
	Long: `Checks that the configuration is complete, the database can be
reached, the upload directory is writable, and reports which
notification channels are active.`,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	allOK := true

	fmt.Println("=== opsdesk doctor ===")
	fmt.Println()

	// Check database
	fmt.Print("Database ................. ")
	db, err := database.New(cfg.Database)
	if err != nil {
		fmt.Printf("FAIL (%s)\n", err)
		allOK = false
	} else {
		if err := db.Ping(ctx); err != nil {
			fmt.Printf("FAIL (%s)\n", err)
			allOK = false
		} else {
			fmt.Printf("OK (%s: %s)\n", db.Driver(), cfg.Database.Path)
		}
		db.Close()
	}

	// Check token secret
	fmt.Print("Token secret ............. ")
	if _, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTLHours); err != nil {
		fmt.Println("MISSING (run 'opsdesk setup')")
		allOK = false
	} else {
		fmt.Println("OK")
	}

	// Check upload directory
	fmt.Print("Upload directory ......... ")
	if cfg.Storage.UploadDir == "" {
		fmt.Println("MISSING (storage.upload_dir not set)")
		allOK = false
	} else if err := os.MkdirAll(cfg.Storage.UploadDir, 0o700); err != nil {
		fmt.Printf("FAIL (%s)\n", err)
		allOK = false
	} else {
		fmt.Printf("OK (%s)\n", cfg.Storage.UploadDir)
	}

	// Check notification channels
	fmt.Println()
	fmt.Println("Notification channels:")
	for _, ch := range []notify.Channel{
		notify.NewTelegram(cfg.Notify.Telegram),
		notify.NewSlack(cfg.Notify.Slack),
		notify.NewWebhook(cfg.Notify.Webhook),
		notify.NewEmail(cfg.Notify.Email),
	} {
		fmt.Printf("  %-14s ... ", ch.Name())
		if ch.IsConfigured() {
			fmt.Println("configured")
		} else {
			fmt.Println("disabled")
		}
	}

	// Reminders
	fmt.Print("\nReminders ................ ")
	if cfg.Reminders.Enabled {
		fmt.Printf("enabled (%s)\n", cfg.Reminders.Schedule)
	} else {
		fmt.Println("disabled")
	}

	fmt.Println()
	if allOK {
		fmt.Println(successStyle.Render("All checks passed — opsdesk is ready!"))
	} else {
		fmt.Println(warnStyle.Render("Some checks failed — run 'opsdesk setup' to fix."))
	}

	return nil
}
