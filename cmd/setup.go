package cmd

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/opsdesk/opsdesk/internal/config"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard for opsdesk",
	Long: `Walks you through configuring opsdesk:
  - Server bind address and port
  - Database backend (SQLite or MySQL)
  - Token signing secret (generated for you if left blank)
  - Notification channels (Telegram, Slack, webhook)
  - Reminder scheduling

Re-running setup keeps existing values as defaults.`,
	RunE: runSetup,
}

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#7C3AED")).
	MarginBottom(1)

var successStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#10B981"))

var warnStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#F59E0B"))

var dimStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#6B7280"))

func runSetup(cmd *cobra.Command, args []string) error {
	fmt.Println()
	fmt.Println(headerStyle.Render("  opsdesk — helpdesk with realtime updates"))
	fmt.Println(dimStyle.Render("  Tickets, todo boards and inventory, live over WebSocket.\n"))

	cfg, err := config.Load(cfgFile)
	if err != nil {
		cfg = &config.Config{}
	}

	// --- Step 1: server ---
	fmt.Println(headerStyle.Render("  Step 1/4 · Server"))

	host := cfg.Server.Host
	if host == "" {
		host = "127.0.0.1"
	}
	portStr := "6090"
	if cfg.Server.Port != 0 {
		portStr = strconv.Itoa(cfg.Server.Port)
	}

	serverForm := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Bind address").
				Description("Use 127.0.0.1 behind a reverse proxy, 0.0.0.0 to expose directly.").
				Value(&host),
			huh.NewInput().
				Title("Port").
				Validate(func(s string) error {
					n, err := strconv.Atoi(s)
					if err != nil || n < 1 || n > 65535 {
						return fmt.Errorf("enter a port between 1 and 65535")
					}
					return nil
				}).
				Value(&portStr),
		),
	)
	if err := serverForm.Run(); err != nil {
		return err
	}
	cfg.Server.Host = host
	cfg.Server.Port, _ = strconv.Atoi(portStr)

	// --- Step 2: database ---
	fmt.Println(headerStyle.Render("\n  Step 2/4 · Database"))

	driver := cfg.Database.Driver
	if driver == "" {
		driver = "sqlite"
	}
	dbForm := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Database backend").
				Options(
					huh.NewOption("SQLite (zero setup, single file)", "sqlite"),
					huh.NewOption("MySQL (shared server)", "mysql"),
				).
				Value(&driver),
		),
	)
	if err := dbForm.Run(); err != nil {
		return err
	}
	cfg.Database.Driver = driver

	if driver == "mysql" {
		dsn := cfg.Database.DSN
		dsnForm := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("MySQL DSN").
				Description("user:pass@tcp(host:3306)/opsdesk").
				Placeholder("opsdesk:secret@tcp(127.0.0.1:3306)/opsdesk").
				Value(&dsn),
		))
		if err := dsnForm.Run(); err != nil {
			return err
		}
		cfg.Database.DSN = dsn
	}

	// --- Step 3: auth secret ---
	fmt.Println(headerStyle.Render("\n  Step 3/4 · Authentication"))
	fmt.Println(dimStyle.Render("  The secret signs access tokens. Changing it logs everyone out.\n"))

	secret := cfg.Auth.JWTSecret
	secretForm := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Token signing secret (leave blank to generate)").
			EchoMode(huh.EchoModePassword).
			Value(&secret),
	))
	if err := secretForm.Run(); err != nil {
		return err
	}
	if secret == "" {
		secret = randomSecret()
		fmt.Println(successStyle.Render("  Generated a new signing secret."))
	}
	cfg.Auth.JWTSecret = secret

	// --- Step 4: notifications ---
	fmt.Println(headerStyle.Render("\n  Step 4/4 · Notifications (optional)"))
	fmt.Println(dimStyle.Render("  Live WebSocket updates always work; these channels additionally"))
	fmt.Println(dimStyle.Render("  reach people who are not connected.\n"))

	var addTelegram, addSlack bool
	pickForm := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().Title("Configure Telegram notifications?").Value(&addTelegram),
		huh.NewConfirm().Title("Configure a Slack webhook?").Value(&addSlack),
	))
	if err := pickForm.Run(); err != nil {
		return err
	}

	if addTelegram {
		botToken := cfg.Notify.Telegram.BotToken
		chatID := cfg.Notify.Telegram.ChatID
		tgForm := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Telegram bot token").
				Description("Create a bot via @BotFather to get one.").
				EchoMode(huh.EchoModePassword).
				Value(&botToken),
			huh.NewInput().
				Title("Staff chat ID").
				Description("Group or channel that receives new-ticket alerts.").
				Value(&chatID),
		))
		if err := tgForm.Run(); err != nil {
			return err
		}
		cfg.Notify.Telegram.BotToken = botToken
		cfg.Notify.Telegram.ChatID = chatID
	}

	if addSlack {
		hookURL := cfg.Notify.Slack.WebhookURL
		slackForm := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Slack incoming webhook URL").
				Placeholder("https://hooks.slack.com/services/...").
				Value(&hookURL),
		))
		if err := slackForm.Run(); err != nil {
			return err
		}
		cfg.Notify.Slack.WebhookURL = hookURL
	}

	cfgPath, _ := config.ConfigPath(cfgFile)
	if err := config.Save(cfg, cfgPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println()
	fmt.Println(headerStyle.Render("  Setup complete!"))
	fmt.Printf("  Config saved to: %s\n\n", dimStyle.Render(cfgPath))
	fmt.Println(dimStyle.Render("  Next steps:"))
	fmt.Println(dimStyle.Render("    opsdesk seed      — create initial accounts"))
	fmt.Println(dimStyle.Render("    opsdesk doctor    — verify everything works"))
	fmt.Println(dimStyle.Render("    opsdesk serve     — start the server"))
	fmt.Println()

	slog.Debug("Setup complete", "config", cfgPath)
	return nil
}

func randomSecret() string {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}
