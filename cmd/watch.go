package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/opsdesk/opsdesk/internal/config"
	"github.com/opsdesk/opsdesk/internal/tui"
)

var (
	watchServer   string
	watchUsername string
	watchPassword string
	watchToken    string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the live event stream in the terminal",
	Long: `Connects to a running opsdesk server over WebSocket and shows every
event your account receives, as it happens: new tickets, comments,
todo changes and reminders.

Authenticate either with --token or with --username/--password (the
password is prompted when omitted).`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchServer, "server", "",
		"server base URL (default: from config, http://127.0.0.1:6090)")
	watchCmd.Flags().StringVarP(&watchUsername, "username", "u", "", "account username")
	watchCmd.Flags().StringVarP(&watchPassword, "password", "p", "", "account password (prompted if omitted)")
	watchCmd.Flags().StringVar(&watchToken, "token", "", "access token (skips the login step)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	base := watchServer
	if base == "" {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		host := cfg.Server.Host
		if host == "" || host == "0.0.0.0" {
			host = "127.0.0.1"
		}
		port := cfg.Server.Port
		if port == 0 {
			port = 6090
		}
		base = fmt.Sprintf("http://%s:%d", host, port)
	}
	base = strings.TrimRight(base, "/")

	token := watchToken
	if token == "" {
		var err error
		token, err = watchLogin(base)
		if err != nil {
			return err
		}
	}

	wsEndpoint, err := toWebSocketURL(base)
	if err != nil {
		return err
	}

	return tui.NewWatch(wsEndpoint+"/ws?token="+url.QueryEscape(token), base).Run()
}

// watchLogin obtains a token via the login endpoint, prompting for missing
// credentials.
func watchLogin(base string) (string, error) {
	username, password := watchUsername, watchPassword
	var fields []huh.Field
	if username == "" {
		fields = append(fields, huh.NewInput().Title("Username").Value(&username))
	}
	if password == "" {
		fields = append(fields, huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&password))
	}
	if len(fields) > 0 {
		if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
			return "", err
		}
	}

	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := http.Post(base+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("connecting to %s: %w", base, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login failed (status %d)", resp.StatusCode)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding login response: %w", err)
	}
	return out.Token, nil
}

// toWebSocketURL converts an http(s) base URL to its ws(s) form.
func toWebSocketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", base, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}
