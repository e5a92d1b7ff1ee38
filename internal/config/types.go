package config

// Config is the root configuration structure for opsdesk.
// Serialised to ~/.opsdesk/config.json.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    json:"server"`
	Database  DatabaseConfig  `mapstructure:"database"  json:"database"`
	Auth      AuthConfig      `mapstructure:"auth"      json:"auth"`
	Storage   StorageConfig   `mapstructure:"storage"   json:"storage"`
	Notify    NotifyConfig    `mapstructure:"notify"    json:"notify"`
	Reminders RemindersConfig `mapstructure:"reminders" json:"reminders"`
}

// ServerConfig controls the HTTP/WebSocket listener.
type ServerConfig struct {
	// Host is the bind address (default: 127.0.0.1).
	Host string `mapstructure:"host" json:"host"`
	// Port is the HTTP port the server listens on (default: 6090).
	Port int `mapstructure:"port" json:"port"`
}

// DatabaseConfig controls the storage backend.
type DatabaseConfig struct {
	// Driver is "sqlite" (default) or "mysql".
	Driver string `mapstructure:"driver" json:"driver"`
	// Path is the SQLite file path (expanded at runtime).
	Path string `mapstructure:"path"   json:"path"`
	// DSN is the MySQL data source name (used when Driver == "mysql").
	DSN string `mapstructure:"dsn"    json:"dsn"`
}

// AuthConfig controls token issuing and verification.
type AuthConfig struct {
	// JWTSecret signs access tokens (HS256). Must be set before serving.
	JWTSecret string `mapstructure:"jwt_secret" json:"jwt_secret"`
	// TokenTTLHours is the access-token lifetime (default: 24).
	TokenTTLHours int `mapstructure:"token_ttl_hours" json:"token_ttl_hours"`
}

// StorageConfig controls attachment uploads.
type StorageConfig struct {
	// UploadDir is where attachment files are written.
	UploadDir string `mapstructure:"upload_dir" json:"upload_dir"`
	// MaxUploadMB caps a single upload (default: 16).
	MaxUploadMB int `mapstructure:"max_upload_mb" json:"max_upload_mb"`
}

// NotifyConfig controls the outbound side channels.
type NotifyConfig struct {
	Telegram TelegramNotifyConfig `mapstructure:"telegram" json:"telegram"`
	Slack    SlackNotifyConfig    `mapstructure:"slack"    json:"slack"`
	Webhook  WebhookNotifyConfig  `mapstructure:"webhook"  json:"webhook"`
	Email    EmailNotifyConfig    `mapstructure:"email"    json:"email"`
	// MinPriority filters ticket notifications: "low", "medium" or "high"
	// (empty = notify on everything).
	MinPriority string `mapstructure:"min_priority" json:"min_priority"`
	// Events lists the event types to forward (empty = built-in defaults).
	Events []string `mapstructure:"events" json:"events"`
}

// TelegramNotifyConfig holds Telegram Bot API credentials.
type TelegramNotifyConfig struct {
	BotToken string `mapstructure:"bot_token" json:"bot_token"`
	// ChatID is the staff group chat that receives notifications.
	ChatID string `mapstructure:"chat_id" json:"chat_id"`
}

// SlackNotifyConfig holds a Slack incoming-webhook URL.
type SlackNotifyConfig struct {
	WebhookURL string `mapstructure:"webhook_url" json:"webhook_url"`
}

// WebhookNotifyConfig holds a generic JSON webhook target.
type WebhookNotifyConfig struct {
	URL string `mapstructure:"url" json:"url"`
	// Secret, when set, is sent as the X-Opsdesk-Secret header.
	Secret string `mapstructure:"secret" json:"secret"`
}

// EmailNotifyConfig holds SMTP settings.
type EmailNotifyConfig struct {
	SMTPHost string   `mapstructure:"smtp_host" json:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port" json:"smtp_port"`
	Username string   `mapstructure:"username"  json:"username"`
	Password string   `mapstructure:"password"  json:"password"`
	From     string   `mapstructure:"from"      json:"from"`
	To       []string `mapstructure:"to"        json:"to"`
}

// RemindersConfig controls the due-date reminder scheduler.
type RemindersConfig struct {
	// Enabled turns the cron job on (default: true).
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	// Schedule is a cron spec, e.g. "@every 15m" or "0 9 * * *".
	Schedule string `mapstructure:"schedule" json:"schedule"`
	// DueSoonHours is the look-ahead window for todo due dates (default: 24).
	DueSoonHours int `mapstructure:"due_soon_hours" json:"due_soon_hours"`
	// StaleTicketHours flags open high-priority tickets older than this
	// (default: 48, 0 disables the check).
	StaleTicketHours int `mapstructure:"stale_ticket_hours" json:"stale_ticket_hours"`
}
