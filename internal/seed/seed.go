// Package seed loads initial accounts and inventory into the database,
// either from a YAML file or from built-in defaults for a fresh install.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/opsdesk/opsdesk/internal/auth"
	"github.com/opsdesk/opsdesk/internal/database"
	"github.com/opsdesk/opsdesk/models"
)

// File is the YAML seed document shape.
type File struct {
	Users     []UserSeed      `yaml:"users"`
	Inventory []InventorySeed `yaml:"inventory"`
}

// UserSeed describes one account to create.
type UserSeed struct {
	Username       string `yaml:"username"`
	Email          string `yaml:"email"`
	Role           string `yaml:"role"`
	Password       string `yaml:"password"`
	TelegramChatID string `yaml:"telegram_chat_id"`
}

// InventorySeed describes one inventory item to create.
type InventorySeed struct {
	Name         string `yaml:"name"`
	Type         string `yaml:"type"`
	SerialNumber string `yaml:"serial_number"`
	Location     string `yaml:"location"`
	Status       string `yaml:"status"`
	Responsible  string `yaml:"responsible"`
}

// defaults are the accounts created on a fresh install when no seed file is
// given. Passwords must be changed after first login.
var defaults = []UserSeed{
	{Username: "admin", Email: "admin@example.com", Role: "admin", Password: "admin"},
	{Username: "it", Email: "it@example.com", Role: "it", Password: "it"},
	{Username: "user", Email: "user@example.com", Role: "user", Password: "user"},
}

// Load reads a YAML seed file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}
	return &f, nil
}

// Defaults returns the built-in seed document.
func Defaults() *File {
	return &File{Users: defaults}
}

// Apply upserts the seed document into db. Existing usernames are updated
// in place (keyed on username), so re-running a seed is safe.
func Apply(ctx context.Context, db database.DB, f *File) error {
	now := time.Now().UTC().Format(time.RFC3339)

	for _, u := range f.Users {
		if u.Username == "" {
			return fmt.Errorf("seed user without username")
		}
		role := models.Role(u.Role)
		if !role.Valid() {
			return fmt.Errorf("seed user %q has invalid role %q", u.Username, u.Role)
		}
		hash, err := auth.HashPassword(u.Password)
		if err != nil {
			return fmt.Errorf("seed user %q: %w", u.Username, err)
		}

		// Reuse the existing id when the username is already present.
		var existing struct {
			ID string `db:"id"`
		}
		id := models.NewID()
		created := now
		if err := db.Get(ctx, &existing, `SELECT id FROM users WHERE username = ?`, u.Username); err == nil && existing.ID != "" {
			id = existing.ID
		}

		user := models.User{
			ID:             id,
			Username:       u.Username,
			Email:          u.Email,
			Role:           role,
			PasswordHash:   hash,
			TelegramChatID: u.TelegramChatID,
			CreatedAt:      created,
			UpdatedAt:      now,
		}
		if err := db.Upsert(ctx, "users", &user, []string{"id"}); err != nil {
			return fmt.Errorf("seeding user %q: %w", u.Username, err)
		}
		slog.Info("Seeded user", "username", u.Username, "role", role)
	}

	for _, item := range f.Inventory {
		if item.Name == "" {
			return fmt.Errorf("seed inventory item without name")
		}
		status := models.InventoryStatus(item.Status)
		if item.Status == "" {
			status = models.InventoryWorking
		}
		if !status.Valid() {
			return fmt.Errorf("seed inventory %q has invalid status %q", item.Name, item.Status)
		}
		inv := models.InventoryItem{
			ID:           models.NewID(),
			Name:         item.Name,
			Type:         item.Type,
			SerialNumber: item.SerialNumber,
			Location:     item.Location,
			Status:       status,
			Responsible:  item.Responsible,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := db.Insert(ctx, "inventory", &inv); err != nil {
			return fmt.Errorf("seeding inventory %q: %w", item.Name, err)
		}
		slog.Info("Seeded inventory item", "name", item.Name)
	}
	return nil
}
