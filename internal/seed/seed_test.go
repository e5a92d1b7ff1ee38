package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/opsdesk/opsdesk/internal/auth"
	"github.com/opsdesk/opsdesk/internal/config"
	"github.com/opsdesk/opsdesk/internal/database"
	"github.com/opsdesk/opsdesk/models"
)

func newTestDB(t *testing.T) database.DB {
	t.Helper()
	db, err := database.New(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return db
}

const userCols = `id, username, email, role, blocked, password_hash, telegram_chat_id, created_at, updated_at`

func TestApplyDefaults(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := Apply(ctx, db, Defaults()); err != nil {
		t.Fatalf("apply: %v", err)
	}

	var users []models.User
	if err := db.Select(ctx, &users, `SELECT `+userCols+` FROM users`); err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(users) != 3 {
		t.Fatalf("seeded %d users, want 3", len(users))
	}
	for _, u := range users {
		if !auth.CheckPassword(u.PasswordHash, u.Username) {
			t.Fatalf("user %s: default password does not verify", u.Username)
		}
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := Apply(ctx, db, Defaults()); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	var before models.User
	if err := db.Get(ctx, &before, `SELECT `+userCols+` FROM users WHERE username = ?`, "admin"); err != nil {
		t.Fatalf("get: %v", err)
	}

	if err := Apply(ctx, db, Defaults()); err != nil {
		t.Fatalf("second apply: %v", err)
	}
	var after models.User
	if err := db.Get(ctx, &after, `SELECT `+userCols+` FROM users WHERE username = ?`, "admin"); err != nil {
		t.Fatalf("get after reseed: %v", err)
	}
	if after.ID != before.ID {
		t.Fatalf("reseed changed id: %s -> %s", before.ID, after.ID)
	}

	var users []models.User
	if err := db.Select(ctx, &users, `SELECT `+userCols+` FROM users`); err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(users) != 3 {
		t.Fatalf("reseed duplicated users: %d", len(users))
	}
}

func TestApplyRejectsInvalidRole(t *testing.T) {
	db := newTestDB(t)
	f := &File{Users: []UserSeed{{Username: "x", Password: "x", Role: "boss"}}}
	if err := Apply(context.Background(), db, f); err == nil {
		t.Fatal("expected error for invalid role")
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	doc := `users:
  - username: carol
    email: carol@example.com
    role: it
    password: secret
inventory:
  - name: "Switch 24p"
    type: network
    status: working
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("writing seed file: %v", err)
	}

	f, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(f.Users) != 1 || f.Users[0].Username != "carol" || f.Users[0].Role != "it" {
		t.Fatalf("users = %+v", f.Users)
	}
	if len(f.Inventory) != 1 || f.Inventory[0].Name != "Switch 24p" {
		t.Fatalf("inventory = %+v", f.Inventory)
	}

	db := newTestDB(t)
	if err := Apply(context.Background(), db, f); err != nil {
		t.Fatalf("apply: %v", err)
	}
	var items []models.InventoryItem
	if err := db.Select(context.Background(), &items,
		`SELECT id, name, type, serial_number, location, status, description, responsible, created_at, updated_at FROM inventory`); err != nil {
		t.Fatalf("select inventory: %v", err)
	}
	if len(items) != 1 || items[0].Status != models.InventoryWorking {
		t.Fatalf("items = %+v", items)
	}
}
