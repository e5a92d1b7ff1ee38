package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/opsdesk/opsdesk/internal/config"
	"github.com/opsdesk/opsdesk/models"
)

func newTestDB(t *testing.T) DB {
	t.Helper()
	db, err := New(config.DatabaseConfig{
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

func TestMigrateIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestUserRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	user := models.User{
		ID:        "u1",
		Username:  "alice",
		Email:     "alice@example.com",
		Role:      models.RoleIT,
		CreatedAt: "2026-01-01T00:00:00Z",
		UpdatedAt: "2026-01-01T00:00:00Z",
	}
	if err := db.Insert(ctx, "users", &user); err != nil {
		t.Fatalf("insert: %v", err)
	}

	var got models.User
	err := db.Get(ctx, &got,
		`SELECT id, username, email, role, blocked, password_hash, telegram_chat_id, created_at, updated_at
		 FROM users WHERE username = ?`, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != "u1" || got.Role != models.RoleIT || got.Blocked {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	got.Blocked = true
	got.Email = "a@example.com"
	if err := db.Update(ctx, "users", &got, "id = ?", "u1"); err != nil {
		t.Fatalf("update: %v", err)
	}

	var after models.User
	if err := db.Get(ctx, &after,
		`SELECT id, username, email, role, blocked, password_hash, telegram_chat_id, created_at, updated_at
		 FROM users WHERE id = ?`, "u1"); err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if !after.Blocked || after.Email != "a@example.com" {
		t.Fatalf("update not applied: %+v", after)
	}
}

func TestGetMissingRowReturnsErrNoRows(t *testing.T) {
	db := newTestDB(t)

	var got models.User
	err := db.Get(context.Background(), &got,
		`SELECT id, username, email, role, blocked, password_hash, telegram_chat_id, created_at, updated_at
		 FROM users WHERE id = ?`, "nope")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestUpsertReplacesOnConflict(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	user := models.User{ID: "u1", Username: "bob", Role: models.RoleUser,
		CreatedAt: "2026-01-01T00:00:00Z", UpdatedAt: "2026-01-01T00:00:00Z"}
	if err := db.Upsert(ctx, "users", &user, []string{"id"}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	user.Role = models.RoleAdmin
	if err := db.Upsert(ctx, "users", &user, []string{"id"}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	var users []models.User
	if err := db.Select(ctx, &users,
		`SELECT id, username, email, role, blocked, password_hash, telegram_chat_id, created_at, updated_at
		 FROM users`); err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(users) != 1 || users[0].Role != models.RoleAdmin {
		t.Fatalf("upsert result: %+v", users)
	}
}

func TestTodoJSONColumns(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	todo := models.Todo{
		ID:         "t1",
		Title:      "Order cables",
		Status:     "todo",
		AssignedTo: []string{"u1", "u2"},
		Tags:       []string{"network"},
		CreatedBy:  "u1",
		CreatedAt:  "2026-01-01T00:00:00Z",
		UpdatedAt:  "2026-01-01T00:00:00Z",
	}
	row := todo.Row()
	if err := db.Insert(ctx, "todos", &row); err != nil {
		t.Fatalf("insert: %v", err)
	}

	var got models.TodoRow
	if err := db.Get(ctx, &got,
		`SELECT id, title, description, status, assigned_to, tags, story_points, project, due_date, created_by, created_at, updated_at
		 FROM todos WHERE id = ?`, "t1"); err != nil {
		t.Fatalf("get: %v", err)
	}
	back := got.Todo()
	if len(back.AssignedTo) != 2 || back.AssignedTo[1] != "u2" {
		t.Fatalf("assigned_to = %v", back.AssignedTo)
	}
	if len(back.Tags) != 1 || back.Tags[0] != "network" {
		t.Fatalf("tags = %v", back.Tags)
	}
}
