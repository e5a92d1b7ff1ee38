package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opsdesk/opsdesk/internal/auth"
	"github.com/opsdesk/opsdesk/internal/config"
	"github.com/opsdesk/opsdesk/internal/database"
	"github.com/opsdesk/opsdesk/models"
)

// newTestGateway spins up a gateway over a fresh SQLite database with one
// account per role (password equals the username).
func newTestGateway(t *testing.T) (*Gateway, *httptest.Server) {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{}
	cfg.Database = config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(dir, "test.db")}
	cfg.Auth = config.AuthConfig{JWTSecret: "test-secret", TokenTTLHours: 1}
	cfg.Storage = config.StorageConfig{UploadDir: filepath.Join(dir, "uploads")}

	db, err := database.New(cfg.Database)
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	for _, u := range []struct {
		name string
		role models.Role
	}{
		{"admin", models.RoleAdmin},
		{"it", models.RoleIT},
		{"user", models.RoleUser},
	} {
		hash, err := auth.HashPassword(u.name)
		if err != nil {
			t.Fatalf("hashing password: %v", err)
		}
		now := nowStamp()
		user := models.User{
			ID:           "uid-" + u.name,
			Username:     u.name,
			Role:         u.role,
			PasswordHash: hash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := db.Insert(context.Background(), "users", &user); err != nil {
			t.Fatalf("seeding user %s: %v", u.name, err)
		}
	}

	gw, err := New(cfg, db)
	if err != nil {
		t.Fatalf("creating gateway: %v", err)
	}
	ts := httptest.NewServer(buildHandler(gw))
	t.Cleanup(ts.Close)
	return gw, ts
}

// login exchanges credentials for a token via the real endpoint.
func login(t *testing.T, ts *httptest.Server, username, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := http.Post(ts.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login as %s: status %d", username, resp.StatusCode)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding login response: %v", err)
	}
	return out.Token
}

// doJSON performs an authenticated JSON request and decodes the response
// into out (out may be nil).
func doJSON(t *testing.T, ts *httptest.Server, token, method, path string, body, out interface{}) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func wsURL(ts *httptest.Server, token string) string {
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	if token != "" {
		u += "?token=" + token
	}
	return u
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := newTestGateway(t)
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health: status %d", resp.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	_, ts := newTestGateway(t)

	if code := doJSON(t, ts, "", http.MethodGet, "/api/tickets", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("no token: got %d, want 401", code)
	}
	if code := doJSON(t, ts, "not-a-token", http.MethodGet, "/api/tickets", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("bad token: got %d, want 401", code)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	_, ts := newTestGateway(t)

	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "wrong"})
	resp, err := http.Post(ts.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong password: status %d, want 401", resp.StatusCode)
	}
}

func TestBlockedUserCannotLogin(t *testing.T) {
	_, ts := newTestGateway(t)
	adminTok := login(t, ts, "admin", "admin")

	if code := doJSON(t, ts, adminTok, http.MethodPut, "/api/users/uid-user/block", nil, nil); code != http.StatusOK {
		t.Fatalf("blocking user: status %d", code)
	}

	body, _ := json.Marshal(map[string]string{"username": "user", "password": "user"})
	resp, err := http.Post(ts.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("blocked login: status %d, want 403", resp.StatusCode)
	}
}

func TestUserRoutesRequireAdmin(t *testing.T) {
	_, ts := newTestGateway(t)
	itTok := login(t, ts, "it", "it")

	if code := doJSON(t, ts, itTok, http.MethodGet, "/api/users", nil, nil); code != http.StatusForbidden {
		t.Fatalf("it listing users: status %d, want 403", code)
	}
}

func TestMeReturnsAccount(t *testing.T) {
	_, ts := newTestGateway(t)
	tok := login(t, ts, "it", "it")

	var me models.User
	if code := doJSON(t, ts, tok, http.MethodGet, "/api/auth/me", nil, &me); code != http.StatusOK {
		t.Fatalf("me: status %d", code)
	}
	if me.Username != "it" || me.Role != models.RoleIT {
		t.Fatalf("me: got %s/%s", me.Username, me.Role)
	}
	if me.PasswordHash != "" {
		t.Fatal("me: password hash leaked in JSON")
	}
}

func TestStatusCountsSessions(t *testing.T) {
	gw, ts := newTestGateway(t)
	tok := login(t, ts, "admin", "admin")

	var status map[string]any
	if code := doJSON(t, ts, tok, http.MethodGet, "/api/status", nil, &status); code != http.StatusOK {
		t.Fatalf("status: %d", code)
	}
	if got := status["sessions"].(float64); got != float64(gw.hub.SessionCount()) {
		t.Fatalf("status sessions = %v, hub says %d", got, gw.hub.SessionCount())
	}
}

func TestInventoryCRUDStaffOnly(t *testing.T) {
	_, ts := newTestGateway(t)
	userTok := login(t, ts, "user", "user")
	itTok := login(t, ts, "it", "it")

	item := map[string]string{"name": "Laptop 17", "type": "laptop", "status": "working"}
	if code := doJSON(t, ts, userTok, http.MethodPost, "/api/inventory", item, nil); code != http.StatusForbidden {
		t.Fatalf("user creating inventory: status %d, want 403", code)
	}

	var created models.InventoryItem
	if code := doJSON(t, ts, itTok, http.MethodPost, "/api/inventory", item, &created); code != http.StatusCreated {
		t.Fatalf("it creating inventory: status %d", code)
	}

	upd := map[string]string{"status": "repair"}
	var updated models.InventoryItem
	if code := doJSON(t, ts, itTok, http.MethodPut, "/api/inventory/"+created.ID, upd, &updated); code != http.StatusOK {
		t.Fatalf("updating inventory: status %d", code)
	}
	if updated.Status != models.InventoryRepair {
		t.Fatalf("inventory status = %s, want repair", updated.Status)
	}
	if updated.Name != "Laptop 17" {
		t.Fatalf("partial update clobbered name: %q", updated.Name)
	}

	// Everyone can read.
	var items []models.InventoryItem
	if code := doJSON(t, ts, userTok, http.MethodGet, "/api/inventory", nil, &items); code != http.StatusOK || len(items) != 1 {
		t.Fatalf("user listing inventory: status %d, %d items", code, len(items))
	}
}

func TestTodoVisibilityAndEvents(t *testing.T) {
	_, ts := newTestGateway(t)
	userTok := login(t, ts, "user", "user")
	itTok := login(t, ts, "it", "it")

	var created models.Todo
	body := map[string]any{"title": "Replace toner", "assigned_to": []string{"uid-it"}}
	if code := doJSON(t, ts, userTok, http.MethodPost, "/api/todos", body, &created); code != http.StatusCreated {
		t.Fatalf("creating todo: status %d", code)
	}
	if got := created.Audience(); len(got) != 2 {
		t.Fatalf("audience = %v, want creator + assignee", got)
	}

	// The assignee sees the card, a stranger does not appear in its audience.
	var itTodos []models.Todo
	if code := doJSON(t, ts, itTok, http.MethodGet, "/api/todos", nil, &itTodos); code != http.StatusOK {
		t.Fatalf("it listing todos: status %d", code)
	}
	if len(itTodos) != 1 || itTodos[0].ID != created.ID {
		t.Fatalf("it todos = %v", itTodos)
	}

	// Only the creator or an admin may delete.
	if code := doJSON(t, ts, itTok, http.MethodDelete, "/api/todos/"+created.ID, nil, nil); code != http.StatusForbidden {
		t.Fatalf("assignee deleting todo: status %d, want 403", code)
	}
	if code := doJSON(t, ts, userTok, http.MethodDelete, "/api/todos/"+created.ID, nil, nil); code != http.StatusOK {
		t.Fatalf("creator deleting todo: status %d", code)
	}
}

func TestCreateUserValidation(t *testing.T) {
	_, ts := newTestGateway(t)
	adminTok := login(t, ts, "admin", "admin")

	if code := doJSON(t, ts, adminTok, http.MethodPost, "/api/users",
		map[string]string{"username": "x", "password": "x", "role": "superuser"}, nil); code != http.StatusBadRequest {
		t.Fatalf("invalid role: status %d, want 400", code)
	}

	var created models.User
	if code := doJSON(t, ts, adminTok, http.MethodPost, "/api/users",
		map[string]string{"username": "newbie", "password": "pw"}, &created); code != http.StatusCreated {
		t.Fatalf("creating user: status %d", code)
	}
	if created.Role != models.RoleUser {
		t.Fatalf("default role = %s, want user", created.Role)
	}

	// Duplicate username is rejected by the unique index.
	if code := doJSON(t, ts, adminTok, http.MethodPost, "/api/users",
		map[string]string{"username": "newbie", "password": "pw"}, nil); code != http.StatusConflict {
		t.Fatalf("duplicate username: status %d, want 409", code)
	}
}

