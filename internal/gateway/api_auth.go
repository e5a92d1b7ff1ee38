package gateway

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/opsdesk/opsdesk/internal/auth"
	"github.com/opsdesk/opsdesk/models"
)

const userColumns = `id, username, email, role, blocked, password_hash, telegram_chat_id, created_at, updated_at`

func (gw *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (gw *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"uptime_seconds": int(time.Since(gw.startedAt).Seconds()),
		"sessions":       gw.hub.SessionCount(),
		"users_online":   gw.hub.UserCount(),
		"topics":         gw.hub.TopicCount(),
		"database":       gw.db.Driver(),
		"notifications":  gw.notifier.IsAnyConfigured(),
	})
}

// handleLogin exchanges username/password for a signed access token.
func (gw *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	var user models.User
	err := gw.db.Get(r.Context(), &user,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, req.Username)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		slog.Error("login: user lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if user.Blocked {
		writeError(w, http.StatusForbidden, "account is blocked")
		return
	}

	token, err := gw.tokens.Issue(&user)
	if err != nil {
		slog.Error("login: token issue failed", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	slog.Info("login", "username", user.Username, "role", user.Role)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

// handleMe returns the account behind the current token.
func (gw *Gateway) handleMe(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)

	var user models.User
	err := gw.db.Get(r.Context(), &user,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, ident.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusUnauthorized, "account no longer exists")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
