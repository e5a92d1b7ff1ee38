package gateway

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/opsdesk/opsdesk/internal/auth"
	"github.com/opsdesk/opsdesk/internal/realtime"
	"github.com/opsdesk/opsdesk/models"
)

func (gw *Gateway) handleListUsers(w http.ResponseWriter, r *http.Request) {
	var users []models.User
	err := gw.db.Select(r.Context(), &users,
		`SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing users failed")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (gw *Gateway) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}
	role := models.Role(req.Role)
	if req.Role == "" {
		role = models.RoleUser
	}
	if !role.Valid() {
		writeError(w, http.StatusBadRequest, "invalid role")
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := nowStamp()
	user := models.User{
		ID:             models.NewID(),
		Username:       req.Username,
		Email:          req.Email,
		Role:           role,
		PasswordHash:   hash,
		TelegramChatID: req.TelegramChatID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := gw.db.Insert(r.Context(), "users", &user); err != nil {
		writeError(w, http.StatusConflict, "creating user failed (username taken?)")
		return
	}
	slog.Info("user created", "username", user.Username, "role", user.Role)
	writeJSON(w, http.StatusCreated, user)
}

func (gw *Gateway) handleBlockUser(w http.ResponseWriter, r *http.Request) {
	gw.setUserBlocked(w, r, true)
}

func (gw *Gateway) handleUnblockUser(w http.ResponseWriter, r *http.Request) {
	gw.setUserBlocked(w, r, false)
}

// setUserBlocked flips the blocked flag. Blocking also tells the user's live
// sessions and then disconnects them: a blocked account holds no connection.
func (gw *Gateway) setUserBlocked(w http.ResponseWriter, r *http.Request, blocked bool) {
	id := chi.URLParam(r, "id")

	var user models.User
	err := gw.db.Get(r.Context(), &user,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	user.Blocked = blocked
	user.UpdatedAt = nowStamp()
	if err := gw.db.Update(r.Context(), "users", &user, "id = ?", id); err != nil {
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}

	if blocked {
		gw.publish(r.Context(), realtime.NewEvent("user_blocked", realtime.ToUser(id), map[string]any{
			"user_id": id,
		}))
		for _, sess := range gw.hub.SessionsForUser(id) {
			gw.hub.Unregister(sess)
			sess.Close(websocket.ClosePolicyViolation, "account blocked")
		}
		slog.Info("user blocked", "username", user.Username)
	} else {
		slog.Info("user unblocked", "username", user.Username)
	}
	writeJSON(w, http.StatusOK, user)
}
