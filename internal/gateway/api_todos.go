package gateway

import (
	"database/sql"
	"errors"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/opsdesk/opsdesk/internal/auth"
	"github.com/opsdesk/opsdesk/internal/realtime"
	"github.com/opsdesk/opsdesk/models"
)

const todoColumns = `id, title, description, status, assigned_to, tags, story_points, project, due_date, created_by, created_at, updated_at`

// handleListTodos returns the caller's board: cards they created or are
// assigned to. Staff see everything. Assignment lives in a JSON column, so
// the visibility filter runs in Go rather than SQL.
func (gw *Gateway) handleListTodos(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)

	var rows []models.TodoRow
	err := gw.db.Select(r.Context(), &rows,
		`SELECT `+todoColumns+` FROM todos ORDER BY created_at DESC`)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing todos failed")
		return
	}

	todos := make([]models.Todo, 0, len(rows))
	for i := range rows {
		todo := rows[i].Todo()
		if ident.Role.CanManageTickets() || slices.Contains(todo.Audience(), ident.UserID) {
			todos = append(todos, todo)
		}
	}
	writeJSON(w, http.StatusOK, todos)
}

func (gw *Gateway) handleCreateTodo(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)

	var req createTodoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	status := req.Status
	if status == "" {
		status = "todo"
	}

	now := nowStamp()
	todo := models.Todo{
		ID:          models.NewID(),
		Title:       req.Title,
		Description: req.Description,
		Status:      status,
		AssignedTo:  req.AssignedTo,
		Tags:        req.Tags,
		StoryPoints: req.StoryPoints,
		Project:     req.Project,
		DueDate:     req.DueDate,
		CreatedBy:   ident.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	row := todo.Row()
	if err := gw.db.Insert(r.Context(), "todos", &row); err != nil {
		writeError(w, http.StatusInternalServerError, "creating todo failed")
		return
	}

	gw.publish(r.Context(), realtime.NewEvent("todo_created",
		realtime.ToUsers(todo.Audience()...), map[string]any{"todo": todo}))

	writeJSON(w, http.StatusCreated, todo)
}

func (gw *Gateway) handleGetTodo(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)

	todo, err := gw.loadTodo(r, chi.URLParam(r, "id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "todo not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if !canTouchTodo(ident, todo) {
		writeError(w, http.StatusForbidden, "not your todo")
		return
	}
	writeJSON(w, http.StatusOK, todo)
}

func (gw *Gateway) handleUpdateTodo(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)
	id := chi.URLParam(r, "id")

	todo, err := gw.loadTodo(r, id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "todo not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if !canTouchTodo(ident, todo) {
		writeError(w, http.StatusForbidden, "not your todo")
		return
	}

	var req updateTodoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Collect the audience before and after so a removed assignee still
	// hears about the change that dropped them.
	audience := todo.Audience()

	if req.Title != nil {
		todo.Title = *req.Title
	}
	if req.Description != nil {
		todo.Description = *req.Description
	}
	if req.Status != nil {
		todo.Status = *req.Status
	}
	if req.AssignedTo != nil {
		todo.AssignedTo = *req.AssignedTo
	}
	if req.Tags != nil {
		todo.Tags = *req.Tags
	}
	if req.StoryPoints != nil {
		todo.StoryPoints = *req.StoryPoints
	}
	if req.Project != nil {
		todo.Project = *req.Project
	}
	if req.DueDate != nil {
		todo.DueDate = *req.DueDate
	}
	todo.UpdatedAt = nowStamp()

	row := todo.Row()
	if err := gw.db.Update(r.Context(), "todos", &row, "id = ?", id); err != nil {
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}

	for _, uid := range todo.Audience() {
		if !slices.Contains(audience, uid) {
			audience = append(audience, uid)
		}
	}
	gw.publish(r.Context(), realtime.NewEvent("todo_updated",
		realtime.ToUsers(audience...), map[string]any{"todo": todo}))

	writeJSON(w, http.StatusOK, todo)
}

func (gw *Gateway) handleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)
	id := chi.URLParam(r, "id")

	todo, err := gw.loadTodo(r, id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "todo not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if todo.CreatedBy != ident.UserID && ident.Role != models.RoleAdmin {
		writeError(w, http.StatusForbidden, "only the creator or an admin can delete a todo")
		return
	}

	if err := gw.db.Exec(r.Context(), `DELETE FROM todos WHERE id = ?`, id); err != nil {
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}

	gw.publish(r.Context(), realtime.NewEvent("todo_deleted",
		realtime.ToUsers(todo.Audience()...), map[string]any{"todo_id": id}))

	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func (gw *Gateway) loadTodo(r *http.Request, id string) (*models.Todo, error) {
	var row models.TodoRow
	err := gw.db.Get(r.Context(), &row,
		`SELECT `+todoColumns+` FROM todos WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	todo := row.Todo()
	return &todo, nil
}

func canTouchTodo(ident *auth.Identity, todo *models.Todo) bool {
	return ident.Role.CanManageTickets() || slices.Contains(todo.Audience(), ident.UserID)
}
