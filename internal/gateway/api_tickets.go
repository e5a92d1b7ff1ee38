package gateway

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opsdesk/opsdesk/internal/auth"
	"github.com/opsdesk/opsdesk/internal/notify"
	"github.com/opsdesk/opsdesk/internal/realtime"
	"github.com/opsdesk/opsdesk/models"
)

const ticketColumns = `id, title, description, priority, status, category, created_by, created_by_name, assigned_to, assigned_to_name, estimated_time, created_at, updated_at`

const commentColumns = `id, ticket_id, text, author_id, author_name, created_at`

// handleListTickets returns tickets visible to the caller: staff see all,
// regular users only what they created.
func (gw *Gateway) handleListTickets(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)
	limit, offset := pageParams(r)

	var tickets []models.Ticket
	var err error
	if ident.Role.CanManageTickets() {
		err = gw.db.Select(r.Context(), &tickets,
			`SELECT `+ticketColumns+` FROM tickets ORDER BY created_at DESC LIMIT ? OFFSET ?`,
			limit, offset)
	} else {
		err = gw.db.Select(r.Context(), &tickets,
			`SELECT `+ticketColumns+` FROM tickets WHERE created_by = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
			ident.UserID, limit, offset)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing tickets failed")
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (gw *Gateway) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)

	var req createTicketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	priority := models.TicketPriority(req.Priority)
	if req.Priority == "" {
		priority = models.PriorityMedium
	}
	if !priority.Valid() {
		writeError(w, http.StatusBadRequest, "invalid priority")
		return
	}
	category := models.TicketCategory(req.Category)
	if req.Category == "" {
		category = models.CategoryOther
	}
	if !category.Valid() {
		writeError(w, http.StatusBadRequest, "invalid category")
		return
	}

	now := nowStamp()
	ticket := models.Ticket{
		ID:            models.NewID(),
		Title:         req.Title,
		Description:   req.Description,
		Priority:      priority,
		Status:        models.StatusOpen,
		Category:      category,
		CreatedBy:     ident.UserID,
		CreatedByName: ident.Username,
		EstimatedTime: req.EstimatedTime,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := gw.db.Insert(r.Context(), "tickets", &ticket); err != nil {
		slog.Error("ticket insert failed", "error", err)
		writeError(w, http.StatusInternalServerError, "creating ticket failed")
		return
	}

	// Everyone learns a ticket exists; staff additionally get an actionable
	// notification line.
	gw.publish(r.Context(), realtime.NewEvent("ticket_created", realtime.ToAll(), map[string]any{
		"ticket": ticket,
	}))
	staffMsg := fmt.Sprintf("New ticket from %s: %s", ticket.CreatedByName, ticket.Title)
	for _, role := range models.StaffRoles {
		gw.publish(r.Context(), realtime.NewEvent("ticket_created", realtime.ToRole(role), map[string]any{
			"ticket":  ticket,
			"message": staffMsg,
		}))
	}
	gw.notifier.Notify(r.Context(), notify.Event{
		Type:     "ticket_created",
		Title:    staffMsg,
		Body:     ticket.Description,
		Priority: string(ticket.Priority),
		TicketID: ticket.ID,
	})

	slog.Info("ticket created", "ticket_id", ticket.ID, "by", ident.Username, "priority", ticket.Priority)
	writeJSON(w, http.StatusCreated, ticket)
}

func (gw *Gateway) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)
	id := chi.URLParam(r, "id")

	ticket, err := gw.loadTicket(r, id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "ticket not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if !gw.canViewTicket(ident, ticket) {
		writeError(w, http.StatusForbidden, "not your ticket")
		return
	}

	var comments []models.Comment
	if err := gw.db.Select(r.Context(), &comments,
		`SELECT `+commentColumns+` FROM ticket_comments WHERE ticket_id = ? ORDER BY created_at`, id); err == nil {
		ticket.Comments = comments
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (gw *Gateway) handleUpdateTicket(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)
	id := chi.URLParam(r, "id")

	ticket, err := gw.loadTicket(r, id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "ticket not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if !ident.Role.CanManageTickets() && ticket.CreatedBy != ident.UserID {
		writeError(w, http.StatusForbidden, "not your ticket")
		return
	}

	var req updateTicketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Title != nil {
		ticket.Title = *req.Title
	}
	if req.Description != nil {
		ticket.Description = *req.Description
	}
	if req.Priority != nil {
		p := models.TicketPriority(*req.Priority)
		if !p.Valid() {
			writeError(w, http.StatusBadRequest, "invalid priority")
			return
		}
		ticket.Priority = p
	}
	if req.Status != nil {
		st := models.TicketStatus(*req.Status)
		if !st.Valid() {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		ticket.Status = st
	}
	if req.Category != nil {
		c := models.TicketCategory(*req.Category)
		if !c.Valid() {
			writeError(w, http.StatusBadRequest, "invalid category")
			return
		}
		ticket.Category = c
	}
	if req.EstimatedTime != nil {
		ticket.EstimatedTime = *req.EstimatedTime
	}

	// Assignment is a staff action and carries its own notification.
	var assignee *models.User
	if req.AssignedTo != nil && *req.AssignedTo != ticket.AssignedTo {
		if !ident.Role.CanManageTickets() {
			writeError(w, http.StatusForbidden, "only staff can assign tickets")
			return
		}
		ticket.AssignedTo = *req.AssignedTo
		ticket.AssignedToName = ""
		if ticket.AssignedTo != "" {
			var u models.User
			err := gw.db.Get(r.Context(), &u,
				`SELECT `+userColumns+` FROM users WHERE id = ?`, ticket.AssignedTo)
			if errors.Is(err, sql.ErrNoRows) {
				writeError(w, http.StatusBadRequest, "assignee not found")
				return
			}
			if err != nil {
				writeError(w, http.StatusInternalServerError, "assignee lookup failed")
				return
			}
			ticket.AssignedToName = u.Username
			assignee = &u
		}
	}

	ticket.UpdatedAt = nowStamp()
	if err := gw.db.Update(r.Context(), "tickets", ticket, "id = ?", id); err != nil {
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}

	payload := map[string]any{"ticket": ticket}
	gw.publish(r.Context(), realtime.NewEvent("ticket_updated", realtime.ToTopic(ticketTopic(id)), payload))
	gw.publish(r.Context(), realtime.NewEvent("ticket_updated", realtime.ToUser(ticket.CreatedBy), payload))
	if assignee != nil {
		gw.publish(r.Context(), realtime.NewEvent("ticket_assigned", realtime.ToUser(assignee.ID), payload))
		gw.notifier.Notify(r.Context(), notify.Event{
			Type:     "ticket_assigned",
			Title:    fmt.Sprintf("Ticket assigned to %s: %s", assignee.Username, ticket.Title),
			Priority: string(ticket.Priority),
			TicketID: ticket.ID,
			ChatID:   assignee.TelegramChatID,
		})
	}

	writeJSON(w, http.StatusOK, ticket)
}

func (gw *Gateway) handleDeleteTicket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ticket, err := gw.loadTicket(r, id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "ticket not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	if err := gw.db.Exec(r.Context(), `DELETE FROM ticket_comments WHERE ticket_id = ?`, id); err != nil {
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	if err := gw.db.Exec(r.Context(), `DELETE FROM tickets WHERE id = ?`, id); err != nil {
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}

	gw.publish(r.Context(), realtime.NewEvent("ticket_deleted", realtime.ToAll(), map[string]any{
		"ticket_id": id,
	}))

	slog.Info("ticket deleted", "ticket_id", id, "title", ticket.Title)
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func (gw *Gateway) handleAddComment(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)
	id := chi.URLParam(r, "id")

	ticket, err := gw.loadTicket(r, id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "ticket not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if !gw.canViewTicket(ident, ticket) {
		writeError(w, http.StatusForbidden, "not your ticket")
		return
	}

	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	comment := models.Comment{
		ID:         models.NewID(),
		TicketID:   id,
		Text:       req.Text,
		AuthorID:   ident.UserID,
		AuthorName: ident.Username,
		CreatedAt:  nowStamp(),
	}
	if err := gw.db.Insert(r.Context(), "ticket_comments", &comment); err != nil {
		writeError(w, http.StatusInternalServerError, "saving comment failed")
		return
	}

	// Thread subscribers, the ticket's creator and staff all hear about the
	// comment; the hub deduplicates overlapping sessions per address, and a
	// session in several audiences just reflects its several interests.
	payload := map[string]any{"ticket_id": id, "comment": comment}
	gw.publish(r.Context(), realtime.NewEvent("comment_added", realtime.ToTopic(ticketTopic(id)), payload))
	gw.publish(r.Context(), realtime.NewEvent("comment_added", realtime.ToUser(ticket.CreatedBy), payload))
	for _, role := range models.StaffRoles {
		gw.publish(r.Context(), realtime.NewEvent("comment_added", realtime.ToRole(role), payload))
	}

	writeJSON(w, http.StatusCreated, comment)
}

func (gw *Gateway) loadTicket(r *http.Request, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := gw.db.Get(r.Context(), &ticket,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (gw *Gateway) canViewTicket(ident *auth.Identity, ticket *models.Ticket) bool {
	return ident.Role.CanManageTickets() || ticket.CreatedBy == ident.UserID || ticket.AssignedTo == ident.UserID
}
