package gateway

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opsdesk/opsdesk/models"
)

const attachmentColumns = `id, parent_type, parent_id, filename, stored_path, content_type, size_bytes, uploaded_by, created_at`

// handleUploadAttachment accepts a multipart upload against a ticket.
func (gw *Gateway) handleUploadAttachment(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)
	ticketID := chi.URLParam(r, "id")

	ticket, err := gw.loadTicket(r, ticketID)
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

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	storedName, size, err := gw.files.Save(header.Filename, file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	att := models.Attachment{
		ID:          models.NewID(),
		ParentType:  "ticket",
		ParentID:    ticketID,
		Filename:    header.Filename,
		StoredPath:  storedName,
		ContentType: header.Header.Get("Content-Type"),
		SizeBytes:   size,
		UploadedBy:  ident.UserID,
		CreatedAt:   nowStamp(),
	}
	if err := gw.db.Insert(r.Context(), "attachments", &att); err != nil {
		_ = gw.files.Remove(storedName)
		writeError(w, http.StatusInternalServerError, "saving attachment failed")
		return
	}
	writeJSON(w, http.StatusCreated, att)
}

// handleDownloadAttachment streams a stored file back to the client.
func (gw *Gateway) handleDownloadAttachment(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)
	id := chi.URLParam(r, "id")

	var att models.Attachment
	err := gw.db.Get(r.Context(), &att,
		`SELECT `+attachmentColumns+` FROM attachments WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "attachment not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	if att.ParentType == "ticket" {
		ticket, err := gw.loadTicket(r, att.ParentID)
		if err != nil {
			writeError(w, http.StatusNotFound, "parent ticket not found")
			return
		}
		if !gw.canViewTicket(ident, ticket) {
			writeError(w, http.StatusForbidden, "not your ticket")
			return
		}
	}

	f, err := gw.files.Open(att.StoredPath)
	if err != nil {
		writeError(w, http.StatusNotFound, "stored file is missing")
		return
	}
	defer f.Close()

	ct := att.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.Filename))
	_, _ = io.Copy(w, f)
}
