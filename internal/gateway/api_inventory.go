package gateway

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opsdesk/opsdesk/internal/realtime"
	"github.com/opsdesk/opsdesk/models"
)

const inventoryColumns = `id, name, type, serial_number, location, status, description, responsible, created_at, updated_at`

func (gw *Gateway) handleListInventory(w http.ResponseWriter, r *http.Request) {
	var items []models.InventoryItem
	err := gw.db.Select(r.Context(), &items,
		`SELECT `+inventoryColumns+` FROM inventory ORDER BY name`)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing inventory failed")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (gw *Gateway) handleCreateInventory(w http.ResponseWriter, r *http.Request) {
	var req inventoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	status := models.InventoryStatus(req.Status)
	if req.Status == "" {
		status = models.InventoryWorking
	}
	if !status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	now := nowStamp()
	item := models.InventoryItem{
		ID:           models.NewID(),
		Name:         req.Name,
		Type:         req.Type,
		SerialNumber: req.SerialNumber,
		Location:     req.Location,
		Status:       status,
		Description:  req.Description,
		Responsible:  req.Responsible,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := gw.db.Insert(r.Context(), "inventory", &item); err != nil {
		writeError(w, http.StatusInternalServerError, "creating inventory item failed")
		return
	}

	gw.publishInventoryEvent(r, "inventory_created", map[string]any{"item": item})
	writeJSON(w, http.StatusCreated, item)
}

func (gw *Gateway) handleGetInventory(w http.ResponseWriter, r *http.Request) {
	var item models.InventoryItem
	err := gw.db.Get(r.Context(), &item,
		`SELECT `+inventoryColumns+` FROM inventory WHERE id = ?`, chi.URLParam(r, "id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "inventory item not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (gw *Gateway) handleUpdateInventory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var item models.InventoryItem
	err := gw.db.Get(r.Context(), &item,
		`SELECT `+inventoryColumns+` FROM inventory WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "inventory item not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	var req updateInventoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name != nil {
		item.Name = *req.Name
	}
	if req.Type != nil {
		item.Type = *req.Type
	}
	if req.SerialNumber != nil {
		item.SerialNumber = *req.SerialNumber
	}
	if req.Location != nil {
		item.Location = *req.Location
	}
	if req.Status != nil {
		st := models.InventoryStatus(*req.Status)
		if !st.Valid() {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		item.Status = st
	}
	if req.Description != nil {
		item.Description = *req.Description
	}
	if req.Responsible != nil {
		item.Responsible = *req.Responsible
	}
	item.UpdatedAt = nowStamp()

	if err := gw.db.Update(r.Context(), "inventory", &item, "id = ?", id); err != nil {
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}

	gw.publishInventoryEvent(r, "inventory_updated", map[string]any{"item": item})
	writeJSON(w, http.StatusOK, item)
}

func (gw *Gateway) handleDeleteInventory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := gw.db.Exec(r.Context(), `DELETE FROM inventory WHERE id = ?`, id); err != nil {
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	gw.publishInventoryEvent(r, "inventory_deleted", map[string]any{"item_id": id})
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// publishInventoryEvent tells staff sessions about an inventory change.
// Regular users do not track equipment, so there is no broadcast.
func (gw *Gateway) publishInventoryEvent(r *http.Request, eventType string, data map[string]any) {
	for _, role := range models.StaffRoles {
		gw.publish(r.Context(), realtime.NewEvent(eventType, realtime.ToRole(role), data))
	}
}
