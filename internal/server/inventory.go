package server

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/germz92/gearbook/internal/imaging"
	"github.com/germz92/gearbook/internal/model"
	"github.com/germz92/gearbook/internal/store"
)

// InventoryHandler handles gear inventory and reservation endpoints.
type InventoryHandler struct {
	DB       *sql.DB
	Notifier *Notifier
}

type reservationRequest struct {
	GearID       string    `json:"gearId"`
	EventID      string    `json:"eventId"`
	CheckOutDate model.Day `json:"checkOutDate"`
	CheckInDate  model.Day `json:"checkInDate"`
	Quantity     int       `json:"quantity"`
}

type checkoutResponse struct {
	ReservationID string    `json:"reservationId"`
	GearID        string    `json:"gearId"`
	Label         string    `json:"label"`
	Category      string    `json:"category,omitempty"`
	Serial        string    `json:"serial,omitempty"`
	Quantity      int       `json:"quantity"`
	CheckOutDate  model.Day `json:"checkOutDate"`
	CheckInDate   model.Day `json:"checkInDate"`
}

// List handles GET /api/gear-inventory.
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	units, err := store.ListGearUnits(r.Context(), h.DB)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list gear")
		return
	}
	if units == nil {
		units = []model.GearUnit{}
	}
	jsonResponse(w, http.StatusOK, units)
}

// Create handles POST /api/gear-inventory.
func (h *InventoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var unit model.GearUnit
	if err := decodeJSON(r, &unit); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if unit.Label == "" {
		jsonError(w, http.StatusBadRequest, "label required")
		return
	}

	created, err := store.CreateGearUnit(r.Context(), h.DB, unit)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to create gear")
		return
	}
	jsonResponse(w, http.StatusCreated, created)
}

// Update handles PUT /api/gear-inventory/{id}.
func (h *InventoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var unit model.GearUnit
	if err := decodeJSON(r, &unit); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if unit.Label == "" {
		jsonError(w, http.StatusBadRequest, "label required")
		return
	}
	if unit.Quantity < 1 {
		unit.Quantity = 1
	}
	if unit.Status == "" {
		unit.Status = model.StatusAvailable
	}

	err := store.UpdateGearUnit(r.Context(), h.DB, id, unit.Label, unit.Category, unit.Serial, unit.Quantity, unit.Status)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to update gear")
		return
	}

	updated, err := store.GetGearUnit(r.Context(), h.DB, id)
	if err != nil || updated == nil {
		jsonError(w, http.StatusNotFound, "gear not found")
		return
	}
	jsonResponse(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/gear-inventory/{id}.
func (h *InventoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := store.DeleteGearUnit(r.Context(), h.DB, r.PathValue("id")); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to delete gear")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "gear deleted"})
}

// Checkout handles POST /api/gear-inventory/checkout. The server re-checks
// availability inside a transaction; a refused checkout returns 409 with the
// reason in the error body.
func (h *InventoryHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req reservationRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.GearID == "" || req.EventID == "" {
		jsonError(w, http.StatusBadRequest, "gearId and eventId required")
		return
	}

	rng := model.DateRange{Start: req.CheckOutDate, End: req.CheckInDate}
	reservation, err := store.Checkout(r.Context(), h.DB, req.GearID, req.EventID, rng, req.Quantity)
	var conflict *store.ConflictError
	if errors.As(err, &conflict) {
		slog.Info("checkout refused", "gear", req.GearID, "event", req.EventID, "reason", conflict.Reason)
		jsonError(w, http.StatusConflict, conflict.Reason)
		return
	}
	if errors.Is(err, store.ErrGearNotFound) {
		jsonError(w, http.StatusNotFound, "gear not found")
		return
	}
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	unit, err := store.GetGearUnit(r.Context(), h.DB, req.GearID)
	if err != nil || unit == nil {
		jsonError(w, http.StatusInternalServerError, "failed to load gear")
		return
	}

	h.Notifier.Broadcast(req.EventID)
	jsonResponse(w, http.StatusOK, checkoutResponse{
		ReservationID: reservation.ID,
		GearID:        unit.ID,
		Label:         unit.Label,
		Category:      unit.Category,
		Serial:        unit.Serial,
		Quantity:      reservation.Quantity,
		CheckOutDate:  reservation.CheckOutDate,
		CheckInDate:   reservation.CheckInDate,
	})
}

// Checkin handles POST /api/gear-inventory/checkin. Releasing gear the
// event no longer holds succeeds, so retried checkins are harmless.
func (h *InventoryHandler) Checkin(w http.ResponseWriter, r *http.Request) {
	var req reservationRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.GearID == "" || req.EventID == "" {
		jsonError(w, http.StatusBadRequest, "gearId and eventId required")
		return
	}

	rng := model.DateRange{Start: req.CheckOutDate, End: req.CheckInDate}
	if err := store.Checkin(r.Context(), h.DB, req.GearID, req.EventID, rng); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to check in gear")
		return
	}

	h.Notifier.Broadcast(req.EventID)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "checked in"})
}

// UploadPhoto handles PUT /api/gear-inventory/{id}/photo.
func (h *InventoryHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	unit, err := store.GetGearUnit(r.Context(), h.DB, id)
	if err != nil || unit == nil {
		jsonError(w, http.StatusNotFound, "gear not found")
		return
	}

	photo, err := imaging.Prepare(http.MaxBytesReader(w, r.Body, 10<<20))
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := store.SetGearPhoto(r.Context(), h.DB, id, photo.Data, photo.MIME); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to store photo")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "photo updated"})
}

// GetPhoto handles GET /api/gear-inventory/{id}/photo. ?size=thumb serves a
// downscaled rendering.
func (h *InventoryHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	data, mime, err := store.GetGearPhoto(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to load photo")
		return
	}
	if len(data) == 0 {
		jsonError(w, http.StatusNotFound, "no photo")
		return
	}

	if r.URL.Query().Get("size") == "thumb" {
		thumb, err := imaging.Thumbnail(data)
		if err != nil {
			jsonError(w, http.StatusInternalServerError, "failed to render thumbnail")
			return
		}
		data, mime = thumb.Data, thumb.MIME
	}

	w.Header().Set("Content-Type", mime)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
