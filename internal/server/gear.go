package server

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/germz92/gearbook/internal/model"
	"github.com/germz92/gearbook/internal/store"
)

// GearHandler serves event gear documents.
type GearHandler struct {
	DB       *sql.DB
	Notifier *Notifier
}

// Get handles GET /api/gear?eventId=...
func (h *GearHandler) Get(w http.ResponseWriter, r *http.Request) {
	eventID := r.URL.Query().Get("eventId")
	if eventID == "" {
		jsonError(w, http.StatusBadRequest, "eventId required")
		return
	}

	doc, err := store.GetEventDoc(r.Context(), h.DB, eventID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to load event document")
		return
	}
	jsonResponse(w, http.StatusOK, doc)
}

// Save handles PUT /api/gear. The document's revision must match the stored
// one or the save is refused with 412.
func (h *GearHandler) Save(w http.ResponseWriter, r *http.Request) {
	var doc model.EventDocument
	if err := decodeJSON(r, &doc); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if doc.EventID == "" {
		jsonError(w, http.StatusBadRequest, "eventId required")
		return
	}

	rev, err := store.SaveEventDoc(r.Context(), h.DB, &doc)
	if errors.Is(err, store.ErrRevisionMismatch) {
		jsonError(w, http.StatusPreconditionFailed, "document was modified by another session")
		return
	}
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to save event document")
		return
	}

	h.Notifier.Broadcast(doc.EventID)
	jsonResponse(w, http.StatusOK, map[string]int64{"revision": rev})
}
