// Package server is the HTTP API for the gear reservation backend. It is the
// authority on reservations: clients pre-check availability for fast
// feedback, but every checkout is re-arbitrated here.
package server

import (
	"database/sql"
	"net/http"

	"github.com/germz92/gearbook/internal/model"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, signingSecret string) http.Handler {
	mux := http.NewServeMux()
	notifier := NewNotifier()

	authHandler := &AuthHandler{DB: db, SigningSecret: signingSecret}
	gearHandler := &GearHandler{DB: db, Notifier: notifier}
	inventoryHandler := &InventoryHandler{DB: db, Notifier: notifier}
	packagesHandler := &PackagesHandler{DB: db}
	eventsHandler := &EventsHandler{Notifier: notifier}

	authMW := AuthMiddleware(signingSecret)
	requireEditor := RequireRole(model.RoleEditor)

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Event gear documents: read (all roles), write (editor+).
	mux.Handle("GET /api/gear", authMW(http.HandlerFunc(gearHandler.Get)))
	mux.Handle("PUT /api/gear", authMW(requireEditor(http.HandlerFunc(gearHandler.Save))))

	// Inventory: read (all roles), write (editor+).
	mux.Handle("GET /api/gear-inventory", authMW(http.HandlerFunc(inventoryHandler.List)))
	mux.Handle("POST /api/gear-inventory", authMW(requireEditor(http.HandlerFunc(inventoryHandler.Create))))
	mux.Handle("PUT /api/gear-inventory/{id}", authMW(requireEditor(http.HandlerFunc(inventoryHandler.Update))))
	mux.Handle("DELETE /api/gear-inventory/{id}", authMW(requireEditor(http.HandlerFunc(inventoryHandler.Delete))))
	mux.Handle("POST /api/gear-inventory/checkout", authMW(requireEditor(http.HandlerFunc(inventoryHandler.Checkout))))
	mux.Handle("POST /api/gear-inventory/checkin", authMW(requireEditor(http.HandlerFunc(inventoryHandler.Checkin))))
	mux.Handle("PUT /api/gear-inventory/{id}/photo", authMW(requireEditor(http.HandlerFunc(inventoryHandler.UploadPhoto))))
	mux.Handle("GET /api/gear-inventory/{id}/photo", authMW(http.HandlerFunc(inventoryHandler.GetPhoto)))

	// Packages: read (all roles), write (editor+).
	mux.Handle("GET /api/gear-packages", authMW(http.HandlerFunc(packagesHandler.List)))
	mux.Handle("POST /api/gear-packages", authMW(requireEditor(http.HandlerFunc(packagesHandler.Save))))
	mux.Handle("GET /api/gear-packages/{id}", authMW(http.HandlerFunc(packagesHandler.Get)))
	mux.Handle("DELETE /api/gear-packages/{id}", authMW(requireEditor(http.HandlerFunc(packagesHandler.Delete))))

	// Change feed.
	mux.Handle("GET /api/gear-events", authMW(http.HandlerFunc(eventsHandler.Watch)))

	return mux
}
