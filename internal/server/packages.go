package server

import (
	"database/sql"
	"net/http"

	"github.com/germz92/gearbook/internal/model"
	"github.com/germz92/gearbook/internal/store"
)

// PackagesHandler handles saved gear package endpoints.
type PackagesHandler struct {
	DB *sql.DB
}

// List handles GET /api/gear-packages.
func (h *PackagesHandler) List(w http.ResponseWriter, r *http.Request) {
	pkgs, err := store.ListPackages(r.Context(), h.DB)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list packages")
		return
	}
	if pkgs == nil {
		pkgs = []model.Package{}
	}
	jsonResponse(w, http.StatusOK, pkgs)
}

// Get handles GET /api/gear-packages/{id}.
func (h *PackagesHandler) Get(w http.ResponseWriter, r *http.Request) {
	pkg, err := store.GetPackage(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to load package")
		return
	}
	if pkg == nil {
		jsonError(w, http.StatusNotFound, "package not found")
		return
	}
	jsonResponse(w, http.StatusOK, pkg)
}

// Save handles POST /api/gear-packages. Bodies carrying an existing ID
// overwrite that package.
func (h *PackagesHandler) Save(w http.ResponseWriter, r *http.Request) {
	var pkg model.Package
	if err := decodeJSON(r, &pkg); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if pkg.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	saved, err := store.SavePackage(r.Context(), h.DB, pkg)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to save package")
		return
	}
	jsonResponse(w, http.StatusOK, saved)
}

// Delete handles DELETE /api/gear-packages/{id}.
func (h *PackagesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := store.DeletePackage(r.Context(), h.DB, r.PathValue("id")); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to delete package")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "package deleted"})
}
