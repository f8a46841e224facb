package server

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/germz92/gearbook/internal/auth"
	"github.com/germz92/gearbook/internal/store"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	DB            *sql.DB
	SigningSecret string
}

type loginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "name and password required")
		return
	}

	op, err := store.VerifyOperator(r.Context(), h.DB, req.Name, req.Password)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if op == nil {
		slog.Warn("login failed", "name", req.Name, "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := auth.GenerateToken(h.SigningSecret, op.ID, op.Name, op.Role)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	slog.Info("operator logged in", "name", op.Name, "role", op.Role)
	jsonResponse(w, http.StatusOK, loginResponse{Token: token, Role: op.Role})
}
