package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/caption-sync/backend/internal/api/middleware"
	"github.com/caption-sync/backend/internal/db"
)

type UserHandler struct {
	db *db.Database
}

func NewUserHandler(db *db.Database) *UserHandler {
	return &UserHandler{db: db}
}

type savePositionRequest struct {
	Position float64 `json:"position"`
	Duration float64 `json:"duration"`
}

// SavePosition persists the user's playback position for a video, so a
// reopened session resumes where it left off.
func (h *UserHandler) SavePosition(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r)
	if claims == nil {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	name := chi.URLParam(r, "name")
	var req savePositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request", http.StatusBadRequest)
		return
	}

	if err := h.db.SaveWatchPosition(claims.UserID, name, req.Position, req.Duration); err != nil {
		jsonError(w, "failed to save position", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (h *UserHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r)
	if claims == nil {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	name := chi.URLParam(r, "name")
	pos, err := h.db.GetWatchPosition(claims.UserID, name)
	if err != nil {
		jsonError(w, "failed to load position", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, map[string]float64{"position": pos}, http.StatusOK)
}
