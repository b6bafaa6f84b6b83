package handler

import (
	"log/slog"
	"net/http"

	"github.com/hbkim/iljeong/internal/model"
	"github.com/hbkim/iljeong/internal/store"
	ws "github.com/hbkim/iljeong/internal/websocket"
)

// ProfileHandler serves the admin approval queue.
type ProfileHandler struct {
	profileStore *store.ProfileStore
	hub          *ws.Hub
	logger       *slog.Logger
}

func NewProfileHandler(ps *store.ProfileStore, hub *ws.Hub, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profileStore: ps, hub: hub, logger: logger}
}

// ListPending returns profiles awaiting approval, oldest first.
func (h *ProfileHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.profileStore.ListPending()
	if err != nil {
		h.logger.Error("list pending profiles", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list pending profiles")
		return
	}
	if profiles == nil {
		profiles = []model.Profile{}
	}
	writeJSON(w, http.StatusOK, profiles)
}

// Approve marks a pending profile approved so it can log in.
func (h *ProfileHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.profileStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get profile")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}

	profile, err := h.profileStore.Approve(id)
	if err != nil {
		h.logger.Error("approve profile", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to approve profile")
		return
	}

	h.hub.Broadcast(ws.NewMessage("profile", "approved", id, nil))
	writeJSON(w, http.StatusOK, profile)
}

// Delete rejects a signup (or removes an account). Sessions go with it
// via the foreign key cascade.
func (h *ProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.profileStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get profile")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}

	if err := h.profileStore.Delete(id); err != nil {
		h.logger.Error("delete profile", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete profile")
		return
	}

	h.hub.Broadcast(ws.NewMessage("profile", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}
