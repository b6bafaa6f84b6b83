package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hbkim/iljeong/internal/auth"
	"github.com/hbkim/iljeong/internal/model"
	"github.com/hbkim/iljeong/internal/push"
	"github.com/hbkim/iljeong/internal/store"
)

type PushHandler struct {
	pushStore *store.PushStore
	service   *push.Service
	logger    *slog.Logger
}

func NewPushHandler(ps *store.PushStore, svc *push.Service, logger *slog.Logger) *PushHandler {
	return &PushHandler{pushStore: ps, service: svc, logger: logger}
}

type subscribeRequest struct {
	Endpoint   string `json:"endpoint"`
	P256dhKey  string `json:"p256dh_key"`
	AuthKey    string `json:"auth_key"`
	DeviceName string `json:"device_name"`
}

// Subscribe registers the caller's browser push endpoint.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Endpoint) == "" || req.P256dhKey == "" || req.AuthKey == "" {
		writeError(w, http.StatusBadRequest, "endpoint, p256dh_key, and auth_key are required")
		return
	}

	sub, err := h.pushStore.Subscribe(auth.ProfileID(r.Context()), req.Endpoint, req.P256dhKey, req.AuthKey, req.DeviceName)
	if err != nil {
		h.logger.Error("push subscribe", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to register subscription")
		return
	}

	writeJSON(w, http.StatusCreated, sub)
}

// ListSubscriptions returns the caller's registered devices.
func (h *PushHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.pushStore.ListByProfile(auth.ProfileID(r.Context()))
	if err != nil {
		h.logger.Error("push list", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}
	if subs == nil {
		subs = []model.PushSubscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// Unsubscribe removes one of the caller's devices.
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	subs, err := h.pushStore.ListByProfile(auth.ProfileID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}
	owned := false
	for _, sub := range subs {
		if sub.ID == id {
			owned = true
			break
		}
	}
	if !owned {
		writeError(w, http.StatusNotFound, "subscription not found")
		return
	}

	if err := h.pushStore.Delete(id); err != nil {
		h.logger.Error("push unsubscribe", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to remove subscription")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// VAPIDKey returns the public key the browser needs to subscribe.
func (h *PushHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"vapid_public_key": h.service.VAPIDPublicKey()})
}
