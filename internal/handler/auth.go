package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hbkim/iljeong/internal/auth"
	"github.com/hbkim/iljeong/internal/middleware"
	"github.com/hbkim/iljeong/internal/model"
	"github.com/hbkim/iljeong/internal/store"
	ws "github.com/hbkim/iljeong/internal/websocket"
)

type AuthHandler struct {
	profileStore *store.ProfileStore
	sessionStore *store.SessionStore
	hub          *ws.Hub
	sessionTTL   time.Duration
	logger       *slog.Logger
}

func NewAuthHandler(ps *store.ProfileStore, ss *store.SessionStore, hub *ws.Hub, sessionTTL time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		profileStore: ps,
		sessionStore: ss,
		hub:          hub,
		sessionTTL:   sessionTTL,
		logger:       logger,
	}
}

type signupRequest struct {
	PositionTitle string `json:"position_title"`
	Password      string `json:"password"`
}

// Signup registers a new profile in the pending-approval state. The
// caller cannot log in until an admin approves the profile. The very
// first profile on a fresh database becomes the approved admin instead,
// since nobody else exists to approve it.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.PositionTitle = strings.TrimSpace(req.PositionTitle)
	if req.PositionTitle == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "position_title and password are required")
		return
	}

	count, err := h.profileStore.Count()
	if err != nil {
		h.logger.Error("count profiles", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create profile")
		return
	}
	role := model.RoleUser
	if count == 0 {
		role = model.RoleAdmin
	}

	profile, err := h.profileStore.Create(req.PositionTitle, req.Password, role)
	if errors.Is(err, store.ErrDuplicateTitle) {
		writeError(w, http.StatusConflict, "position title already registered")
		return
	}
	if err != nil {
		h.logger.Error("signup", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create profile")
		return
	}

	if count == 0 {
		profile, err = h.profileStore.Approve(profile.ID)
		if err != nil {
			h.logger.Error("approve bootstrap admin", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to create profile")
			return
		}
	}

	// Let any connected admin dashboard refresh its approval queue.
	h.hub.Broadcast(ws.NewMessage("profile", "created", profile.ID, nil))

	writeJSON(w, http.StatusCreated, profile)
}

type loginRequest struct {
	PositionTitle string `json:"position_title"`
	Password      string `json:"password"`
}

// Login checks credentials and the approval gate, reporting a distinct
// message per failure cause, and sets the session cookie on success.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	profile, err := h.profileStore.Authenticate(strings.TrimSpace(req.PositionTitle), req.Password)
	switch {
	case errors.Is(err, store.ErrProfileNotFound):
		writeError(w, http.StatusUnauthorized, "position title is not registered")
		return
	case errors.Is(err, store.ErrWrongPassword):
		writeError(w, http.StatusUnauthorized, "password does not match")
		return
	case errors.Is(err, store.ErrNotApproved):
		writeError(w, http.StatusForbidden, "profile is pending admin approval")
		return
	case err != nil:
		h.logger.Error("login", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	sess, err := h.sessionStore.Create(profile.ID)
	if err != nil {
		h.logger.Error("create session", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})

	writeJSON(w, http.StatusOK, profile)
}

// Logout deletes the current session and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if ac, ok := auth.FromContext(r.Context()); ok {
		if err := h.sessionStore.Delete(ac.SessionID); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	profile, err := h.profileStore.GetByID(ac.ProfileID)
	if err != nil {
		h.logger.Error("load profile", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	// The profile can disappear between session validation and here; a
	// stale cookie is the caller's problem, not a server fault.
	if profile == nil {
		writeError(w, http.StatusUnauthorized, "profile no longer exists")
		return
	}

	writeJSON(w, http.StatusOK, profile)
}
