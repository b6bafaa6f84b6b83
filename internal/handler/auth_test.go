package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hbkim/iljeong/internal/auth"
	"github.com/hbkim/iljeong/internal/database"
	"github.com/hbkim/iljeong/internal/middleware"
	"github.com/hbkim/iljeong/internal/model"
	"github.com/hbkim/iljeong/internal/store"
	ws "github.com/hbkim/iljeong/internal/websocket"
)

func newTestAuthHandler(t *testing.T) (*AuthHandler, *store.ProfileStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ps := store.NewProfileStore(db)
	ss := store.NewSessionStore(db, 24*time.Hour)
	hub := ws.NewHub(slog.Default())
	return NewAuthHandler(ps, ss, hub, 24*time.Hour, slog.Default()), ps
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body["error"]
}

func TestSignupFirstProfileBecomesAdmin(t *testing.T) {
	h, _ := newTestAuthHandler(t)

	req := httptest.NewRequest("POST", "/api/signup",
		strings.NewReader(`{"position_title":"교장","password":"secret123"}`))
	rec := httptest.NewRecorder()
	h.Signup(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	var p model.Profile
	if err := json.NewDecoder(rec.Body).Decode(&p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Role != model.RoleAdmin {
		t.Errorf("role = %q, want admin", p.Role)
	}
	if !p.IsApproved {
		t.Error("bootstrap admin should be approved")
	}

	// The bootstrap admin can log in straight away.
	req = httptest.NewRequest("POST", "/api/login",
		strings.NewReader(`{"position_title":"교장","password":"secret123"}`))
	rec = httptest.NewRecorder()
	h.Login(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("login status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestSignupCreatesPendingProfile(t *testing.T) {
	h, ps := newTestAuthHandler(t)
	if _, err := ps.Create("교장", "secret123", model.RoleAdmin); err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	req := httptest.NewRequest("POST", "/api/signup",
		strings.NewReader(`{"position_title":"행정실장","password":"secret123"}`))
	rec := httptest.NewRecorder()
	h.Signup(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	var p model.Profile
	if err := json.NewDecoder(rec.Body).Decode(&p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.PositionTitle != "행정실장" {
		t.Errorf("position_title = %q", p.PositionTitle)
	}
	if p.IsApproved {
		t.Error("new profile should start unapproved")
	}
	if p.Role != model.RoleUser {
		t.Errorf("role = %q, want user", p.Role)
	}
}

func TestSignupDuplicateTitle(t *testing.T) {
	h, ps := newTestAuthHandler(t)
	if _, err := ps.Create("행정실장", "secret123", model.RoleUser); err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	req := httptest.NewRequest("POST", "/api/signup",
		strings.NewReader(`{"position_title":"행정실장","password":"other456"}`))
	rec := httptest.NewRecorder()
	h.Signup(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestSignupMissingFields(t *testing.T) {
	h, _ := newTestAuthHandler(t)

	req := httptest.NewRequest("POST", "/api/signup",
		strings.NewReader(`{"position_title":"  ","password":""}`))
	rec := httptest.NewRecorder()
	h.Signup(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestLoginUnknownTitle(t *testing.T) {
	h, _ := newTestAuthHandler(t)

	req := httptest.NewRequest("POST", "/api/login",
		strings.NewReader(`{"position_title":"없는직책","password":"whatever"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if got := decodeError(t, rec); got != "position title is not registered" {
		t.Errorf("error = %q", got)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	h, ps := newTestAuthHandler(t)
	p, _ := ps.Create("교감", "secret123", model.RoleAdmin)
	ps.Approve(p.ID)

	req := httptest.NewRequest("POST", "/api/login",
		strings.NewReader(`{"position_title":"교감","password":"wrong"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if got := decodeError(t, rec); got != "password does not match" {
		t.Errorf("error = %q", got)
	}
}

func TestLoginPendingApproval(t *testing.T) {
	h, ps := newTestAuthHandler(t)
	if _, err := ps.Create("신규직원", "secret123", model.RoleUser); err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	req := httptest.NewRequest("POST", "/api/login",
		strings.NewReader(`{"position_title":"신규직원","password":"secret123"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if got := decodeError(t, rec); got != "profile is pending admin approval" {
		t.Errorf("error = %q", got)
	}
}

func TestMeProfileDeletedAfterSession(t *testing.T) {
	h, ps := newTestAuthHandler(t)
	p, err := ps.Create("교감", "secret123", model.RoleAdmin)
	if err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	if err := ps.Delete(p.ID); err != nil {
		t.Fatalf("delete profile: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/me", nil)
	ctx := auth.WithAuth(req.Context(), auth.AuthContext{ProfileID: p.ID, Role: model.RoleAdmin})
	rec := httptest.NewRecorder()
	h.Me(rec, req.WithContext(ctx))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestLoginSuccessSetsCookie(t *testing.T) {
	h, ps := newTestAuthHandler(t)
	p, _ := ps.Create("교감", "secret123", model.RoleAdmin)
	ps.Approve(p.ID)

	req := httptest.NewRequest("POST", "/api/login",
		strings.NewReader(`{"position_title":"교감","password":"secret123"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("expected session cookie")
	}
	if cookie.Value == "" || !cookie.HttpOnly {
		t.Errorf("cookie = %+v, want non-empty HttpOnly", cookie)
	}
}
