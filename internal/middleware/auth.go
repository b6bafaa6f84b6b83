package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hbkim/iljeong/internal/auth"
	"github.com/hbkim/iljeong/internal/store"
)

// SessionCookieName is the login session cookie.
const SessionCookieName = "iljeong_session"

// RequireAuth validates the session cookie, loads the profile, and
// populates AuthContext. Requests without a valid session get 401.
func RequireAuth(sessionStore *store.SessionStore, profileStore *store.ProfileStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				unauthorized(w)
				return
			}

			sess, err := sessionStore.GetByToken(cookie.Value)
			if err != nil || sess == nil {
				unauthorized(w)
				return
			}

			profile, err := profileStore.GetByID(sess.ProfileID)
			if err != nil || profile == nil || !profile.IsApproved {
				unauthorized(w)
				return
			}

			ac := auth.AuthContext{
				ProfileID:     profile.ID,
				PositionTitle: profile.PositionTitle,
				Role:          profile.Role,
				SessionID:     sess.ID,
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects non-admin sessions. All mutation routes are
// wrapped with this so authorization is enforced server-side, not only
// in the UI.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{"error": "admin role required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
}
