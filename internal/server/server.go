package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hbkim/iljeong/internal/backup"
	"github.com/hbkim/iljeong/internal/config"
	"github.com/hbkim/iljeong/internal/handler"
	"github.com/hbkim/iljeong/internal/middleware"
	"github.com/hbkim/iljeong/internal/push"
	"github.com/hbkim/iljeong/internal/store"
	ws "github.com/hbkim/iljeong/internal/websocket"
)

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	authH         *handler.AuthHandler
	profileH      *handler.ProfileHandler
	taskH         *handler.TaskHandler
	calendarH     *handler.CalendarHandler
	feedH         *handler.FeedHandler
	backupH       *handler.BackupHandler
	pushH         *handler.PushHandler
	profileStore  *store.ProfileStore
	sessionStore  *store.SessionStore
	pushStore     *store.PushStore
	rateLimiter   *middleware.RateLimiter
	trustProxy    bool
	backupManager *backup.Manager
	pushService   *push.Service
	pushScheduler *push.Scheduler
	logger        *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, loc *time.Location, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	sessionTTL := time.Duration(cfg.SessionTTLDays) * 24 * time.Hour
	profileStore := store.NewProfileStore(db)
	sessionStore := store.NewSessionStore(db, sessionTTL)
	taskStore := store.NewTaskStore(db)
	pushStore := store.NewPushStore(db)
	backupStore := store.NewBackupStore(db)

	backupMgr := backup.NewManager(cfg.Backup, db, backupStore, logger.With("component", "backup"))

	// Push notification service + scheduler, disabled until VAPID keys
	// are configured.
	var pushSvc *push.Service
	var pushSched *push.Scheduler
	var pushH *handler.PushHandler
	if cfg.Push.VAPIDPublicKey != "" && cfg.Push.VAPIDPrivateKey != "" {
		pushSvc = push.NewService(cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey)
		lead := time.Duration(cfg.Push.LeadMinutes) * time.Minute
		pushSched = push.NewScheduler(pushSvc, pushStore, taskStore, lead, loc, logger.With("component", "push"))
		pushH = handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push_handler"))
	}

	return &Server{
		db:            db,
		hub:           hub,
		authH:         handler.NewAuthHandler(profileStore, sessionStore, hub, sessionTTL, logger.With("component", "auth")),
		profileH:      handler.NewProfileHandler(profileStore, hub, logger.With("component", "profile")),
		taskH:         handler.NewTaskHandler(taskStore, hub, loc, cfg.DetachOnEdit, logger.With("component", "task")),
		calendarH:     handler.NewCalendarHandler(taskStore, loc, logger.With("component", "calendar")),
		feedH:         handler.NewFeedHandler(taskStore, loc, logger.With("component", "feed")),
		backupH:       handler.NewBackupHandler(backupMgr, backupStore, logger.With("component", "backup_handler")),
		pushH:         pushH,
		profileStore:  profileStore,
		sessionStore:  sessionStore,
		pushStore:     pushStore,
		rateLimiter:   middleware.NewRateLimiter(),
		trustProxy:    cfg.TrustProxyHeaders,
		backupManager: backupMgr,
		pushService:   pushSvc,
		pushScheduler: pushSched,
		logger:        logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

// PushScheduler returns the push notification scheduler, or nil when
// push is not configured.
func (s *Server) PushScheduler() *push.Scheduler {
	return s.pushScheduler
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/signup", s.rateLimitedHandler(s.authH.Signup))
	outerMux.HandleFunc("POST /api/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes — wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.profileStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"), s.trustProxy)(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r, s.trustProxy)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

// admin wraps a handler so only admin sessions reach it. Reads are open
// to any approved profile; every mutation goes through here.
func admin(h http.HandlerFunc) http.Handler {
	return middleware.RequireAdmin(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Auth routes that require authentication
	mux.HandleFunc("POST /api/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/me", s.authH.Me)

	// Task API routes
	mux.HandleFunc("GET /api/tasks", s.taskH.List)
	mux.HandleFunc("GET /api/tasks/{id}", s.taskH.Get)
	mux.Handle("POST /api/tasks", admin(s.taskH.Create))
	mux.Handle("PUT /api/tasks/{id}", admin(s.taskH.Update))
	mux.Handle("DELETE /api/tasks/{id}", admin(s.taskH.Delete))
	mux.Handle("POST /api/tasks/{id}/complete", admin(s.taskH.ToggleComplete))

	// Recurrence group routes
	mux.Handle("PUT /api/recurrences/{group_id}", admin(s.taskH.UpdateGroup))
	mux.Handle("DELETE /api/recurrences/{group_id}", admin(s.taskH.DeleteGroup))

	// Profile approval routes
	mux.Handle("GET /api/profiles/pending", admin(s.profileH.ListPending))
	mux.Handle("POST /api/profiles/{id}/approve", admin(s.profileH.Approve))
	mux.Handle("DELETE /api/profiles/{id}", admin(s.profileH.Delete))

	// Dashboard grid and calendar feed
	mux.HandleFunc("GET /api/calendar", s.calendarH.Grid)
	mux.HandleFunc("GET /api/feed.ics", s.feedH.ICS)

	// Backup status/history
	mux.Handle("GET /api/backups", admin(s.backupH.List))

	// Push notification API routes
	if s.pushH != nil {
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
		mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)
	}

	// WebSocket endpoint for live refresh
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))
}
