package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/yahel-nav/yahel/internal/backup"
	"github.com/yahel-nav/yahel/internal/client"
	"github.com/yahel-nav/yahel/internal/email"
	"github.com/yahel-nav/yahel/internal/handler"
	"github.com/yahel-nav/yahel/internal/kiosk"
	"github.com/yahel-nav/yahel/internal/middleware"
	"github.com/yahel-nav/yahel/internal/panel"
	"github.com/yahel-nav/yahel/internal/push"
	"github.com/yahel-nav/yahel/internal/store"
	ws "github.com/yahel-nav/yahel/internal/websocket"
)

// Config carries everything the server wires together.
type Config struct {
	Push               push.Config
	Backup             backup.Config
	KioskEnabled       bool
	ServiceTokenSecret []byte
}

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	pushH         *handler.PushHandler
	rateLimiter   *middleware.RateLimiter
	backupManager *backup.Manager
	dispatcher    *push.Dispatcher
	historyStore  *store.HistoryStore
	kiosk         *kiosk.Kiosk
	kioskCtrl     *client.Controller
	secret        []byte
	logger        *slog.Logger
}

func New(db *sql.DB, cfg Config, emailClient *email.Client, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	subs := store.NewPushStore(db)
	prefs := store.NewPreferenceStore(db)
	history := store.NewHistoryStore(db)

	pushSvc := push.NewService(cfg.Push)

	var k *kiosk.Kiosk
	var local push.LocalTransport
	if cfg.KioskEnabled {
		k = kiosk.New(hub, logger)
		local = k
	}

	var mailer push.Mailer
	if emailClient != nil {
		mailer = emailClient
	}

	dispatcher := push.NewDispatcher(pushSvc, subs, prefs, history, local, mailer, logger.With("component", "dispatcher"))

	return &Server{
		db:            db,
		hub:           hub,
		pushH:         handler.NewPushHandler(subs, prefs, history, pushSvc, dispatcher, logger.With("component", "push_handler")),
		rateLimiter:   middleware.NewRateLimiter(),
		backupManager: backup.NewManager(cfg.Backup, db, logger),
		dispatcher:    dispatcher,
		historyStore:  history,
		kiosk:         k,
		secret:        cfg.ServiceTokenSecret,
		logger:        logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// BackupManager returns the snapshot manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

// HistoryStore returns the history store for cleanup tasks.
func (s *Server) HistoryStore() *store.HistoryStore {
	return s.historyStore
}

// Dispatcher returns the notification dispatcher for in-process senders.
func (s *Server) Dispatcher() *push.Dispatcher {
	return s.dispatcher
}

// StartKiosk subscribes the in-process kiosk platform through the public
// API at baseURL. It is a no-op when kiosk mode is off.
func (s *Server) StartKiosk(ctx context.Context, baseURL string) error {
	if s.kiosk == nil {
		return nil
	}

	api := client.NewAPI(baseURL)
	svc := client.NewService(s.kiosk, api, kiosk.UserID, s.logger)
	s.kioskCtrl = client.NewController(svc, api, kiosk.UserID, s.logger)

	s.kioskCtrl.Load(ctx)
	s.kioskCtrl.Subscribe(ctx)
	if snap := s.kioskCtrl.Snapshot(); snap.Err != nil {
		return fmt.Errorf("kiosk subscribe: %w", snap.Err)
	}
	s.logger.Info("kiosk display subscribed")
	return nil
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	mux.HandleFunc("GET /api/notifications/vapid-key", s.pushH.GetVAPIDKey)
	mux.HandleFunc("POST /api/notifications/subscribe", s.rateLimited(s.pushH.Subscribe, 10))
	mux.HandleFunc("POST /api/notifications/unsubscribe", s.pushH.Unsubscribe)
	mux.HandleFunc("POST /api/notifications/test", s.rateLimited(s.pushH.TestNotification, 5))
	mux.HandleFunc("GET /api/notifications/preferences/{user_id}", s.pushH.GetPreferences)
	mux.HandleFunc("PUT /api/notifications/preferences/{user_id}", s.pushH.UpdatePreferences)
	mux.HandleFunc("GET /api/notifications/categories", s.pushH.GetCategories)
	mux.HandleFunc("GET /api/notifications/history/{user_id}", s.pushH.GetHistory)

	sendGate := middleware.RequireServiceToken(s.secret)
	mux.Handle("POST /api/notifications/send", sendGate(http.HandlerFunc(s.rateLimited(s.pushH.SendNotification, 30))))

	if s.kiosk != nil {
		mux.HandleFunc("GET /api/notifications/panel", s.kioskPanelHandler)
	}

	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// kioskPanelHandler serves the wheelhouse settings panel state.
func (s *Server) kioskPanelHandler(w http.ResponseWriter, r *http.Request) {
	if s.kioskCtrl == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": "kiosk not started"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(panel.Build(s.kioskCtrl.Snapshot()))
}

func (s *Server) rateLimited(h http.HandlerFunc, perMinute int) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP, perMinute, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}
