// Package server exposes document sessions over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/raaihank/pdf-redactor/internal/config"
	"github.com/raaihank/pdf-redactor/internal/logger"
	"github.com/raaihank/pdf-redactor/internal/privacy"
	"github.com/raaihank/pdf-redactor/internal/security"
	"github.com/raaihank/pdf-redactor/internal/session"
	"github.com/raaihank/pdf-redactor/internal/web"
	"github.com/raaihank/pdf-redactor/internal/websocket"
)

// Version is reported by /info.
var Version = "0.1.0"

// Deps are the long-lived components the server routes requests to.
type Deps struct {
	Sessions *session.Manager
	Detector *privacy.Holder
	Limiter  *security.RateLimiter
	Hub      *websocket.Hub
}

// Server represents the HTTP server
type Server struct {
	config   *config.Config
	logger   *logger.Logger
	sessions *session.Manager
	detector *privacy.Holder
	limiter  *security.RateLimiter
	wsHub    *websocket.Hub
	router   *mux.Router
	server   *http.Server
	started  time.Time
}

// New creates a new server instance
func New(cfg *config.Config, deps Deps, log *logger.Logger) *Server {
	s := &Server{
		config:   cfg,
		logger:   log.WithComponent("server"),
		sessions: deps.Sessions,
		detector: deps.Detector,
		limiter:  deps.Limiter,
		wsHub:    deps.Hub,
		router:   mux.NewRouter(),
		started:  time.Now(),
	}

	s.sessions.OnEvent(s.broadcastSessionEvent)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)
	s.router.HandleFunc("/", web.ServeLanding).Methods(http.MethodGet)

	wsPath := s.config.WebSocket.Path
	if wsPath == "" {
		wsPath = "/ws"
	}
	s.router.HandleFunc(wsPath, s.wsHub.HandleWebSocket).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.rateLimitMiddleware)
	api.Use(s.identityMiddleware)

	api.HandleFunc("/document", s.handleUpload).Methods(http.MethodPost)
	api.HandleFunc("/document", s.handleSummary).Methods(http.MethodGet)
	api.HandleFunc("/document/page/{n:[0-9]+}", s.handleSetPage).Methods(http.MethodPut)

	api.HandleFunc("/matches/select-all", s.handleSelectAll).Methods(http.MethodPost)
	api.HandleFunc("/matches/clear-all", s.handleClearAll).Methods(http.MethodPost)
	api.HandleFunc("/matches/dedupe", s.handleDedupe).Methods(http.MethodPost)
	api.HandleFunc("/matches/manual", s.handleManual).Methods(http.MethodPost)
	api.HandleFunc("/matches/{id:[0-9]+}", s.handleToggle).Methods(http.MethodPut)

	api.HandleFunc("/redact", s.handleRedact).Methods(http.MethodPost)
	api.HandleFunc("/download", s.handleDownload).Methods(http.MethodGet)
	api.HandleFunc("/preview/{page:[0-9]+}", s.handlePreview).Methods(http.MethodGet)

	api.HandleFunc("/report/{format}", s.handleExport).Methods(http.MethodGet)
	api.HandleFunc("/report", s.handleImport).Methods(http.MethodPost)
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting PDF redactor server",
		zap.Int("port", s.config.Server.Port),
		zap.Int64("max_upload_bytes", s.config.Server.MaxUploadBytes),
		zap.Bool("rate_limit", s.config.RateLimit.Enabled),
	)
	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping PDF redactor server")
	return s.server.Shutdown(ctx)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	detector := s.detector.Load()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":             "pdf-redactor",
		"version":          Version,
		"enabled_rules":    detector.GetEnabledRules(),
		"active_sessions":  s.sessions.Len(),
		"rate_limited":     s.config.RateLimit.Enabled,
		"websocket":        s.config.WebSocket.Enabled,
		"max_upload_bytes": s.config.Server.MaxUploadBytes,
	})
}

// BroadcastStatus sends a system status event to websocket clients.
func (s *Server) BroadcastStatus() {
	s.wsHub.BroadcastEvent(websocket.Event{
		Type: websocket.EventTypeSystemStatus,
		Data: websocket.SystemStatusEvent{
			Status:           "healthy",
			Uptime:           time.Since(s.started).Round(time.Second).String(),
			ActiveSessions:   s.sessions.Len(),
			ActiveRules:      len(s.detector.Load().GetEnabledRules()),
			ConnectedClients: int(s.wsHub.GetStats().ActiveConnections),
		},
	})
}

// broadcastSessionEvent forwards session activity. User identities are not forwarded.
func (s *Server) broadcastSessionEvent(_ string, e session.Event) {
	if e.Command == "redact" {
		s.wsHub.BroadcastEvent(websocket.Event{
			Type: websocket.EventTypeRedaction,
			Data: websocket.RedactionEvent{Redacted: e.Selected, Pages: e.Pages},
		})
		return
	}
	s.wsHub.BroadcastEvent(websocket.Event{
		Type: websocket.EventTypeDocument,
		Data: websocket.DocumentEvent{
			Command:  e.Command,
			Matches:  e.Matches,
			Selected: e.Selected,
			Pages:    e.Pages,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
