// Package api provides the HTTP control API of a running webmondiag.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/webmondiag/webmondiag/internal/diag"
	"github.com/webmondiag/webmondiag/internal/journal"
	"github.com/webmondiag/webmondiag/pkg/types"
)

// Controller is the part of diag.Coordinator the API drives.
type Controller interface {
	State() diag.State
	Apply(ch types.Change) (diag.State, error)
	StartServer() (diag.State, error)
	StopServer() diag.State
	Reset() diag.State
}

// Server represents the HTTP control API server.
type Server struct {
	httpServer *http.Server
	ctrl       Controller
	events     journal.Storage
	session    string
	logger     logrus.FieldLogger
	ln         net.Listener
}

// Config holds server configuration.
type Config struct {
	Addr string

	// Events is optional; without it the events endpoint answers 404.
	Events    journal.Storage
	SessionID string

	Logger logrus.FieldLogger
}

// New creates a new control API server.
func New(cfg *Config, ctrl Controller) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	s := &Server{
		ctrl:    ctrl,
		events:  cfg.Events,
		session: cfg.SessionID,
		logger:  logger,
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the routed API handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", s.handleHealth)

	// Endpoint state
	mux.HandleFunc("GET /state", s.handleGetState)
	mux.HandleFunc("PATCH /state", s.handlePatchState)

	// Lifecycle
	mux.HandleFunc("POST /server/toggle", s.handleToggle)
	mux.HandleFunc("POST /server/stop", s.handleStop)
	mux.HandleFunc("POST /reset", s.handleReset)

	// Journal
	mux.HandleFunc("GET /events", s.handleEvents)

	return s.logMiddleware(s.corsMiddleware(mux))
}

// Listen binds the API address. Serve must be called afterwards.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	return nil
}

// Serve serves the API on the listener opened by Listen. It returns
// http.ErrServerClosed after Shutdown.
func (s *Server) Serve() error {
	s.logger.WithField("addr", s.Addr()).Info("control API listening")
	return s.httpServer.Serve(s.ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the server address.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.httpServer.Addr
}

// corsMiddleware adds CORS headers.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
		}).Debug("control request")
	})
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, types.ErrorResponse{Error: message})
}

// writeChangeError reports a refused change together with the state that
// stayed in effect.
func writeChangeError(w http.ResponseWriter, st diag.State, err error) {
	status := http.StatusBadRequest
	var bindErr *diag.BindError
	if errors.As(err, &bindErr) {
		status = http.StatusConflict
	}
	cur := st.Status()
	writeJSON(w, status, types.ErrorResponse{Error: err.Error(), State: &cur})
}

// decodeJSON decodes JSON from the request body.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
