package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/triplesync/internal/rdf"
	"github.com/roach88/triplesync/internal/transport"
)

// roomPattern constrains room names in routes.
const roomPattern = "{room:[A-Za-z0-9._-]+}"

// Server exposes a Hub over HTTP.
type Server struct {
	hub      *Hub
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewServer creates an HTTP front for hub.
func NewServer(hub *Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Replicas are not browsers; origin checks do not apply.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.Methods(http.MethodGet).Path("/rooms/" + roomPattern + "/sync").HandlerFunc(s.syncRoom)
	r.Methods(http.MethodGet).Path("/rooms/" + roomPattern + "/graph").HandlerFunc(s.getGraph)
	r.Methods(http.MethodGet).Path("/healthz").HandlerFunc(s.healthz)
	r.Methods(http.MethodGet).Path("/metrics").Handler(promhttp.Handler())
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.logger.Info("handled",
			"method", r.Method,
			"url", r.URL.String(),
			"duration", m.Duration,
			"status", m.Code,
			"bytes", m.Written,
		)
	})
}

func (s *Server) syncRoom(w http.ResponseWriter, r *http.Request) {
	room := mux.Vars(r)["room"]
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade", "room", room, "error", err)
		return
	}
	if err := s.hub.Serve(r.Context(), room, transport.NewWebSocketFramer(conn)); err != nil {
		s.logger.Warn("session failed", "room", room, "error", err)
	}
}

func (s *Server) getGraph(w http.ResponseWriter, r *http.Request) {
	room := mux.Vars(r)["room"]
	triples, err := s.hub.backend.Pull(r.Context(), room, "")
	if err != nil {
		s.logger.Error("failed to read graph", "room", room, "error", err)
		http.Error(w, "failed to read graph", http.StatusInternalServerError)
		return
	}

	if r.URL.Query().Get("format") == "json" {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(triples); err != nil {
			s.logger.Error("failed to write out", "error", err)
		}
		return
	}
	w.Header().Set("Content-Type", "text/turtle; charset=utf-8")
	if err := rdf.WriteTurtle(w, triples); err != nil {
		s.logger.Error("failed to write out", "error", err)
	}
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok\n"))
}

// ListenAndServe serves on addr until ctx is cancelled, then closes every
// session and shuts the HTTP server down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("relay listening", "addr", ln.Addr().String())
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.hub.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
