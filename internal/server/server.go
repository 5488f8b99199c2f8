// Package server implements the reference events backend used by herald
// clients: a websocket push endpoint, a poll endpoint over the SQLite event
// log, and a publish endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/colonyops/herald/internal/auth"
	"github.com/colonyops/herald/internal/core/notify"
	"github.com/colonyops/herald/internal/data/stores"
	"github.com/colonyops/herald/internal/transport"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

const (
	broadcast      = stores.Broadcast
	HealthPath     = "/healthz"
	EventsPath     = "/api/events"
	maxPublishBody = 1 << 20
	shutdownWait   = 5 * time.Second
)

// EventLog persists published events and serves them to pollers.
type EventLog interface {
	Append(ctx context.Context, recipient string, p notify.Payload) (stores.Event, error)
	ListSince(ctx context.Context, recipient string, since time.Time, limit int) ([]stores.Event, error)
}

// Options configures a Server.
type Options struct {
	Secret         string
	AllowedOrigins []string
	Log            EventLog
	Hub            *Hub
	Logger         zerolog.Logger
}

// Server is the reference events backend.
type Server struct {
	secret         string
	allowedOrigins []string
	events         EventLog
	hub            *Hub
	log            zerolog.Logger
	router         chi.Router
}

// PublishRequest is the body of POST /api/events.
type PublishRequest struct {
	To      string         `json:"to"` // user id; empty broadcasts
	Payload notify.Payload `json:"payload"`
}

// PublishResponse reports the stored event.
type PublishResponse struct {
	Event     notify.Payload `json:"event"`
	Recipient string         `json:"recipient"`
	Delivered int            `json:"delivered"`
}

// New builds a Server and its routes.
func New(opts Options) (*Server, error) {
	if opts.Secret == "" {
		return nil, errors.New("server secret is required")
	}
	if opts.Log == nil {
		return nil, errors.New("event log is required")
	}
	if opts.Hub == nil {
		opts.Hub = NewHub()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		secret:         opts.Secret,
		allowedOrigins: opts.AllowedOrigins,
		events:         opts.Log,
		hub:            opts.Hub,
		log:            opts.Logger.With().Str("cmp", "server").Logger(),
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get(HealthPath, s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.secret))
		r.Get(transport.DefaultWSPath, s.handleWS)
		r.Get(transport.NotificationsPath, s.handleListNotifications)
		r.With(middleware.AllowContentType("application/json")).Post(EventsPath, s.handlePublish)
	})

	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully and closes open websocket connections.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", ln.Addr().String()).Msg("events server listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.hub.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownWait)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"subscribers": s.hub.TotalSubscribers(),
	})
}

// handleListNotifications serves the poll transport: events for the caller
// created at or after ?since, oldest first, as a JSON array of payloads.
func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Errorf("since: %w", err))
			return
		}
		since = t
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, fmt.Errorf("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	events, err := s.events.ListSince(r.Context(), auth.UserID(r.Context()), since, limit)
	if err != nil {
		s.log.Error().Err(err).Msg("list events")
		respondError(w, http.StatusInternalServerError, errors.New("failed to list events"))
		return
	}

	out := make([]notify.Payload, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Payload)
	}
	respondJSON(w, http.StatusOK, out)
}

// handlePublish stores an event and pushes it to connected subscribers.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPublishBody))
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	if req.Payload.Message == "" {
		respondError(w, http.StatusBadRequest, errors.New("payload.message is required"))
		return
	}

	ev, err := s.events.Append(r.Context(), req.To, req.Payload)
	if errors.Is(err, stores.ErrDuplicateEvent) {
		respondError(w, http.StatusConflict, err)
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("append event")
		respondError(w, http.StatusInternalServerError, errors.New("failed to store event"))
		return
	}

	frame, err := json.Marshal(ev.Payload)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	delivered := s.hub.Publish(ev.Recipient, frame)

	s.log.Info().
		Str("event_id", ev.ID).
		Str("recipient", ev.Recipient).
		Str("type", ev.Payload.Type).
		Int("delivered", delivered).
		Msg("event published")

	respondJSON(w, http.StatusCreated, PublishResponse{
		Event:     ev.Payload,
		Recipient: ev.Recipient,
		Delivered: delivered,
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]string{"error": err.Error()})
}
