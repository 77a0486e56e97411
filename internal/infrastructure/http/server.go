// Package http provides the HTTP server infrastructure.
// Clean Architecture: Framework/driver layer - outermost circle.
package http

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/0xcro3dile/amplon-searchbot/internal/adapters/sessionstore"
	"github.com/0xcro3dile/amplon-searchbot/internal/domain/entities"
	"github.com/0xcro3dile/amplon-searchbot/internal/domain/ports"
	"github.com/0xcro3dile/amplon-searchbot/internal/domain/usecases"
	"github.com/0xcro3dile/amplon-searchbot/internal/render"
)

//go:embed templates/*
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

const (
	shutdownTimeout = 5 * time.Second
	sweepInterval   = time.Minute
)

// Server is the HTTP server for the chat widget and its JSON API.
type Server struct {
	sessions  *sessionstore.InMemoryStore
	search    *usecases.SearchUseCase
	templates *template.Template
	addr      string
	idleTTL   time.Duration
	logger    *slog.Logger

	inflight sync.WaitGroup
}

// NewServer creates a new HTTP server.
func NewServer(
	sessions *sessionstore.InMemoryStore,
	searchUC *usecases.SearchUseCase,
	addr string,
	idleTTL time.Duration,
	logger *slog.Logger,
) (*Server, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		sessions:  sessions,
		search:    searchUC,
		templates: tmpl,
		addr:      addr,
		idleTTL:   idleTTL,
		logger:    logger,
	}, nil
}

// Handler returns the routed handler wrapped in middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Static files
	staticContent, _ := fs.Sub(staticFS, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticContent))))

	// UI
	mux.HandleFunc("GET /{$}", s.handleIndex)

	// API
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("POST /api/sessions/{id}/messages", s.handleSubmit)
	mux.HandleFunc("GET /api/sessions/{id}/events", s.handleEvents) // SSE
	mux.HandleFunc("GET /api/health", s.handleHealth)

	return corsMiddleware(loggingMiddleware(s.logger, mux))
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln until ctx is done. Shutdown cancels the
// context of every open request, so event streams end right away.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()

	server := &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: event streams stay open for the life of the page.
		BaseContext: func(net.Listener) context.Context { return baseCtx },
	}
	server.RegisterOnShutdown(cancelRequests)

	go s.sessions.RunSweeper(ctx, sweepInterval, s.idleTTL, s.logger)

	s.logger.Info("web widget starting", slog.String("addr", ln.Addr().String()))

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http shutdown", slog.Any("error", err))
		}
	}()

	err := server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		s.waitInflight(shutdownTimeout)
		return nil
	}
	return err
}

func (s *Server) waitInflight(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		s.logger.Warn("searches still in flight at shutdown")
	}
}

type indexData struct {
	Title       string
	Placeholder string
	SendLabel   string
}

// handleIndex renders the chat page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := indexData{
		Title:       render.Title,
		Placeholder: render.InputPlaceholder,
		SendLabel:   render.SendLabel,
	}
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		s.logger.Error("render index", slog.Any("error", err))
	}
}

type sessionResponse struct {
	ID   string      `json:"id"`
	View render.View `json:"view"`
}

// handleCreateSession starts a new chat.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	s.logger.Debug("session created", slog.String("session", sess.ID()))
	writeJSON(w, http.StatusCreated, sessionResponse{
		ID:   sess.ID(),
		View: render.Build(sess.Snapshot()),
	})
}

// handleGetSession returns the current view of a chat.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, render.Build(sess.Snapshot()))
}

// handleSubmit starts a search. The reply arrives on the event stream; the
// view returned here is already stale by the time the search settles.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	query := readQuery(r)
	// Submissions outlive the request that started them.
	done, err := s.search.Start(context.WithoutCancel(r.Context()), sess, query)
	switch {
	case errors.Is(err, usecases.ErrEmptyQuery):
		writeError(w, http.StatusBadRequest, "Query required")
		return
	case errors.Is(err, usecases.ErrBusy):
		writeError(w, http.StatusConflict, "A search is already running")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		<-done
	}()

	writeJSON(w, http.StatusAccepted, render.Build(sess.Snapshot()))
}

// handleEvents streams the view after every change to the session.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	updates := make(chan entities.Snapshot, 1)
	unsubscribe := sess.Subscribe(usecases.Latest(ports.ObserverFunc(func(snap entities.Snapshot) {
		latest(updates, snap)
	})))
	defer unsubscribe()

	initial := sess.Snapshot()
	if err := sendSSE(w, flusher, render.Build(initial)); err != nil {
		return
	}
	sent := initial.Seq

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-updates:
			if snap.Seq <= sent {
				continue
			}
			sent = snap.Seq
			if err := sendSSE(w, flusher, render.Build(snap)); err != nil {
				s.logger.Debug("event stream closed", slog.String("session", sess.ID()), slog.Any("error", err))
				return
			}
		}
	}
}

// latest puts snap on a one-slot channel, replacing any snapshot not yet read.
func latest(ch chan entities.Snapshot, snap entities.Snapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*usecases.Session, bool) {
	sess, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return nil, false
	}
	return sess, true
}

func readQuery(r *http.Request) string {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req struct {
			Query string `json:"query"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return ""
		}
		return req.Query
	}
	return r.FormValue("query")
}

func sendSSE(w http.ResponseWriter, flusher http.Flusher, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", jsonData); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush keeps event streams working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}
