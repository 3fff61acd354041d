package server

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// DefaultAddr is the address the server listens on by default.
const DefaultAddr = "127.0.0.1:3001"

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

//go:embed index.html
var indexPage []byte

// Page is one page of the article pager. Every page holds one article.
type Page struct {
	CurrentArticle *Article `json:"currentArticle"`
	CurrentPage    int      `json:"currentPage"`
	TotalPages     int      `json:"totalPages"`
	NextPage       *int     `json:"nextPage"`
	PrevPage       *int     `json:"prevPage"`
}

// Server serves an archive over HTTP.
type Server struct {
	archive *Archive
	logger  *slog.Logger
	handler http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New returns a server for archive.
func New(archive *Archive, opts ...Option) *Server {
	s := &Server{archive: archive, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.handler = s.loggingMiddleware(corsMiddleware(s.routes()))
	return s
}

// Handler returns the HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/", s.index).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/articles", s.listArticles).Methods(http.MethodGet)
	api.HandleFunc("/articles/{id}", s.getArticle).Methods(http.MethodGet)
	return router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func (s *Server) index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexPage)
}

// listArticles serves the page given by the page query parameter. A
// missing, malformed or non-positive page is page 1.
func (s *Server) listArticles(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	total, err := s.archive.Len()
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "failed to read articles", err)
		return
	}

	resp := Page{CurrentPage: page, TotalPages: total}
	if article, ok, err := s.archive.At(page - 1); err != nil {
		s.sendError(w, http.StatusInternalServerError, "failed to read articles", err)
		return
	} else if ok {
		resp.CurrentArticle = &article
	}
	if page < total {
		next := page + 1
		resp.NextPage = &next
	}
	if page > 1 {
		prev := page - 1
		resp.PrevPage = &prev
	}
	s.sendJSON(w, http.StatusOK, resp)
}

func (s *Server) getArticle(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := uuid.Parse(id); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid article ID", nil)
		return
	}

	article, ok, err := s.archive.Get(id)
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "failed to read articles", err)
		return
	}
	if !ok {
		s.sendError(w, http.StatusNotFound, "article not found", nil)
		return
	}
	s.sendJSON(w, http.StatusOK, article)
}

// sendJSON writes v with HTML escaping disabled so that article text is
// served as stored.
func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) sendError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		s.logger.Error(message, "error", err)
	}
	s.sendJSON(w, status, map[string]string{"error": message})
}

// corsMiddleware lets browser pages on other origins read the API.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration", time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
