// Package server exposes a read-only HTTP view of the publisher: the post
// history and on-demand previews that are never published.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"auto_blog_publisher/history"
	"auto_blog_publisher/imagery"
	"auto_blog_publisher/pipeline"
)

// HistoryReader reads the persisted records.
type HistoryReader interface {
	Load() ([]history.Record, error)
}

// Previewer generates a rendered post without publishing it.
type Previewer interface {
	Preview(ctx context.Context) (pipeline.Preview, error)
}

type Server struct {
	history        HistoryReader
	previewer      Previewer
	store          *previewStore
	previewTimeout time.Duration
	logger         *zap.SugaredLogger
}

// previewStore keeps the latest preview and serialises generation so a
// burst of requests does not fan out into parallel model calls.
type previewStore struct {
	gen sync.Mutex

	mu     sync.Mutex
	latest *previewResp
}

func (s *previewStore) set(p *previewResp) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = p
}

func (s *previewStore) get() (*previewResp, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.latest != nil
}

func New(hist HistoryReader, previewer Previewer, previewTimeout time.Duration, logger *zap.SugaredLogger) (*Server, error) {
	if hist == nil {
		return nil, errors.New("history reader required")
	}
	if previewer == nil {
		return nil, errors.New("previewer required")
	}
	if previewTimeout <= 0 {
		previewTimeout = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Server{
		history:        hist,
		previewer:      previewer,
		store:          &previewStore{},
		previewTimeout: previewTimeout,
		logger:         logger,
	}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/preview", s.handlePreview)
	mux.HandleFunc("/preview", s.handlePreviewPage)
	return logMiddleware(s.logger, mux)
}

// --- Handlers ---

type historyResp struct {
	Count   int              `json:"count"`
	Records []history.Record `json:"records"`
}

type previewResp struct {
	Topic       string         `json:"topic"`
	Title       string         `json:"title"`
	Subtitle    string         `json:"subtitle,omitempty"`
	Summary     string         `json:"summary,omitempty"`
	Duplicate   bool           `json:"duplicate"`
	Image       *imagery.Asset `json:"image,omitempty"`
	Labels      []string       `json:"labels"`
	HTML        string         `json:"html"`
	GeneratedAt time.Time      `json:"generatedAt"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	records, err := s.history.Load()
	if err != nil {
		s.logger.Warnw("history unreadable", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		if limit < len(records) {
			records = records[len(records)-limit:]
		}
	}
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, http.StatusOK, historyResp{Count: len(records), Records: records})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		p, ok := s.store.get()
		if !ok {
			http.Error(w, "no preview yet; POST /api/preview to create one", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, p)
	case http.MethodPost:
		p, err := s.generate(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, p)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handlePreviewPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p, ok := s.store.get()
	if !ok {
		http.Error(w, "no preview yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<!doctype html><html><head><meta charset=\"utf-8\"><title>%s</title></head><body>%s</body></html>",
		html.EscapeString(p.Title), p.HTML)
}

func (s *Server) generate(ctx context.Context) (*previewResp, error) {
	s.store.gen.Lock()
	defer s.store.gen.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.previewTimeout)
	defer cancel()
	p, err := s.previewer.Preview(ctx)
	if err != nil {
		s.logger.Warnw("preview failed", "error", err)
		return nil, err
	}
	resp := &previewResp{
		Topic:       p.Draft.Topic,
		Title:       p.Post.Title,
		Subtitle:    p.Draft.Subtitle,
		Summary:     p.Draft.Summary,
		Duplicate:   p.Duplicate,
		Image:       p.Image,
		Labels:      p.Post.Labels,
		HTML:        p.Post.HTML,
		GeneratedAt: time.Now().UTC(),
	}
	s.store.set(resp)
	return resp, nil
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logMiddleware(logger *zap.SugaredLogger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Infow("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
