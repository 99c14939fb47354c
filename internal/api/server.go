package api

import (
	"context"
	"io"
	"log/slog"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"novelrag/internal/domain"
)

// Answerer answers questions over a built index.
type Answerer interface {
	Ask(ctx context.Context, query string, topK int) (*domain.AnswerResult, error)
	Ready() bool
}

// Config limits what clients may request.
type Config struct {
	MaxTopK      int
	MaxBodyBytes int64
}

// Server is the HTTP query API.
type Server struct {
	router   chi.Router
	answerer Answerer
	gatherer prometheus.Gatherer
	log      *slog.Logger
	cfg      Config
}

// NewServer creates and configures the HTTP server. gatherer may be nil to
// disable /metrics.
func NewServer(answerer Answerer, gatherer prometheus.Gatherer, log *slog.Logger, cfg Config) *Server {
	if cfg.MaxTopK <= 0 {
		cfg.MaxTopK = 20
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 10
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt32)}))
	}
	s := &Server{answerer: answerer, gatherer: gatherer, log: log, cfg: cfg}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	r.Post("/api/query", s.handleQuery)

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.answerer.Ready() {
		jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "index not built"})
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
