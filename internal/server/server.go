package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chyiyaqing/trendscope/internal/pipeline"
	"github.com/chyiyaqing/trendscope/internal/store"
	"github.com/chyiyaqing/trendscope/internal/trend"
)

// defaultRequestTimeout is used when Config.RequestTimeout is unset.
const defaultRequestTimeout = 120 * time.Second

// RunLister is implemented by *store.Store.
type RunLister interface {
	RecentRuns(limit int) ([]store.RunRecord, error)
}

// Prompter is implemented by *pipeline.Service.
type Prompter interface {
	Prompt(q trend.Query) string
}

type Config struct {
	Addr        string
	CorsOrigins []string

	// RequestTimeout must cover a refresh that exhausts its retries; see
	// ai.Config.Budget.
	RequestTimeout time.Duration
}

type Server struct {
	board          *pipeline.Board
	prompter       Prompter
	runs           RunLister
	logger         *slog.Logger
	requestTimeout time.Duration
	srv            *http.Server
}

// New wires the dashboard and API onto a chi router. runs may be nil.
func New(cfg Config, board *pipeline.Board, prompter Prompter, runs RunLister, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		board:          board,
		prompter:       prompter,
		runs:           runs,
		logger:         logger,
		requestTimeout: cfg.RequestTimeout,
	}
	if s.requestTimeout <= 0 {
		s.requestTimeout = defaultRequestTimeout
	}
	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(cfg.CorsOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(origins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout))

	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleDashboard)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/trends", s.handleAPITrends)
		r.Get("/trends/current", s.handleAPICurrent)
		r.Post("/refresh", s.handleAPIRefresh)
		r.Get("/runs", s.handleAPIRuns)
		r.Get("/prompt", s.handleAPIPrompt)
	})
	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start begins listening. It blocks until ctx is cancelled and the server
// has shut down.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.srv.Addr, err)
	}
	s.logger.Info("http server listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		s.Shutdown()
	}()

	if err := s.srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Warn("http shutdown", "error", err)
	}
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// selectionFrom overlays the platform and window query parameters on base.
func selectionFrom(r *http.Request, base trend.Query) (trend.Query, error) {
	q := base
	if v := r.URL.Query().Get("platform"); v != "" {
		p, err := trend.ParsePlatform(v)
		if err != nil {
			return q, err
		}
		q.Platform = p
	}
	if v := r.URL.Query().Get("window"); v != "" {
		tr, err := trend.ParseTimeRange(v)
		if err != nil {
			return q, err
		}
		q.Range = tr
	}
	return q.Normalize(), nil
}
