package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"weft/internal/answer"
	"weft/internal/briefing"
	"weft/internal/cache"
	"weft/internal/feed"
	"weft/internal/filter"
	"weft/internal/model"
	"weft/internal/store"
	"weft/internal/summary"
)

// Summarizer produces a summary of an article in a named style.
type Summarizer interface {
	Generate(ctx context.Context, article model.Article, style string) (summary.Result, error)
}

// Refresher pulls new articles from the configured feeds.
type Refresher interface {
	Refresh(ctx context.Context) (feed.IngestReport, error)
}

// Briefer writes the daily briefing.
type Briefer interface {
	Generate(ctx context.Context) (briefing.Result, error)
}

// Answerer answers a question from the stored articles.
type Answerer interface {
	Ask(ctx context.Context, question string) (answer.Result, error)
}

// Deps are the collaborators the HTTP layer serves from.
type Deps struct {
	Store      store.Store
	Cache      *cache.Cache
	Summarizer Summarizer
	Refresher  Refresher
	Briefer    Briefer
	Answerer   Answerer

	Threshold    int
	SummaryStyle string
}

type Server struct {
	deps   Deps
	logger *zap.Logger
	router *mux.Router
	server *http.Server
}

func NewServer(deps Deps, logger *zap.Logger) *Server {
	if deps.Threshold <= 0 {
		deps.Threshold = filter.DefaultThreshold
	}
	if deps.SummaryStyle == "" {
		deps.SummaryStyle = summary.DefaultStyle
	}
	s := &Server{
		deps:   deps,
		logger: logger,
		router: mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID, middleware.RealIP, s.accessLog, middleware.Recoverer)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Shared summary cache. Handles its own methods so CORS preflight and
	// the 405 body are under our control.
	s.router.HandleFunc("/api/summary-cache", s.handleSummaryCache)

	s.router.HandleFunc("/api/articles", s.handleListArticles).Methods("GET")
	s.router.HandleFunc("/api/articles/{id}", s.handleUpdateArticle).Methods("PATCH")
	s.router.HandleFunc("/api/articles/{id}/read", s.handleRead).Methods("POST")
	s.router.HandleFunc("/api/summary/{id}", s.handleSummary).Methods("POST")
	s.router.HandleFunc("/api/refresh", s.handleRefresh).Methods("POST")
	s.router.HandleFunc("/api/briefing", s.handleBriefing).Methods("GET")
	s.router.HandleFunc("/api/ask", s.handleAsk).Methods("POST")
}

// ServeHTTP lets the server be mounted directly, e.g. in httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start launches the HTTP server
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Summary generation waits on the LLM.
		WriteTimeout: 45 * time.Second,
	}

	s.logger.Info("Web server listening", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
		)
	})
}
