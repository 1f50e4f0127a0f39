// Package api serves the fund and portfolio queries over HTTP.
package api

import (
	"context"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fundnav/internal/outcome"
	"github.com/sells-group/fundnav/internal/portfolio"
)

// Service is the query backend. *portfolio.Service implements it.
type Service interface {
	Fund(ctx context.Context, code, start, end string) (*portfolio.FundResult, error)
	Portfolio(ctx context.Context, req portfolio.Request) (*portfolio.Report, error)
	Name(ctx context.Context, code string) (string, outcome.Diagnostics, error)
	Names(ctx context.Context, codes []string) (*portfolio.NameResult, error)
}

// Options configures the router.
type Options struct {
	// CORSOrigins defaults to allow-all.
	CORSOrigins []string
	// StaticDir is served at / when it exists.
	StaticDir string
}

// Server is the HTTP API server.
type Server struct {
	svc    Service
	opts   Options
	router chi.Router
	log    *zap.Logger
}

// NewServer creates a Server with all routes and middleware.
func NewServer(svc Service, opts Options) *Server {
	s := &Server{
		svc:  svc,
		opts: opts,
		log:  zap.L().With(zap.String("component", "api")),
	}
	s.router = s.buildRouter()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return eris.Wrap(err, "api: listen")
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "api: shutdown")
	}
	return nil
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: !slices.Contains(origins, "*"),
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/fund/{code}", s.handleFund)
		r.Post("/portfolio", s.handlePortfolio)
		r.Get("/fund-name/{code}", s.handleFundName)
		r.Post("/fund-name/batch", s.handleFundNameBatch)
	})

	if dir := s.opts.StaticDir; dir != "" {
		if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
			r.Handle("/*", http.FileServer(http.Dir(dir)))
		} else {
			s.log.Warn("static directory not found", zap.String("dir", dir))
		}
	}

	return r
}

// requestLogger logs one line per request with the chi request ID.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
