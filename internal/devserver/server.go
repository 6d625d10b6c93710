package devserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samvad-hq/tvapi/internal/logger"
)

const shutdownTimeout = 5 * time.Second

// Options configures the dev server.
type Options struct {
	Addr        string
	StaticDir   string
	BuildTarget string
	// Gatherer enables /metrics when set.
	Gatherer prometheus.Gatherer
}

// Server serves the compiled TV app and operational endpoints.
type Server struct {
	opts Options
	log  logger.Logger
	srv  *http.Server
}

// New validates opts and builds the router.
func New(opts Options, log logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.NopLogger{}
	}
	if strings.TrimSpace(opts.Addr) == "" {
		return nil, errors.New("dev server address is empty")
	}
	info, err := os.Stat(opts.StaticDir)
	if err != nil {
		return nil, fmt.Errorf("stat static dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("static dir %q is not a directory", opts.StaticDir)
	}

	s := &Server{opts: opts, log: log}
	s.srv = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLog)
	// The TV emulator loads the app from its own origin.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if s.opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Handle("/*", http.FileServer(http.Dir(s.opts.StaticDir)))
	return r
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.DebugObj("dev server request", "http_request", map[string]any{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"elapsed_ms": time.Since(start).Milliseconds(),
		})
	})
}

// Run listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.log.InfoObj("dev server starting", "dev_server", map[string]any{
		"addr":         s.opts.Addr,
		"static_dir":   s.opts.StaticDir,
		"build_target": s.opts.BuildTarget,
		"metrics":      s.opts.Gatherer != nil,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", s.opts.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown dev server: %w", err)
	}
	s.log.InfoObj("dev server stopped", "reason", ctx.Err())
	return nil
}
