package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds graceful shutdown of every server
const shutdownTimeout = 30 * time.Second

// Start serves the API until ctx is cancelled or a component fails. The
// HTTP server, the Prometheus server, the prompt watcher and the rate
// limiter eviction loop share one errgroup.
func (s *Server) Start(ctx context.Context) error {
	httpServer := s.newHTTPServer()
	metricsServer := s.observability.PrometheusServer()

	s.displayServerInfo()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.Logger.Info("Starting HTTP server", "address", httpServer.Addr)
		return listen(httpServer)
	})

	if metricsServer != nil {
		g.Go(func() error {
			s.Logger.Info("Starting Prometheus metrics server", "address", metricsServer.Addr)
			return listen(metricsServer)
		})
	}

	if watcher := s.newPromptWatcher(); watcher != nil {
		g.Go(func() error { return watcher.Run(ctx) })
	}

	if s.RateLimiter != nil {
		g.Go(func() error { return s.RateLimiter.Run(ctx) })
	}

	g.Go(func() error {
		<-ctx.Done()
		s.Logger.Info("Shutting down HTTP server")
		return s.shutdown(httpServer)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	s.Logger.Info("Server shutdown completed successfully")
	return nil
}

// newHTTPServer creates and configures the HTTP server
func (s *Server) newHTTPServer() *http.Server {
	cfg := s.AppConfig.Server
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// newPromptWatcher returns a watcher over the configured prompt files, or
// nil when watching is off or no prompt comes from a file.
func (s *Server) newPromptWatcher() *PromptWatcher {
	if !s.AppConfig.Prompts.Watch {
		return nil
	}
	files := s.AppConfig.Prompts.PromptFiles()
	if len(files) == 0 {
		s.Logger.Warn("Prompt watching enabled but no prompt files are configured")
		return nil
	}

	paths := make([]string, 0, len(files))
	for _, path := range files {
		paths = append(paths, path)
	}
	slices.Sort(paths)
	return NewPromptWatcher(paths, s.AppConfig.Prompts.DebounceDelay, s.reloadPrompts, s.Logger)
}

func listen(server *http.Server) error {
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", server.Addr, err)
	}
	return nil
}

// shutdown drains in-flight requests, then flushes telemetry
func (s *Server) shutdown(server *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown server gracefully, forcing close")
		errs = append(errs, server.Close())
	}
	if err := s.observability.Shutdown(shutdownCtx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown observability")
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
