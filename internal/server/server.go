// Package server exposes sqlpilot over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/koustreak/sqlpilot/internal/catalog"
	"github.com/koustreak/sqlpilot/internal/export"
	"github.com/koustreak/sqlpilot/internal/indexer"
	"github.com/koustreak/sqlpilot/internal/logger"
	"github.com/koustreak/sqlpilot/internal/nl"
	"github.com/koustreak/sqlpilot/internal/query"
)

// Config holds listener settings.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

// Deps are the services behind the handlers. Translator and Archiver are
// optional; their routes answer 503 when nil.
type Deps struct {
	Store      catalog.Store
	Indexer    *indexer.Indexer
	Executor   *query.Executor
	Translator *nl.Translator
	Archiver   *export.Archiver
}

// Server is the HTTP API.
type Server struct {
	cfg Config
	log *logger.Logger

	store      catalog.Store
	indexer    *indexer.Indexer
	executor   *query.Executor
	translator *nl.Translator
	archiver   *export.Archiver

	handler http.Handler
}

// New wires deps into a router.
func New(cfg Config, deps Deps, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{
		cfg:        cfg,
		log:        log,
		store:      deps.Store,
		indexer:    deps.Indexer,
		executor:   deps.Executor,
		translator: deps.Translator,
		archiver:   deps.Archiver,
	}
	s.handler = s.routes()
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve listens on cfg.Addr and blocks until ctx is cancelled, then shuts
// down gracefully within cfg.ShutdownTimeout.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.handler,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}

	s.log.Event().Str("addr", ln.Addr().String()).Msg("starting API server")

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		s.log.Info("shutting down API server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
