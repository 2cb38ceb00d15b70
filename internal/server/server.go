// ABOUTME: HTTP server wiring the conversation filter, registry, resolver, and SQLite store
// ABOUTME: Manages listener, routes, and graceful shutdown lifecycle

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/2389/convsession/internal/binding"
	"github.com/2389/convsession/internal/config"
	"github.com/2389/convsession/internal/conversation"
	"github.com/2389/convsession/internal/filter"
	"github.com/2389/convsession/internal/resolver"
	"github.com/2389/convsession/internal/store"
)

// Server owns every long-lived component. Components are created in
// dependency order by New and torn down in reverse by Shutdown.
type Server struct {
	config     *config.Config
	store      *store.SQLiteStore
	registry   *conversation.Registry
	slots      *binding.Slots
	filter     *filter.Filter
	resolver   *resolver.Resolver
	httpServer *http.Server
	logger     *slog.Logger
}

// New opens the store and builds the HTTP handler tree.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	sqlStore, err := store.NewSQLiteStore(cfg.Database.Driver, cfg.Database.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}

	registry := conversation.NewRegistry(logger)
	if err := registry.SetSessionFactory(sqlStore); err != nil {
		sqlStore.Close()
		return nil, fmt.Errorf("configuring session factory: %w", err)
	}

	filterCfg, err := filterConfig(cfg.Conversation)
	if err != nil {
		sqlStore.Close()
		return nil, err
	}

	slots := binding.NewSlots()
	convFilter := filter.New(filterCfg, registry, slots, logger)

	s := &Server{
		config:   cfg,
		store:    sqlStore,
		registry: registry,
		slots:    slots,
		filter:   convFilter,
		resolver: resolver.New(registry, slots, convFilter.AttributeName()),
		logger:   logger.With("component", "server"),
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// filterConfig converts the conversation config section to filter settings.
func filterConfig(c config.ConversationConfig) (filter.Config, error) {
	sameSite, err := config.ParseSameSite(c.CookieSameSite)
	if err != nil {
		return filter.Config{}, err
	}

	fc := filter.DefaultConfig()
	fc.CookieName = c.CookieName
	fc.AttributeName = c.AttributeName
	fc.CookiePath = c.CookiePath
	fc.CookieSameSite = sameSite
	fc.FilterAsyncDispatch = c.FilterAsyncDispatch
	if c.CookieSecure != nil {
		fc.CookieSecure = *c.CookieSecure
	}
	if c.CookieHTTPOnly != nil {
		fc.CookieHTTPOnly = *c.CookieHTTPOnly
	}
	return fc, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health endpoints - no conversation binding
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/ready", s.handleReady)

	// Conversation-bound API
	mux.Handle("/api/notes", s.filter.Middleware(http.HandlerFunc(s.handleNotes)))
	mux.Handle("/api/conversation", s.filter.Middleware(http.HandlerFunc(s.handleConversation)))
	mux.Handle("/api/conversation/flush", s.filter.Middleware(http.HandlerFunc(s.handleFlush)))
	mux.Handle("/api/conversation/end", s.filter.Middleware(http.HandlerFunc(s.handleEnd)))

	return mux
}

// Registry returns the conversation registry.
func (s *Server) Registry() *conversation.Registry {
	return s.registry
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln until the context is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := s.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() since the original context is already canceled.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()
	return s.Shutdown(ctx)
}

// Shutdown stops accepting requests, ends every live conversation, and closes the store.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", s.httpServer.Shutdown(ctx))
	errs = appendCloseError(errs, "ending conversations", s.registry.Close())
	errs = appendCloseError(errs, "store close", s.store.Close())

	return errors.Join(errs...)
}

func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if the database is reachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("database unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d conversations)", s.registry.Len())
}
