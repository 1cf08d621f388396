// Package api provides HTTP handlers and the API server for waflow.
//
// It exposes RESTful endpoints for authoring flow scripts, testing them
// against the execution engine, and receiving Twilio webhooks.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sendloop/waflow/internal/flow"
	"github.com/sendloop/waflow/internal/messaging"
)

// Constants for API server configuration
const (
	// DefaultAddr is the default listen address for the API server
	DefaultAddr = ":8080"
	// DefaultShutdownTimeout bounds graceful shutdown on context cancellation
	DefaultShutdownTimeout = 10 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr        string // HTTP listen address
	Tenant      string // tenant scoping all flow and conversation operations
	DefaultFlow string // flow executed for inbound webhook messages
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the HTTP listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithTenant sets the tenant used to scope API operations.
func WithTenant(tenant string) Option {
	return func(o *Opts) {
		o.Tenant = tenant
	}
}

// WithDefaultFlow sets the flow executed for inbound messages.
func WithDefaultFlow(name string) Option {
	return func(o *Opts) {
		o.DefaultFlow = name
	}
}

// Server wires the flow service, execution engine, and messaging service
// behind the HTTP API.
type Server struct {
	flows       *flow.Service
	engine      *flow.Engine
	msgService  messaging.Service
	tenant      string
	defaultFlow string
	addr        string
}

// NewServer creates an API server, applying any provided options.
func NewServer(flows *flow.Service, engine *flow.Engine, msgService messaging.Service, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.DefaultFlow == "" {
		cfg.DefaultFlow = flow.PresetFlowName
	}
	slog.Debug("api.NewServer configured", "addr", cfg.Addr, "tenant", cfg.Tenant, "default_flow", cfg.DefaultFlow)

	return &Server{
		flows:       flows,
		engine:      engine,
		msgService:  msgService,
		tenant:      cfg.Tenant,
		defaultFlow: cfg.DefaultFlow,
		addr:        cfg.Addr,
	}
}

// routes returns the HTTP mux with all API endpoints registered.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/flows", s.flowsHandler)
	mux.HandleFunc("/flows/", s.flowHandler)
	mux.HandleFunc("/webhook/twilio", s.twilioWebhookHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run ensures the preset flow exists, starts the messaging service and the
// inbound router, and serves the HTTP API until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if created, err := s.flows.EnsurePreset(s.tenant, s.defaultFlow); err != nil {
		return fmt.Errorf("failed to ensure preset flow: %w", err)
	} else if created {
		slog.Info("Server.Run materialized preset flow", "tenant", s.tenant, "flow", s.defaultFlow)
	}

	if err := s.msgService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start messaging service: %w", err)
	}
	router := messaging.NewInboundRouter(s.engine, s.msgService, s.tenant, s.defaultFlow)
	router.Start(ctx)

	srv := &http.Server{Addr: s.addr, Handler: s.routes()}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("waflow API listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("Server.Run shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server.Run shutdown failed", "error", err)
		}
		if err := s.msgService.Stop(); err != nil {
			slog.Error("Server.Run failed to stop messaging service", "error", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("API server failed: %w", err)
		}
		return nil
	}
}
