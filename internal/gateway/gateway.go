// ABOUTME: Gateway orchestrator that wires the registry, routing policy, engine and HTTP server
// ABOUTME: Manages the supervisor's store, agent connections and HTTP lifecycle

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/2389/coven-supervisor/internal/agent"
	"github.com/2389/coven-supervisor/internal/config"
	"github.com/2389/coven-supervisor/internal/dedupe"
	"github.com/2389/coven-supervisor/internal/routing"
	"github.com/2389/coven-supervisor/internal/store"
	"github.com/2389/coven-supervisor/internal/supervisor"
	"github.com/2389/coven-supervisor/internal/team"
)

// Version is advertised in the supervisor's agent card.
const Version = "1.0.0"

// Gateway serves the supervisor over HTTP: the A2A task endpoints, the team
// management routes and session history.
type Gateway struct {
	config     *config.Config
	registry   *agent.Registry
	engine     *supervisor.Engine
	team       *team.Service
	store      store.Store
	dedupe     *dedupe.Window
	echo       *echo.Echo
	httpServer *http.Server
	logger     *slog.Logger
}

// Params lets callers replace the components New would otherwise build
// from configuration. Zero fields are built from Config.
type Params struct {
	Config *config.Config
	Logger *slog.Logger

	Dialer agent.Dialer
	Policy routing.Policy
	Store  store.Store
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	return NewWithParams(context.Background(), Params{Config: cfg, Logger: logger})
}

// NewWithParams creates a Gateway, building any component not supplied.
func NewWithParams(ctx context.Context, p Params) (*Gateway, error) {
	cfg := p.Config
	if cfg == nil {
		return nil, errors.New("gateway: config is required")
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := p.Store
	if s == nil {
		sqlStore, err := store.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("opening session store: %w", err)
		}
		s = sqlStore
	}

	policy := p.Policy
	if policy == nil {
		built, err := buildPolicy(ctx, cfg, logger)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		policy = built
	}

	dial := p.Dialer
	if dial == nil {
		dial = agent.HTTPDialer(cfg.Agents.RequestTimeout, logger)
	}
	registry := agent.NewRegistry(agent.RegistryParams{
		URLs:        cfg.Agents.URLs,
		Dialer:      dial,
		Concurrency: cfg.Agents.ConnectConcurrency,
		Logger:      logger,
	})

	engine := supervisor.New(supervisor.Params{
		Registry:     registry,
		Policy:       policy,
		Sessions:     s,
		DefaultAgent: cfg.Routing.DefaultAgent,
		Name:         cfg.Server.Name,
		HistoryLimit: cfg.Routing.HistoryLimit,
		Logger:       logger,
	})

	gw := &Gateway{
		config:   cfg,
		registry: registry,
		engine:   engine,
		team:     team.New(registry, logger),
		store:    s,
		dedupe:   dedupe.NewWindow(cfg.Tasks.DedupeTTL, cfg.Tasks.DedupeMaxSize),
		logger:   logger.With("component", "gateway"),
	}
	gw.echo = gw.newEcho()

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// buildPolicy constructs the routing policy named in the configuration.
func buildPolicy(ctx context.Context, cfg *config.Config, logger *slog.Logger) (routing.Policy, error) {
	rc := cfg.Routing
	switch rc.Policy {
	case config.PolicyLLM:
		return routing.NewLLM(routing.LLMParams{
			BaseURL:    rc.LLMURL,
			APIKey:     rc.LLMAPIKey,
			Model:      rc.Model,
			Guidelines: rc.Guidelines,
			Timeout:    rc.LLMTimeout,
			Logger:     logger,
		}), nil
	case config.PolicyRego:
		var module string
		if rc.RegoFile != "" {
			data, err := os.ReadFile(rc.RegoFile)
			if err != nil {
				return nil, fmt.Errorf("reading rego policy: %w", err)
			}
			module = string(data)
		}
		return routing.NewRego(ctx, module)
	case config.PolicyRoundRobin:
		return routing.NewRoundRobin(), nil
	case config.PolicyStatic:
		return &routing.Static{Routes: rc.Static.Routes, Default: rc.Static.Default}, nil
	default:
		return nil, fmt.Errorf("unknown routing policy %q", rc.Policy)
	}
}

func (g *Gateway) newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			g.logger.Debug("http request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			)
			return nil
		},
	}))

	// Health endpoints
	e.GET("/health", g.handleHealth)
	e.GET("/health/ready", g.handleReady)

	g.registerTaskRoutes(e)
	g.registerTeamRoutes(e.Group("/team"))
	g.registerSessionRoutes(e.Group("/sessions"))

	return e
}

// Handler returns the HTTP handler serving every route.
func (g *Gateway) Handler() http.Handler {
	return g.echo
}

// Registry exposes the agent registry.
func (g *Gateway) Registry() *agent.Registry {
	return g.registry
}

// startServer serves HTTP on ln in a goroutine, returning an error channel.
func (g *Gateway) startServer(ln net.Listener) chan error {
	errCh := make(chan error, 1)

	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// Run listens on the configured address, connects configured agents and
// serves until ctx is canceled or the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", g.config.Server.HTTPAddr, err)
	}
	g.logger.Info("starting supervisor",
		"http_addr", g.config.Server.HTTPAddr,
		"name", g.engine.Name(),
		"policy", g.config.Routing.Policy,
		"configured_agents", len(g.config.Agents.URLs),
	)

	errCh := g.startServer(ln)

	// Connect configured agents up front so the first task does not pay for it.
	go g.registry.EnsureInitialized(ctx)

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// The caller's context is already canceled at this point.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server, disconnects every agent and closes the store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down supervisor")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	g.registry.Close()

	errs = appendCloseError(errs, "store close", g.store.Close())

	return errors.Join(errs...)
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// handleReady returns 200 OK if at least one agent is connected.
func (g *Gateway) handleReady(c echo.Context) error {
	g.registry.EnsureInitialized(c.Request().Context())
	connected := g.registry.Connected()
	if len(connected) == 0 {
		return c.String(http.StatusServiceUnavailable, "no agents connected")
	}
	return c.String(http.StatusOK, fmt.Sprintf("ready (%d agents)", len(connected)))
}
