// ABOUTME: Gateway orchestrator that wires storage, dialog engine, transports and the HTTP API
// ABOUTME: Runs every enabled component until the context is cancelled, then shuts down

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/2389/handoff-gateway/internal/api"
	"github.com/2389/handoff-gateway/internal/auth"
	"github.com/2389/handoff-gateway/internal/config"
	"github.com/2389/handoff-gateway/internal/dialog"
	"github.com/2389/handoff-gateway/internal/matrix"
	"github.com/2389/handoff-gateway/internal/menu"
	"github.com/2389/handoff-gateway/internal/metrics"
	"github.com/2389/handoff-gateway/internal/notify"
	"github.com/2389/handoff-gateway/internal/router"
	"github.com/2389/handoff-gateway/internal/session"
	"github.com/2389/handoff-gateway/internal/store"
	"github.com/2389/handoff-gateway/internal/telegram"
)

// component is anything the gateway runs until shutdown.
type component struct {
	name string
	run  func(ctx context.Context) error
}

// Gateway owns the long-lived pieces of a running handoff gateway.
type Gateway struct {
	config  *config.Config
	core    *Core
	logger  *slog.Logger
	runners []component
}

// Core is the transport-independent part of the gateway: persistence,
// conversation state, metrics and the dialog manager.
type Core struct {
	Backend  store.ConfigStore
	Dialogs  *store.DocumentStore
	Phones   *store.PhoneBook
	Menu     *menu.Menu
	Manager  *dialog.Manager
	Sessions session.Store
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	closeSessions func() error
}

// OpenBackend creates the configured document backend.
func OpenBackend(cfg config.StorageConfig) (store.ConfigStore, error) {
	switch cfg.Driver {
	case "sqlite":
		return store.NewSQLiteConfigStore(cfg.SQLitePath)
	case "file", "":
		return store.NewFileConfigStore(cfg.DataDir)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

// openSessions creates the configured session store. The returned close
// function is never nil.
func openSessions(ctx context.Context, cfg config.SessionsConfig, logger *slog.Logger) (session.Store, func() error, error) {
	if cfg.Driver != "redis" {
		return session.NewMemoryStore(cfg.TTL), func() error { return nil }, nil
	}
	rs, err := session.NewRedisStore(ctx, session.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.TTL,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return rs, rs.Close, nil
}

// NewCore opens storage and sessions and builds the dialog manager.
func NewCore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Core, error) {
	backend, err := OpenBackend(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	sessions, closeSessions, err := openSessions(ctx, cfg.Sessions, logger)
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("opening sessions: %w", err)
	}

	dialogs := store.NewDocumentStore(ctx, backend, logger)
	c := &Core{
		Backend:       backend,
		Dialogs:       dialogs,
		Phones:        store.NewPhoneBook(ctx, backend, logger),
		Menu:          menu.Load(ctx, backend, logger),
		Manager:       dialog.New(dialogs, logger),
		Sessions:      sessions,
		Registry:      prometheus.NewRegistry(),
		closeSessions: closeSessions,
	}

	c.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.Metrics = metrics.New(c.Registry, c.openDialogs)
	return c, nil
}

// openDialogs backs the open-dialogs gauge.
func (c *Core) openDialogs() float64 {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	all, err := c.Dialogs.ListDialogs(ctx, "")
	if err != nil {
		return 0
	}
	n := 0
	for _, d := range all {
		if d.Status.IsOpen() {
			n++
		}
	}
	return float64(n)
}

// NewRouter builds a router for one chat platform. Staff ids and alert
// recipients are platform specific; dialogs and phone numbers are shared.
func (c *Core) NewRouter(messenger notify.Messenger, staff config.StaffConfig, timeout time.Duration, logger *slog.Logger) *router.Router {
	dispatcher := notify.NewDispatcher(messenger, notify.Config{
		Operators:    staff.Recipients(),
		AnnounceChat: staff.AnnounceChat,
		Timeout:      timeout,
	}, c.Metrics, logger)

	return router.New(router.Deps{
		Manager:    c.Manager,
		Dispatcher: dispatcher,
		Sessions:   c.Sessions,
		Phones:     c.Phones,
		Staff:      router.NewStaff(staff.Admins, staff.Operators),
		Menu:       c.Menu,
		Metrics:    c.Metrics,
	}, logger)
}

// Close releases sessions and storage.
func (c *Core) Close() error {
	var errs []error
	errs = appendCloseError(errs, "sessions close", c.closeSessions())
	errs = appendCloseError(errs, "store close", c.Dialogs.Close())
	return errors.Join(errs...)
}

// New builds every enabled component. Nothing runs until Run.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	core, err := NewCore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	gw := &Gateway{
		config: cfg,
		core:   core,
		logger: logger.With("component", "gateway"),
	}

	if err := gw.setupTransports(cfg, logger); err != nil {
		_ = core.Close()
		return nil, err
	}
	if err := gw.setupAPI(cfg, logger); err != nil {
		_ = core.Close()
		return nil, err
	}
	return gw, nil
}

func (g *Gateway) setupTransports(cfg *config.Config, logger *slog.Logger) error {
	if cfg.Telegram.Enabled {
		api, err := telegram.NewClient(cfg.Telegram.Token, cfg.Telegram.Debug)
		if err != nil {
			return err
		}
		messenger := telegram.NewMessenger(api)
		r := g.core.NewRouter(messenger, cfg.Staff, cfg.Delivery.Timeout, logger.With("transport", "telegram"))
		bot := telegram.NewBot(api, messenger, r, telegram.Config{PollTimeout: cfg.Telegram.PollTimeout}, logger)
		g.runners = append(g.runners, component{name: "telegram", run: bot.Run})
		g.logger.Info("telegram enabled", "bot", api.Self.UserName, "staff", len(cfg.Staff.Recipients()))
	}

	if cfg.Matrix.Enabled {
		client, err := matrix.NewClient(matrix.Config{
			Homeserver:  cfg.Matrix.Homeserver,
			UserID:      cfg.Matrix.UserID,
			AccessToken: cfg.Matrix.AccessToken,
		})
		if err != nil {
			return err
		}
		messenger := matrix.NewMessenger(client)
		r := g.core.NewRouter(messenger, cfg.Matrix.Staff, cfg.Delivery.Timeout, logger.With("transport", "matrix"))
		bot := matrix.NewBot(client, messenger, r, logger)
		g.runners = append(g.runners, component{name: "matrix", run: bot.Run})
		g.logger.Info("matrix enabled", "user_id", cfg.Matrix.UserID, "staff", len(cfg.Matrix.Staff.Recipients()))
	}
	return nil
}

// APIStaff merges the staff of every platform. Ids of different platforms do
// not collide: Telegram ids are numeric, Matrix room ids start with "!".
func APIStaff(cfg *config.Config) router.Staff {
	return router.NewStaff(
		slices.Concat(cfg.Staff.Admins, cfg.Matrix.Staff.Admins),
		slices.Concat(cfg.Staff.Operators, cfg.Matrix.Staff.Operators),
	)
}

func (g *Gateway) setupAPI(cfg *config.Config, logger *slog.Logger) error {
	if cfg.Server.HTTPAddr == "" {
		return nil
	}
	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating token verifier: %w", err)
	}

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	srv := api.New(api.Config{
		Addr:        cfg.Server.HTTPAddr,
		Dialogs:     g.core.Manager,
		Verifier:    verifier,
		Staff:       APIStaff(cfg),
		Metrics:     g.core.Metrics,
		MetricsPath: metricsPath,
	}, logger)
	g.runners = append(g.runners, component{name: "http", run: srv.Run})
	return nil
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails. The others are then stopped and storage is closed.
func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(g.runners))
	done := make(chan struct{}, len(g.runners))
	for _, c := range g.runners {
		go func() {
			defer func() { done <- struct{}{} }()
			if err := c.run(ctx); err != nil {
				errCh <- fmt.Errorf("%s: %w", c.name, err)
			}
		}()
	}
	g.logger.Info("gateway running", "components", len(g.runners))

	serverErr := g.waitForShutdownSignal(ctx, errCh)
	cancel()
	g.waitForComponents(done)

	shutdownErr := g.core.Close()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("component failed", "error", err)
		return err
	}
}

// waitForComponents gives components a bounded time to return.
func (g *Gateway) waitForComponents(done chan struct{}) {
	timeout := time.After(10 * time.Second)
	for range g.runners {
		select {
		case <-done:
		case <-timeout:
			g.logger.Warn("components did not stop in time")
			return
		}
	}
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}
