package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"newstack/internal/config"
	"newstack/internal/domain"
	"newstack/internal/httpapi"
	"newstack/internal/infrastructure/backend"
	"newstack/internal/infrastructure/cooldownstore"
	"newstack/internal/infrastructure/scheduler"
	"newstack/internal/infrastructure/storage"
	"newstack/internal/infrastructure/telegram"
	"newstack/internal/logging"
	"newstack/internal/ports"
	"newstack/internal/ratelimit"
	"newstack/internal/usecase"
)

const (
	shutdownTimeout = 10 * time.Second
	runLockMargin   = time.Minute
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg         config.Config
	logger      *slog.Logger
	limiter     *ratelimit.Limiter
	preflight   *usecase.Preflight
	controller  *usecase.Controller
	countdown   *scheduler.Countdown
	autoRefresh *usecase.AutoRefresh
	closers     []func()
}

// Status is a point-in-time view of the persisted cooldown state.
type Status struct {
	LastSuccess time.Time
	LastFailure time.Time
	Cooldown    ratelimit.Decision
	Preflight   usecase.PreflightResult
}

// New builds the application from configuration. Close releases the pool
// and store connections.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	a := &Application{cfg: cfg, logger: baseLogger}

	store, err := a.openStore()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.limiter = ratelimit.NewLimiter(store, ratelimit.Config{
		SuccessCooldown: cfg.Cooldown.Success,
		FailureCooldown: cfg.Cooldown.Failure,
	})

	var (
		catalog ports.SourceCatalog
		stories ports.StoryReader
	)
	if cfg.Database.DSN != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.DSN)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		pg := storage.NewPostgresCatalog(pool)
		catalog, stories = pg, pg
	} else {
		baseLogger.Warn("database dsn not set, preflight and story previews disabled")
	}
	a.preflight = usecase.NewPreflight(catalog, cfg.Pipeline.DefaultFetchInterval, cfg.Pipeline.RecentWindow, nil)

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.Enabled() {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	var pacer usecase.Pacer = usecase.NoPacer{}
	if cfg.Pipeline.Simulate() {
		pacer = usecase.NewDelayPacer()
	}

	a.countdown = scheduler.NewCountdown(cfg.Pipeline.AutoRefresh(), 0)

	invoker := backend.NewFunctionsClient(cfg.Backend.URL, cfg.Backend.APIKey, cfg.Backend.IngestFunction, cfg.Backend.Timeout)

	a.controller = usecase.NewController(usecase.ControllerDeps{
		Preflight:           a.preflight,
		Invoker:             invoker,
		Stories:             stories,
		Limiter:             a.limiter,
		Pacer:               pacer,
		Notifier:            notifier,
		OnComplete:          func(domain.RunReport) { a.countdown.Reset() },
		AutoRefreshInterval: cfg.Pipeline.AutoRefresh(),
		LockTTL:             runLockTTL(invoker.Timeout(), pacer),
		Logger:              baseLogger.With("component", "controller"),
	})
	a.autoRefresh = usecase.NewAutoRefresh(a.countdown, a.controller, baseLogger.With("component", "autorefresh"))

	return a, nil
}

// runLockTTL covers one backend call plus the paced steps around it, so the
// shared run lock cannot lapse while a run is still in flight.
func runLockTTL(invokeTimeout time.Duration, pacer usecase.Pacer) time.Duration {
	ttl := invokeTimeout + runLockMargin
	if paced, ok := pacer.(interface{ Budget() time.Duration }); ok {
		ttl += paced.Budget()
	}
	return ttl
}

func (a *Application) openStore() (ports.CooldownStore, error) {
	switch a.cfg.Cooldown.Store {
	case config.StoreRedis:
		store, err := cooldownstore.NewRedisStoreWithURL(a.cfg.Cooldown.RedisURL, a.cfg.Cooldown.KeyPrefix)
		if err != nil {
			return nil, fmt.Errorf("open redis cooldown store: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := store.Close(); err != nil {
				a.logger.Warn("close redis store", "error", err)
			}
		})
		return store, nil
	case config.StoreFile:
		return cooldownstore.NewFileStore(a.cfg.Cooldown.Path), nil
	default:
		return cooldownstore.NewMemoryStore(), nil
	}
}

// Controller exposes the run controller for embedding.
func (a *Application) Controller() *usecase.Controller {
	return a.controller
}

// RunOnce executes a single ingestion run.
func (a *Application) RunOnce(ctx context.Context, trigger domain.Trigger) (domain.RunReport, error) {
	return a.controller.Run(ctx, trigger)
}

// Status reads the persisted timestamps and, when a catalog is configured,
// the current source eligibility.
func (a *Application) Status(ctx context.Context) (Status, error) {
	var st Status
	var err error

	if st.LastSuccess, err = a.limiter.Store().LastSuccess(ctx); err != nil {
		return Status{}, fmt.Errorf("read last success: %w", err)
	}
	if st.LastFailure, err = a.limiter.Store().LastFailure(ctx); err != nil {
		return Status{}, fmt.Errorf("read last failure: %w", err)
	}
	if st.Cooldown, err = a.limiter.Check(ctx); err != nil {
		return Status{}, fmt.Errorf("check cooldown: %w", err)
	}
	if st.Preflight, err = a.preflight.Check(ctx); err != nil {
		return Status{}, err
	}
	return st, nil
}

// Serve runs the HTTP API and the auto-refresh timer until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	server := httpapi.NewServer(ctx, httpapi.Deps{
		Pipeline:  a.controller,
		Countdown: a.countdown,
		UI: httpapi.UIFlags{
			DefaultCollapsed:        a.cfg.UI.Collapsed(),
			ShowAutoRefreshControls: a.cfg.UI.AutoRefreshControls(),
		},
		Logger: a.logger.With("component", "httpapi"),
	})

	if err := a.autoRefresh.Start(ctx); err != nil {
		return fmt.Errorf("start auto refresh: %w", err)
	}
	if a.countdown.Enabled() {
		a.logger.Info("auto refresh enabled", "interval", a.countdown.Interval())
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Start(a.cfg.Server.Addr)
	})

	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(
			server.Shutdown(shutdownCtx),
			a.autoRefresh.Stop(shutdownCtx),
		)
	})

	return g.Wait()
}

// Close releases external connections.
func (a *Application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
