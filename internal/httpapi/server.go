package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"newstack/internal/domain"
	"newstack/internal/ratelimit"
	"newstack/internal/usecase"
)

// Pipeline is the slice of the run controller the API drives.
type Pipeline interface {
	Snapshot() domain.Snapshot
	IsRunning() bool
	Cooldown(ctx context.Context) (ratelimit.Decision, error)
	Run(ctx context.Context, trigger domain.Trigger) (domain.RunReport, error)
}

// Countdown exposes the auto-refresh timer state.
type Countdown interface {
	Enabled() bool
	Interval() time.Duration
	Remaining() time.Duration
}

// UIFlags are presentation settings echoed to clients.
type UIFlags struct {
	DefaultCollapsed        bool `json:"defaultCollapsed"`
	ShowAutoRefreshControls bool `json:"showAutoRefreshControls"`
}

// Deps wires the API.
type Deps struct {
	Pipeline  Pipeline
	Countdown Countdown
	UI        UIFlags
	Logger    *slog.Logger
}

// Server serves the pipeline status and run endpoints.
type Server struct {
	echo      *echo.Echo
	pipeline  Pipeline
	countdown Countdown
	ui        UIFlags
	logger    *slog.Logger

	// runCtx outlives requests; runs started over HTTP are bound to it.
	runCtx context.Context
	runs   sync.WaitGroup
}

// NewServer registers routes. Runs accepted by POST /api/pipeline/run are
// cancelled when ctx is.
func NewServer(ctx context.Context, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		echo:      echo.New(),
		pipeline:  deps.Pipeline,
		countdown: deps.Countdown,
		ui:        deps.UI,
		logger:    logger,
		runCtx:    ctx,
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return path == "/healthz" || path == "/metrics"
		},
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		LogMethod:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error == nil {
				logger.Debug("request completed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds())
			} else {
				logger.Warn("request failed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds(),
					"error", v.Error.Error())
			}
			return nil
		},
	}))
	e.Use(middleware.Recover())

	e.GET("/healthz", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/pipeline")
	api.GET("", s.status)
	api.POST("/run", s.run)

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("http api listening", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, drains in-flight ones and waits for
// runs started over HTTP to settle, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return err
	}

	settled := make(chan struct{})
	go func() {
		s.runs.Wait()
		close(settled)
	}()

	select {
	case <-settled:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for runs to settle: %w", ctx.Err())
	}
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type cooldownView struct {
	Blocked          bool             `json:"blocked"`
	Window           ratelimit.Window `json:"window,omitempty"`
	RemainingMinutes int              `json:"remainingMinutes"`
	Message          string           `json:"message,omitempty"`
}

type autoRefreshView struct {
	Enabled          bool  `json:"enabled"`
	IntervalSeconds  int64 `json:"intervalSeconds"`
	RemainingSeconds int64 `json:"remainingSeconds"`
}

type statusResponse struct {
	Pipeline    domain.Snapshot `json:"pipeline"`
	Cooldown    cooldownView    `json:"cooldown"`
	AutoRefresh autoRefreshView `json:"autoRefresh"`
	UI          UIFlags         `json:"ui"`
}

func (s *Server) status(c echo.Context) error {
	decision, err := s.pipeline.Cooldown(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "cooldown store unavailable").SetInternal(err)
	}

	resp := statusResponse{
		Pipeline: s.pipeline.Snapshot(),
		Cooldown: viewCooldown(decision),
		UI:       s.ui,
	}
	if s.countdown != nil && s.countdown.Enabled() {
		resp.AutoRefresh = autoRefreshView{
			Enabled:          true,
			IntervalSeconds:  int64(s.countdown.Interval() / time.Second),
			RemainingSeconds: int64(s.countdown.Remaining() / time.Second),
		}
	}
	return c.JSON(http.StatusOK, resp)
}

type runRequest struct {
	Trigger domain.Trigger `json:"trigger"`
}

func (s *Server) run(c echo.Context) error {
	var req runRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
		}
	}
	if req.Trigger == "" {
		req.Trigger = domain.TriggerManual
	}
	if !req.Trigger.Valid() {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown trigger"})
	}

	if s.pipeline.IsRunning() {
		return c.JSON(http.StatusConflict, map[string]string{"error": usecase.ErrAlreadyRunning.Error()})
	}

	decision, err := s.pipeline.Cooldown(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "cooldown store unavailable").SetInternal(err)
	}
	if decision.Blocked {
		return c.JSON(http.StatusTooManyRequests, viewCooldown(decision))
	}

	trigger := req.Trigger
	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		report, err := s.pipeline.Run(s.runCtx, trigger)
		if err != nil {
			var cooldown *usecase.CooldownError
			if errors.Is(err, usecase.ErrAlreadyRunning) || errors.As(err, &cooldown) {
				s.logger.Debug("api run lost the race", "error", err)
				return
			}
			s.logger.Warn("api run refused", "error", err)
			return
		}
		s.logger.Debug("api run settled", "attempt_id", report.AttemptID, "outcome", report.Outcome)
	}()

	return c.JSON(http.StatusAccepted, map[string]string{"status": "started", "trigger": string(trigger)})
}

func viewCooldown(d ratelimit.Decision) cooldownView {
	return cooldownView{
		Blocked:          d.Blocked,
		Window:           d.Window,
		RemainingMinutes: d.RemainingMinutes(),
		Message:          d.Message(),
	}
}
