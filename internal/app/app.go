// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/law-makers/hlsextract/internal/browser"
	"github.com/law-makers/hlsextract/internal/config"
	"github.com/law-makers/hlsextract/internal/extract"
	"github.com/law-makers/hlsextract/internal/httpapi"
	"github.com/law-makers/hlsextract/internal/metrics"
	"github.com/law-makers/hlsextract/internal/ratelimit"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Application holds all application dependencies and manages their lifecycle.
//
// It is created once at startup and shared by the serve command.
// Use Close() to ensure proper resource cleanup on shutdown.
type Application struct {
	Config   *config.Config
	Logger   *zerolog.Logger
	Metrics  *metrics.Sink
	Pool     *browser.Pool
	Watchdog *browser.Watchdog
	Pipeline *extract.Pipeline
	Limiter  *ratelimit.ClientLimiter
	Server   *httpapi.Server

	httpServer    *http.Server
	metricsServer *http.Server
	startTime     time.Time
}

// New creates and initializes a new Application with all dependencies.
//
// It performs the following initialization steps:
//   - Configures logging based on the provided config
//   - Creates the metrics sink
//   - Creates the browser pool bound to a real chromedp driver
//   - Starts the watchdog that force-exits on a stuck circuit breaker
//   - Creates the extraction pipeline and the per-client rate limiter
//   - Wires the HTTP front door
//
// If any step fails, an error is returned and no resources are allocated.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	// Initialize logger based on config
	logLevel := zerolog.ErrorLevel // default: suppress non-verbose info logs
	switch cfg.LogLevel {
	case "debug":
		logLevel = zerolog.DebugLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	default:
		logLevel = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	var logWriter io.Writer
	if cfg.JSONLog {
		logWriter = os.Stderr
	} else {
		logWriter = zerolog.NewConsoleWriter()
	}

	logger := log.Output(logWriter).With().Timestamp().Logger()

	logger.Debug().
		Str("level", cfg.LogLevel).
		Bool("json", cfg.JSONLog).
		Msg("Logger initialized")

	sink := metrics.New()

	chromePath := browser.FindChrome(cfg.ChromePath)
	driver := browser.NewChromeDriver()

	pool := browser.NewPool(driver, sink, browser.PoolConfig{
		MaxConcurrent: cfg.MaxConcurrent,
		IdleTimeout:   cfg.BrowserIdleTimeout,
		MaxAge:        cfg.BrowserMaxAge,
		Launch: browser.LaunchOptions{
			ChromePath: chromePath,
			UserAgent:  cfg.UserAgent,
		},
	})
	logger.Debug().
		Int("max_concurrent", cfg.MaxConcurrent).
		Str("chrome_path", chromePath).
		Msg("Browser pool initialized")

	watchdog := browser.NewWatchdog(pool, config.WatchdogInterval, cfg.CircuitExitThreshold)
	go watchdog.Run()

	pipeline := extract.NewPipeline(pool, sink, cfg.UserAgent)

	limiter := ratelimit.NewClientLimiter(cfg.ClientRateLimitRPS, cfg.ClientRateLimitBurst)
	logger.Debug().
		Float64("client_rps", cfg.ClientRateLimitRPS).
		Int("client_burst", cfg.ClientRateLimitBurst).
		Msg("Rate limiter initialized")

	server := httpapi.NewServer(cfg, pipeline, pool, limiter)

	app := &Application{
		Config:    cfg,
		Logger:    &logger,
		Metrics:   sink,
		Pool:      pool,
		Watchdog:  watchdog,
		Pipeline:  pipeline,
		Limiter:   limiter,
		Server:    server,
		startTime: time.Now(),
	}

	logger.Info().Msg("Application initialized successfully")
	return app, nil
}

// ListenAndServe starts the HTTP front door and the metrics endpoint. It
// blocks until one of them fails or is shut down via Close.
func (a *Application) ListenAndServe() error {
	a.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.Config.Port),
		Handler: a.Server.Handler(),
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(a.Metrics.Registry, promhttp.HandlerOpts{}))
	a.metricsServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.Config.MetricsPort),
		Handler: metricsMux,
	}

	errCh := make(chan error, 2)
	go func() {
		a.Logger.Info().Int("port", a.Config.Port).Msg("httpapi: listening")
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
			return
		}
		errCh <- nil
	}()
	go func() {
		a.Logger.Info().Int("port", a.Config.MetricsPort).Msg("metrics: listening")
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("metrics server: %w", err)
			return
		}
		errCh <- nil
	}()

	return <-errCh
}

// Close gracefully shuts down the application and all its resources.
//
// It performs the following cleanup steps in order:
//   - Stops the watchdog so it cannot force-exit mid-shutdown
//   - Stops accepting new HTTP and metrics connections
//   - Drains the browser pool, closing the browser if live
//
// A context with a timeout should be provided to prevent indefinite blocking.
// Any errors during shutdown are logged but do not prevent other shutdown steps.
func (a *Application) Close(ctx context.Context) error {
	a.Logger.Info().Msg("Shutting down application")

	if a.Watchdog != nil {
		a.Watchdog.Stop()
	}

	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("Error shutting down http server")
		}
	}
	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("Error shutting down metrics server")
		}
	}

	if a.Pool != nil {
		if err := a.Pool.Shutdown(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("Error shutting down browser pool")
		}
	}

	uptime := time.Since(a.startTime)
	a.Logger.Info().Dur("uptime", uptime).Msg("Application shutdown complete")
	return nil
}

// Uptime returns how long the application has been running.
func (a *Application) Uptime() time.Duration {
	return time.Since(a.startTime)
}
