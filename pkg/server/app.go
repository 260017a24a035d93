package server

import (
	"context"
	"time"

	"FolioPulse/internal/handler/ws"
	"FolioPulse/internal/scheduler"
	"FolioPulse/internal/usecase"
	"FolioPulse/pkg/config"
	xhttp "FolioPulse/pkg/http"
	applogger "FolioPulse/pkg/logger"
)

// App encapsulates the daemon lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	tracker    *usecase.Tracker
	auto       *scheduler.AutoRefresh
	ticker     *scheduler.CronTicker
	hub        *ws.Hub
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	tracker *usecase.Tracker,
	auto *scheduler.AutoRefresh,
	ticker *scheduler.CronTicker,
	hub *ws.Hub,
	httpServer *xhttp.Server,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		tracker:    tracker,
		auto:       auto,
		ticker:     ticker,
		hub:        hub,
		httpServer: httpServer,
	}
}

// Run starts the scheduler and HTTP server and blocks until ctx is done.
func (a *App) Run(ctx context.Context) error {
	a.ticker.Start()
	if a.cfg.AutoRefresh.Enabled {
		a.tracker.SetAutoRefresh(true)
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("foliopulse started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("storage", a.cfg.Storage.Backend),
		applogger.Int("port", a.cfg.Server.Port),
	)

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops intake first, then in-flight work, then transports.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()

	a.auto.Close()
	a.ticker.Stop(ctx)
	if err := a.tracker.Close(); err != nil {
		a.log.Warn("tracker close error", applogger.Error(err))
	}

	a.hub.Close()
	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	a.log.Info("shutdown complete")
	return nil
}

func (a *App) shutdownTimeout() time.Duration {
	if a.cfg.Server.ShutdownTimeout > 0 {
		return a.cfg.Server.ShutdownTimeout
	}
	return 10 * time.Second
}
