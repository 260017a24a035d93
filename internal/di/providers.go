package di

import (
	"context"
	"fmt"

	"FolioPulse/internal/domain/models"
	"FolioPulse/internal/handler/api"
	"FolioPulse/internal/handler/ws"
	internalrepo "FolioPulse/internal/repository"
	"FolioPulse/internal/scheduler"
	"FolioPulse/internal/service/yahoo"
	"FolioPulse/internal/usecase"
	"FolioPulse/pkg/cache"
	"FolioPulse/pkg/config"
	xhttp "FolioPulse/pkg/http"
	"FolioPulse/pkg/logger"
	"FolioPulse/pkg/metrics"
	"FolioPulse/pkg/server"

	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// CoreSet builds everything a tracker needs; shared by the daemon and the CLI.
var CoreSet = wire.NewSet(
	ProvideLogger,
	ProvideRegistry,
	ProvideMetrics,
	ProvideCacheBackend,
	ProvideStorage,
	ProvideQuoteClient,
	ProvidePortfolioStore,
	ProvideRefresher,
	ProvideSettings,
	ProvideCronTicker,
	ProvideAutoRefresh,
	ProvideTracker,
)

// ServerSet adds the HTTP surface on top of CoreSet.
var ServerSet = wire.NewSet(
	CoreSet,
	ProvideHub,
	ProvidePortfolioHandler,
	ProvideHTTPServer,
	ProvideApp,
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(logger.String("env", cfg.Environment)), nil
}

// ProvideRegistry creates a Prometheus registry with runtime collectors.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) *metrics.Recorder {
	return metrics.New(reg)
}

// ProvideCacheBackend opens the configured key/value backend.
func ProvideCacheBackend(cfg *config.Config, l *logger.Logger) (cache.Service, func(), error) {
	var (
		backend cache.Service
		err     error
	)
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		backend = cache.NewMemoryCache()
	case config.BackendRedis, config.BackendLayered:
		var rc *cache.RedisCache
		rc, err = cache.NewRedisCache(
			cache.WithRedisAddr(cfg.Storage.Redis.Host, cfg.Storage.Redis.Port),
			cache.WithRedisAuth(cfg.Storage.Redis.Password, cfg.Storage.Redis.DB),
			cache.WithRedisPool(cfg.Storage.Redis.PoolSize, 2, cfg.Storage.OpTimeout),
			cache.WithRedisPrefix(cfg.Storage.Redis.Prefix),
		)
		if err == nil {
			backend = rc
			if cfg.Storage.Backend == config.BackendLayered {
				backend = cache.NewLayeredCache(rc,
					cache.WithLayeredMemorySize(cfg.Storage.Layered.MemorySize),
					cache.WithLayeredMemoryTTL(cfg.Storage.Layered.MemoryTTL),
				)
			}
		}
	default:
		backend, err = internalrepo.NewSQLiteCache(cfg.Storage.SQLite.Path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("storage backend %s: %w", cfg.Storage.Backend, err)
	}

	l.Info("storage backend ready", logger.String("backend", cfg.Storage.Backend))
	cleanup := func() {
		if err := backend.Close(); err != nil {
			l.Warn("storage close error", logger.Error(err))
		}
	}
	return backend, cleanup, nil
}

func ProvideStorage(backend cache.Service, cfg *config.Config) *internalrepo.KVStorage {
	return internalrepo.NewKVStorage(backend, cfg.Storage.RootKey, cfg.Storage.OpTimeout)
}

// ProvideQuoteClient creates the Yahoo Finance provider.
func ProvideQuoteClient(cfg *config.Config, rec *metrics.Recorder, l *logger.Logger) *yahoo.Client {
	p := cfg.Provider
	return yahoo.New(yahoo.Config{
		ChartURL:        p.ChartURL,
		SearchURL:       p.SearchURL,
		UserAgent:       p.UserAgent,
		AttemptTimeout:  p.AttemptTimeout,
		Attempts:        p.Attempts,
		RetryDelay:      p.RetryDelay,
		RateCapacity:    float64(p.RateCapacity),
		RatePerSecond:   float64(p.RatePerSecond),
		FXCacheTTL:      p.FXCacheTTL,
		DisplayCurrency: p.DisplayCurrency,
	}, rec, l.With(logger.String("component", "yahoo")))
}

func ProvidePortfolioStore() *usecase.PortfolioStore {
	return usecase.NewPortfolioStore()
}

func ProvideRefresher(cfg *config.Config, store *usecase.PortfolioStore, client *yahoo.Client, rec *metrics.Recorder, l *logger.Logger) *usecase.Refresher {
	return usecase.NewRefresher(store, client, rec, l.With(logger.String("component", "refresher")),
		usecase.WithBatchSize(cfg.Refresh.BatchSize),
		usecase.WithBatchPause(cfg.Refresh.BatchPause),
	)
}

func ProvideSettings(storage *internalrepo.KVStorage, l *logger.Logger) *usecase.Settings {
	return usecase.NewSettings(storage, l)
}

func ProvideCronTicker(l *logger.Logger) *scheduler.CronTicker {
	return scheduler.NewCronTicker(l)
}

func ProvideAutoRefresh(cfg *config.Config, ticker *scheduler.CronTicker, l *logger.Logger) *scheduler.AutoRefresh {
	a := scheduler.NewAutoRefresh(ticker, l.With(logger.String("component", "scheduler")))
	a.SetInterval(cfg.AutoRefresh.IntervalMinutes)
	return a
}

// ProvideTracker builds the tracker and restores persisted state.
func ProvideTracker(
	cfg *config.Config,
	store *usecase.PortfolioStore,
	refresher *usecase.Refresher,
	client *yahoo.Client,
	storage *internalrepo.KVStorage,
	settings *usecase.Settings,
	auto *scheduler.AutoRefresh,
	rec *metrics.Recorder,
	l *logger.Logger,
) (*usecase.Tracker, func(), error) {
	t := usecase.NewTracker(store, refresher, client, storage, settings, auto, rec, l,
		usecase.WithResolver(client),
		usecase.WithInitialRange(models.Range(cfg.Refresh.DefaultRange)),
	)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Storage.OpTimeout*2)
	defer cancel()
	if err := t.Load(ctx); err != nil {
		return nil, nil, fmt.Errorf("load portfolio: %w", err)
	}
	return t, func() { _ = t.Close() }, nil
}

func ProvideHub(t *usecase.Tracker, l *logger.Logger) (*ws.Hub, func()) {
	h := ws.NewHub(t, l)
	return h, h.Close
}

func ProvidePortfolioHandler(t *usecase.Tracker, l *logger.Logger) *api.PortfolioHandler {
	return api.NewPortfolioHandler(l, t)
}

// ProvideHTTPServer assembles the Echo server with every handler.
func ProvideHTTPServer(cfg *config.Config, reg *prometheus.Registry, l *logger.Logger, ph *api.PortfolioHandler, hub *ws.Hub) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithCORS(true, cfg.Server.AllowOrigins...),
		xhttp.WithLogger(l.With(logger.String("component", "http"))),
	}
	if !cfg.Metrics.Disabled {
		opts = append(opts, xhttp.WithMetrics(reg, cfg.Metrics.Path))
	}
	return xhttp.NewServer([]xhttp.Handler{ph, hub}, opts...)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	t *usecase.Tracker,
	auto *scheduler.AutoRefresh,
	ticker *scheduler.CronTicker,
	hub *ws.Hub,
	srv *xhttp.Server,
) *server.App {
	return server.New(cfg, l, t, auto, ticker, hub, srv)
}
