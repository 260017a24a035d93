package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	drepo "FolioPulse/internal/domain/repository"
	svccache "FolioPulse/internal/service/cache"
	"FolioPulse/internal/service/ratelimit"
	"FolioPulse/pkg/logger"
	phttp "FolioPulse/pkg/http"
)

const limiterKey = "yahoo"

// Endpoint labels used for provider metrics.
const (
	EndpointChart  = "chart"
	EndpointSearch = "search"
	EndpointFX     = "fx"
)

type Config struct {
	ChartURL        string
	SearchURL       string
	UserAgent       string
	AttemptTimeout  time.Duration
	Attempts        int
	RetryDelay      time.Duration
	RateCapacity    float64
	RatePerSecond   float64
	FXCacheTTL      time.Duration
	DisplayCurrency string
}

// Client implements QuoteProvider and Resolver against the Yahoo Finance
// chart and search endpoints.
type Client struct {
	cfg     Config
	http    *phttp.Client
	limiter *ratelimit.Limiter
	cache   *svccache.TTLCache
	metrics drepo.ProviderMetrics
	log     *logger.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the transport client.
func WithHTTPClient(c *phttp.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

func WithLimiter(l *ratelimit.Limiter) Option {
	return func(cl *Client) {
		cl.limiter = l
	}
}

func WithCache(c *svccache.TTLCache) Option {
	return func(cl *Client) {
		cl.cache = c
	}
}

func New(cfg Config, metrics drepo.ProviderMetrics, log *logger.Logger, opts ...Option) *Client {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if cfg.DisplayCurrency == "" {
		cfg.DisplayCurrency = "EUR"
	}
	c := &Client{
		cfg:     cfg,
		limiter: ratelimit.New(),
		cache:   svccache.NewTTLCache(),
		metrics: metrics,
		log:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = phttp.NewClient(phttp.WithUserAgent(cfg.UserAgent))
	}
	return c
}

// getJSON performs a GET with per-attempt timeouts and a fixed delay
// between attempts. check, when set, may reject a decoded body and force
// another attempt. Cancellation of ctx is returned immediately and
// satisfies errors.Is(err, context.Canceled).
func (c *Client) getJSON(ctx context.Context, endpoint, url string, query map[string][]string, dest interface{}, attempts int, check func() error) error {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, c.cfg.RetryDelay); err != nil {
				return fmt.Errorf("%s: %w", endpoint, err)
			}
		}
		lastErr = c.attempt(ctx, endpoint, url, query, dest)
		if lastErr == nil && check != nil {
			lastErr = check()
		}
		if lastErr == nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", endpoint, err)
		}
		if !retryable(lastErr) {
			break
		}
		c.log.Debug("provider attempt failed",
			logger.String("endpoint", endpoint),
			logger.Int("attempt", attempt),
			logger.Error(lastErr),
		)
	}
	return lastErr
}

func (c *Client) attempt(ctx context.Context, endpoint, url string, query map[string][]string, dest interface{}) error {
	actx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
	defer cancel()

	if c.cfg.RatePerSecond > 0 {
		if err := c.limiter.Wait(actx, limiterKey, c.cfg.RateCapacity, c.cfg.RatePerSecond); err != nil {
			return err
		}
	}

	start := time.Now()
	err := c.http.SendAndParse(actx, &phttp.RequestOptions{
		Method:      phttp.MethodGet,
		URL:         url,
		QueryParams: query,
		Headers:     map[string]string{"Accept": "application/json"},
	}, dest)
	if c.metrics != nil {
		c.metrics.ObserveProviderCall(endpoint, time.Since(start), err)
	}
	return err
}

// retryable rejects client errors other than rate limiting.
func retryable(err error) bool {
	var se *phttp.StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
