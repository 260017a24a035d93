package yahoo

import (
	"context"
	"errors"
	"strings"

	"FolioPulse/pkg/logger"
)

// ExchangeRate returns the multiplier converting from into to. Lookups
// that fail fall back to 1 and are not cached; only cancellation is
// returned as an error.
func (c *Client) ExchangeRate(ctx context.Context, from, to string) (float64, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return 1, nil
	}
	key := "fx:" + from + ":" + to
	if rate, ok := c.cache.GetFloat(key); ok {
		return rate, nil
	}

	pairs := []string{from + to + "=X"}
	if from == "USD" && to == "EUR" {
		pairs = []string{"EUR=X", "USDEUR=X"}
	}
	for _, pair := range pairs {
		res, err := c.chart(ctx, EndpointFX, pair, "1d", c.cfg.Attempts)
		if err != nil {
			if ctx.Err() != nil {
				return 0, err
			}
			if !errors.Is(err, ErrNoData) {
				c.log.Debug("fx pair failed", logger.String("pair", pair), logger.Error(err))
			}
			continue
		}
		if rate := res.Meta.RegularMarketPrice; rate > 0 {
			c.cache.Set(key, rate, c.cfg.FXCacheTTL)
			return rate, nil
		}
	}

	c.log.Warn("fx rate unavailable, using 1", logger.String("from", from), logger.String("to", to))
	return 1, nil
}
