package yahoo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"FolioPulse/internal/domain/models"
	"FolioPulse/pkg/logger"
	"FolioPulse/pkg/util"
)

// ErrNoData is returned when the chart endpoint answers without a result.
var ErrNoData = errors.New("stock not found or API error")

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol             string  `json:"symbol"`
		Currency           string  `json:"currency"`
		RegularMarketPrice float64 `json:"regularMarketPrice"`
		ChartPreviousClose float64 `json:"chartPreviousClose"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

func (c *Client) chart(ctx context.Context, endpoint, symbol, horizon string, attempts int) (*chartResult, error) {
	var resp chartResponse
	u := strings.TrimRight(c.cfg.ChartURL, "/") + "/" + url.PathEscape(symbol)
	query := map[string][]string{"interval": {"1d"}, "range": {horizon}}

	var result *chartResult
	err := c.getJSON(ctx, endpoint, u, query, &resp, attempts, func() error {
		if len(resp.Chart.Result) == 0 {
			if resp.Chart.Error != nil && resp.Chart.Error.Description != "" {
				return fmt.Errorf("%w: %s", ErrNoData, resp.Chart.Error.Description)
			}
			return ErrNoData
		}
		result = &resp.Chart.Result[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FetchQuote resolves input (ticker or ISIN), then returns the latest quote
// and daily closes over r converted to the display currency.
func (c *Client) FetchQuote(ctx context.Context, input string, r models.Range) (*models.QuoteResult, error) {
	if !r.Valid() {
		r = models.DefaultRange
	}
	query := strings.ToUpper(strings.TrimSpace(input))
	if IsISIN(query) {
		resolved, err := c.ResolveIdentifier(ctx, query)
		switch {
		case err == nil:
			query = resolved
		case ctx.Err() != nil:
			return nil, err
		default:
			c.log.Warn("isin resolution failed, using input", logger.String("isin", query), logger.Error(err))
		}
	}

	meta, err := c.metadata(ctx, query)
	if err != nil {
		return nil, err
	}

	res, err := c.chart(ctx, EndpointChart, meta.Symbol, r.HorizonToken(), c.cfg.Attempts)
	if err != nil {
		return nil, err
	}

	currency := res.Meta.Currency
	if currency == "" {
		currency = "USD"
	}
	scale := 1.0
	if currency == "GBp" {
		currency = "GBP"
		scale = 0.01
	}
	rate, err := c.ExchangeRate(ctx, currency, c.cfg.DisplayCurrency)
	if err != nil {
		return nil, err
	}
	scale *= rate

	price := res.Meta.RegularMarketPrice * scale
	prev := res.Meta.ChartPreviousClose * scale
	var change float64
	if prev != 0 {
		change = (price - prev) / prev * 100
	}

	out := &models.QuoteResult{
		Quote: models.Quote{
			Symbol:        strings.ToUpper(meta.Symbol),
			Price:         price,
			ChangePercent: change,
			Currency:      c.cfg.DisplayCurrency,
			Name:          meta.Name,
			ISIN:          meta.ISIN,
		},
		History: candles(res, scale),
	}
	c.log.Debug("quote fetched",
		logger.String("symbol", out.Quote.Symbol),
		logger.String("currency", currency),
		logger.Float64("fx_rate", rate),
		logger.Int("history", len(out.History)),
	)
	return out, nil
}

// candles pairs timestamps with closes, dropping missing and zero values.
func candles(res *chartResult, scale float64) []models.Candle {
	if len(res.Indicators.Quote) == 0 {
		return []models.Candle{}
	}
	closes := res.Indicators.Quote[0].Close
	out := make([]models.Candle, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		v := *closes[i] * scale
		if v == 0 || math.IsNaN(v) {
			continue
		}
		out = append(out, models.Candle{Time: util.DayKey(time.Unix(ts, 0)), Value: v})
	}
	return models.MergeHistories(nil, out)
}
