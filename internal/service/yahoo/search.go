package yahoo

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"FolioPulse/pkg/logger"
)

var isinPattern = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{9}[0-9]$`)

// IsISIN reports whether s has the shape of an ISIN. The check digit is
// not verified.
func IsISIN(s string) bool { return isinPattern.MatchString(s) }

// knownISINs covers listings the search endpoint resolves poorly.
var knownISINs = map[string]string{
	"US0378331005": "AAPL",
	"US5949181045": "MSFT",
	"US0231351067": "AMZN",
	"FR0000120271": "TTE.PA",
	"DE0007037129": "RWE.DE",
	"GB00BP6MXD84": "SHEL.L",
	"DE0008404005": "ALV.DE",
	"US02079K3059": "GOOGL",
	"US88160R1014": "TSLA",
	"US67066G1040": "NVDA",
	"US11135F1012": "AVGO",
	"IE00B3WJKG14": "QDVE.DE",
	"US30303M1027": "META",
	"US64110L1061": "NFLX",
	"LU1781541179": "SPOT",
	"IE00B5BMR087": "CSSPX.MI",
	"IE00B4L5Y983": "IWDA.L",
	"IE00B8FHGS14": "SPMV.L",
}

var symbolISINs = func() map[string]string {
	m := make(map[string]string, len(knownISINs))
	for isin, sym := range knownISINs {
		m[sym] = isin
	}
	return m
}()

type searchResponse struct {
	Quotes []searchQuote `json:"quotes"`
}

type searchQuote struct {
	Symbol    string `json:"symbol"`
	QuoteType string `json:"quoteType"`
	LongName  string `json:"longname"`
	ShortName string `json:"shortname"`
	ISIN      string `json:"isin"`
}

type metadata struct {
	Symbol string
	Name   string
	ISIN   string
}

func (c *Client) search(ctx context.Context, q string, count, attempts int) ([]searchQuote, error) {
	var resp searchResponse
	err := c.getJSON(ctx, EndpointSearch, c.cfg.SearchURL, map[string][]string{
		"q":           {q},
		"quotesCount": {fmt.Sprint(count)},
		"newsCount":   {"0"},
	}, &resp, attempts, nil)
	if err != nil {
		return nil, err
	}
	return resp.Quotes, nil
}

// ResolveIdentifier maps an ISIN to a ticker. Anything that is not an ISIN
// is returned unchanged.
func (c *Client) ResolveIdentifier(ctx context.Context, text string) (string, error) {
	isin := strings.ToUpper(strings.TrimSpace(text))
	if !IsISIN(isin) {
		return isin, nil
	}
	if sym, ok := knownISINs[isin]; ok {
		return sym, nil
	}
	if v, ok := c.cache.Get("isin:" + isin); ok {
		return v.(string), nil
	}

	quotes, err := c.search(ctx, isin, 5, 2)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		return "", fmt.Errorf("could not resolve ISIN %s, try the ticker symbol instead: %w", isin, err)
	}
	best := ""
	for _, q := range quotes {
		if q.QuoteType == "EQUITY" && q.Symbol != "" {
			best = q.Symbol
			break
		}
	}
	if best == "" && len(quotes) > 0 {
		best = quotes[0].Symbol
	}
	if best == "" {
		return "", fmt.Errorf("could not resolve ISIN %s, try the ticker symbol instead", isin)
	}
	c.cache.Set("isin:"+isin, best, 0)
	c.log.Info("isin resolved", logger.String("isin", isin), logger.String("symbol", best))
	return best, nil
}

// metadata looks up display name and ISIN. Search failures fall back to
// the query itself; only cancellation is returned as an error.
func (c *Client) metadata(ctx context.Context, query string) (metadata, error) {
	md := metadata{Symbol: query}
	quotes, err := c.search(ctx, query, 1, 1)
	switch {
	case err != nil && ctx.Err() != nil:
		return md, err
	case err != nil:
		c.log.Warn("metadata lookup failed", logger.String("symbol", query), logger.Error(err))
	case len(quotes) > 0 && quotes[0].Symbol != "":
		q := quotes[0]
		md.Symbol = q.Symbol
		md.ISIN = q.ISIN
		switch {
		case q.LongName != "":
			md.Name = q.LongName
		case q.ShortName != "":
			md.Name = q.ShortName
		}
	}
	if md.ISIN == "" {
		md.ISIN = symbolISINs[strings.ToUpper(md.Symbol)]
	}
	if md.ISIN == "" {
		md.ISIN = symbolISINs[query]
	}
	return md, nil
}
