package repository

import (
	"context"
	"time"

	"FolioPulse/internal/domain/models"
)

// QuoteProvider fetches a quote and daily history for symbol over r.
// Implementations must return an error satisfying errors.Is(err,
// context.Canceled) when ctx is cancelled.
type QuoteProvider interface {
	FetchQuote(ctx context.Context, symbol string, r models.Range) (*models.QuoteResult, error)
}

// Resolver maps free text (ticker or ISIN) to a provider symbol.
type Resolver interface {
	ResolveIdentifier(ctx context.Context, text string) (string, error)
}

// Storage is the key/value store for persisted app state. Values are
// JSON-encoded by the implementation.
type Storage interface {
	// Get decodes key into dest and reports whether the key existed.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	Remove(ctx context.Context, key string) error
}

type Metrics interface {
	RecordFetch(outcome string)
	ObserveSession(forced bool, d time.Duration)
	SetHoldings(n int)
	SetPortfolioValue(v float64)
}

// ProviderMetrics is recorded by quote provider implementations.
type ProviderMetrics interface {
	ObserveProviderCall(endpoint string, d time.Duration, err error)
}
