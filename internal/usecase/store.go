package usecase

import (
	"sync"

	"FolioPulse/internal/domain/models"
)

// Snapshot is a consistent copy of the portfolio and its aggregates.
type Snapshot struct {
	Holdings []models.Holding `json:"holdings"`
	models.Totals
	History []models.Candle `json:"portfolioHistory"`
	Version uint64          `json:"version"`
}

// Observer receives a snapshot after each mutation. Observers are called
// one at a time, in version order, outside the store lock.
type Observer func(Snapshot)

// PortfolioStore owns the holdings. Aggregates are recomputed under the
// same lock as each mutation so readers never see them torn.
type PortfolioStore struct {
	mu       sync.RWMutex
	holdings []models.Holding
	index    map[string]int
	totals   models.Totals
	history  []models.Candle
	version  uint64

	notifyMu     sync.Mutex
	lastNotified uint64
	observers    map[int]Observer
	nextObserver int
}

func NewPortfolioStore() *PortfolioStore {
	return &PortfolioStore{
		index:     make(map[string]int),
		history:   []models.Candle{},
		observers: make(map[int]Observer),
	}
}

// Subscribe registers o and returns a function that removes it.
func (s *PortfolioStore) Subscribe(o Observer) func() {
	s.notifyMu.Lock()
	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = o
	s.notifyMu.Unlock()

	return func() {
		s.notifyMu.Lock()
		delete(s.observers, id)
		s.notifyMu.Unlock()
	}
}

func (s *PortfolioStore) Add(h models.Holding) error {
	s.mu.Lock()
	if _, ok := s.index[h.ID]; ok {
		s.mu.Unlock()
		return ErrDuplicateID
	}
	s.holdings = append(s.holdings, h.Clone())
	s.index[h.ID] = len(s.holdings) - 1
	snap := s.commitLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

func (s *PortfolioStore) Remove(id string) bool {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.holdings = append(s.holdings[:i], s.holdings[i+1:]...)
	s.reindexLocked()
	snap := s.commitLocked()
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// ReplaceAll swaps the whole collection in one step.
func (s *PortfolioStore) ReplaceAll(items []models.Holding) {
	s.mu.Lock()
	s.holdings = make([]models.Holding, 0, len(items))
	for _, h := range items {
		s.holdings = append(s.holdings, h.Clone())
	}
	s.reindexLocked()
	snap := s.commitLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// Update applies fn to the current value of holding id. It reports false
// when the holding no longer exists.
func (s *PortfolioStore) Update(id string, fn func(h *models.Holding)) bool {
	return len(s.UpdateMany([]string{id}, fn)) == 1
}

// UpdateMany applies fn to every existing holding in ids as one mutation
// and returns the ids that were found.
func (s *PortfolioStore) UpdateMany(ids []string, fn func(h *models.Holding)) []string {
	s.mu.Lock()
	found := make([]string, 0, len(ids))
	for _, id := range ids {
		if i, ok := s.index[id]; ok {
			fn(&s.holdings[i])
			found = append(found, id)
		}
	}
	if len(found) == 0 {
		s.mu.Unlock()
		return found
	}
	snap := s.commitLocked()
	s.mu.Unlock()

	s.notify(snap)
	return found
}

func (s *PortfolioStore) Get(id string) (models.Holding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return models.Holding{}, false
	}
	return s.holdings[i].Clone(), true
}

// Holdings returns a copy in insertion order.
func (s *PortfolioStore) Holdings() []models.Holding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneHoldings(s.holdings)
}

func (s *PortfolioStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.holdings)
}

func (s *PortfolioStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *PortfolioStore) commitLocked() Snapshot {
	s.totals = models.ComputeTotals(s.holdings)
	s.history = models.AggregateHistory(s.holdings)
	s.version++
	return s.snapshotLocked()
}

func (s *PortfolioStore) snapshotLocked() Snapshot {
	history := make([]models.Candle, len(s.history))
	copy(history, s.history)
	return Snapshot{
		Holdings: cloneHoldings(s.holdings),
		Totals:   s.totals,
		History:  history,
		Version:  s.version,
	}
}

func (s *PortfolioStore) reindexLocked() {
	s.index = make(map[string]int, len(s.holdings))
	for i := range s.holdings {
		s.index[s.holdings[i].ID] = i
	}
}

func (s *PortfolioStore) notify(snap Snapshot) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	// A newer mutation may have notified first; never deliver an older state after it.
	if snap.Version <= s.lastNotified {
		return
	}
	s.lastNotified = snap.Version
	for _, o := range s.observers {
		o(snap)
	}
}

func cloneHoldings(in []models.Holding) []models.Holding {
	out := make([]models.Holding, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
