package snapshot

import (
	"context"
	"sort"
	"sync"
	"time"

	"ozonscout/internal/model"
)

// Store is the append-only per-product observation log. There are no update
// or delete operations: a correction is a new snapshot.
type Store interface {
	Append(ctx context.Context, snap model.StockSnapshot) error
	Query(ctx context.Context, productID string, since time.Time) ([]model.StockSnapshot, error)
}

// MemoryStore keeps the series in memory, ordered by observation time.
// Concurrent writers for different products never contend beyond the map
// lock; same-product ordering comes from the supplied timestamps.
type MemoryStore struct {
	mu        sync.RWMutex
	byProduct map[string][]model.StockSnapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byProduct: make(map[string][]model.StockSnapshot)}
}

func (s *MemoryStore) Append(ctx context.Context, snap model.StockSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	series := s.byProduct[snap.ProductID]
	i := sort.Search(len(series), func(i int) bool {
		return series[i].ObservedAt.After(snap.ObservedAt)
	})
	series = append(series, model.StockSnapshot{})
	copy(series[i+1:], series[i:])
	series[i] = snap
	s.byProduct[snap.ProductID] = series
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, productID string, since time.Time) ([]model.StockSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	series := s.byProduct[productID]
	i := sort.Search(len(series), func(i int) bool {
		return !series[i].ObservedAt.Before(since)
	})
	out := make([]model.StockSnapshot, len(series)-i)
	copy(out, series[i:])
	return out, nil
}
