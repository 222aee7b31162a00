package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ozonscout/internal/model"
)

func TestMemoryStoreOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// Out-of-order appends are accepted; ordering is by timestamp.
	for _, offset := range []int{2, 0, 1} {
		err := store.Append(ctx, model.StockSnapshot{
			ProductID:      "1",
			ObservedAt:     base.AddDate(0, 0, offset),
			StockRemaining: model.IntPtr(100 - offset),
		})
		require.NoError(t, err)
	}

	series, err := store.Query(ctx, "1", base)
	require.NoError(t, err)
	require.Len(t, series, 3)
	for i := 1; i < len(series); i++ {
		require.False(t, series[i].ObservedAt.Before(series[i-1].ObservedAt))
	}
}

func TestMemoryStoreQuerySince(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	for d := 0; d < 10; d++ {
		require.NoError(t, store.Append(ctx, model.StockSnapshot{
			ProductID:  "1",
			ObservedAt: base.AddDate(0, 0, d),
		}))
	}

	series, err := store.Query(ctx, "1", base.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, series, 3)

	series, err = store.Query(ctx, "другой", base)
	require.NoError(t, err)
	require.Empty(t, series)
}

type scriptedProbe struct {
	stock   map[string]*int
	reviews map[string]*int
	errs    map[string]error
}

func (p *scriptedProbe) Probe(ctx context.Context, id string) (*int, *int, error) {
	if err := p.errs[id]; err != nil {
		return nil, nil, err
	}
	return p.stock[id], p.reviews[id], nil
}

func TestTrackStock(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	probe := &scriptedProbe{
		stock:   map[string]*int{"1": model.IntPtr(7)},
		reviews: map[string]*int{"1": model.IntPtr(120), "2": model.IntPtr(5)},
	}
	tracker := NewTracker(store, probe, nil, 0, zap.NewNop().Sugar())

	var got []model.StockSnapshot
	err := tracker.TrackStock(ctx, []string{"1", "2", "3"}, func(s model.StockSnapshot) {
		got = append(got, s)
	})
	require.NoError(t, err)
	// Product 3 had no signal and produced no snapshot.
	require.Len(t, got, 2)
	require.Equal(t, 7, *got[0].StockRemaining)
	require.Equal(t, 120, *got[0].ReviewCount)
	require.Nil(t, got[1].StockRemaining)

	series, err := store.Query(ctx, "1", time.Time{})
	require.NoError(t, err)
	require.Len(t, series, 1)
}
