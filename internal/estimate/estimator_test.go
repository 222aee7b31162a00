package estimate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ozonscout/internal/model"
)

var now = time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

// stockSeries spreads stock readings across the last windowDays days, one
// per day, oldest first.
func stockSeries(days int, levels ...int) []model.StockSnapshot {
	snaps := make([]model.StockSnapshot, 0, len(levels))
	for i, lvl := range levels {
		snaps = append(snaps, model.StockSnapshot{
			ProductID:      "1",
			ObservedAt:     now.AddDate(0, 0, -days+i),
			StockRemaining: model.IntPtr(lvl),
		})
	}
	return snaps
}

func TestStockDeltaRestockExclusion(t *testing.T) {
	// 80 -> 95 is a restock: the pair is excluded and the replenished
	// units never count as sales.
	snaps := stockSeries(6, 100, 80, 80, 95, 60)
	est := Estimate(Params{}, snaps, time.Time{}, 0, now)

	require.Equal(t, model.MethodStockDiff, est.Weekly.Method)
	require.Equal(t, 40, est.Weekly.Sales)
	require.True(t, est.Weekly.RestockDetected)
}

func TestConfidenceBoundaries(t *testing.T) {
	testCases := []struct {
		snapshots int
		want      model.Confidence
	}{
		{10, model.ConfidenceHigh},
		{9, model.ConfidenceMedium},
		{5, model.ConfidenceMedium},
		{4, model.ConfidenceLow},
	}
	for _, tc := range testCases {
		levels := make([]int, tc.snapshots)
		for i := range levels {
			levels[i] = 100 - i
		}
		snaps := stockSeries(tc.snapshots+1, levels...)
		est := Estimate(Params{}, snaps, time.Time{}, 0, now)
		require.Equal(t, tc.want, est.Monthly.Confidence, "%d snapshots", tc.snapshots)
	}

	est := Estimate(Params{}, nil, time.Time{}, 0, now)
	require.Equal(t, model.ConfidenceNone, est.Monthly.Confidence)
	require.Equal(t, model.MethodNone, est.Monthly.Method)
	require.Zero(t, est.Monthly.Sales)
}

func TestCascadePrefersReviewGrowthOverSparseStock(t *testing.T) {
	// A single stock reading cannot form the minimum pair count, but two
	// review readings can: the cascade must pick review growth.
	snaps := []model.StockSnapshot{
		{ProductID: "1", ObservedAt: now.AddDate(0, 0, -6), StockRemaining: model.IntPtr(50), ReviewCount: model.IntPtr(100)},
		{ProductID: "1", ObservedAt: now.AddDate(0, 0, -1), ReviewCount: model.IntPtr(104)},
	}
	est := Estimate(Params{ConversionRate: 0.02}, snaps, time.Time{}, 0, now)

	require.Equal(t, model.MethodReviewGrowth, est.Weekly.Method)
	require.Equal(t, 200, est.Weekly.Sales) // 4 new reviews / 0.02
}

func TestReviewTotalExtrapolation(t *testing.T) {
	listedAt := now.AddDate(0, 0, -100)
	est := Estimate(Params{ConversionRate: 0.02}, nil, listedAt, 200, now)

	// 200 reviews / 0.02 = 10000 sold over 100 days.
	require.Equal(t, model.MethodReviewTotal, est.Monthly.Method)
	require.Equal(t, 3000, est.Monthly.Sales)
	require.Equal(t, model.ConfidenceLow, est.Monthly.Confidence)

	require.Equal(t, model.MethodReviewTotal, est.Weekly.Method)
	require.Equal(t, 700, est.Weekly.Sales)
}

func TestWindowsAreIndependent(t *testing.T) {
	// Plenty of stock history 3 weeks ago, nothing in the last 7 days:
	// the monthly window uses stock deltas while the weekly window falls
	// through its cascade.
	snaps := stockSeries(25, 100, 90, 80, 70, 60, 50)
	est := Estimate(Params{}, snaps, time.Time{}, 0, now)

	require.Equal(t, model.MethodStockDiff, est.Monthly.Method)
	require.Equal(t, 50, est.Monthly.Sales)
	require.Equal(t, model.MethodNone, est.Weekly.Method)
	require.Equal(t, model.ConfidenceNone, est.Weekly.Confidence)
}

func TestEqualReadingsCountAsPairsNotSales(t *testing.T) {
	snaps := stockSeries(5, 40, 40, 40)
	est := Estimate(Params{}, snaps, time.Time{}, 0, now)

	require.Equal(t, model.MethodStockDiff, est.Weekly.Method)
	require.Zero(t, est.Weekly.Sales)
	require.False(t, est.Weekly.RestockDetected)
}
