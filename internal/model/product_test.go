package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMergeLeftBias(t *testing.T) {
	detail := ProductRecord{
		SKU:      "123456789",
		Title:    "Нож кухонный Samura (полное название)",
		Price:    1990,
		LengthCm: 33,
		WeightG:  200,
	}
	list := ProductRecord{
		SKU:           "123456789",
		Title:         "Нож кухонный",
		Price:         2100, // stale list price must not win
		OriginalPrice: 2500,
		Rating:        4.8,
		ReviewCount:   1523,
	}

	merged := Merge(detail, list)
	require.Equal(t, "Нож кухонный Samura (полное название)", merged.Title)
	require.Equal(t, 1990.0, merged.Price)
	require.Equal(t, 2500.0, merged.OriginalPrice)
	require.Equal(t, 4.8, merged.Rating)
	require.Equal(t, 1523, merged.ReviewCount)
	require.Equal(t, 33.0, merged.LengthCm)
}

func TestMergeOrderIndependence(t *testing.T) {
	detail := ProductRecord{SKU: "1", Title: "detail title", WeightG: 500}
	list := ProductRecord{SKU: "1", Rating: 4.5, ReviewCount: 10}

	// Fields present in only one side land identically no matter which
	// partial arrives first, as long as the higher-fidelity side is primary.
	a := Merge(detail, list)
	b := Merge(detail, Merge(ProductRecord{SKU: "1"}, list))
	require.Equal(t, a, b)
}

func TestMergeFillsZeroTime(t *testing.T) {
	created := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	withDate := ProductRecord{SKU: "1", CreationDate: created}
	without := ProductRecord{SKU: "1", Title: "t"}

	merged := Merge(without, withDate)
	require.Equal(t, created, merged.CreationDate)

	older := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	primary := ProductRecord{SKU: "1", CreationDate: created}
	secondary := ProductRecord{SKU: "1", CreationDate: older}
	require.Equal(t, created, Merge(primary, secondary).CreationDate)
}

func TestApplyLabelsRecordWithMonthlyWindow(t *testing.T) {
	est := SalesEstimate{
		Weekly:  WindowEstimate{Sales: 12, Method: MethodReviewGrowth, Confidence: ConfidenceLow},
		Monthly: WindowEstimate{Sales: 50, Method: MethodStockDiff, Confidence: ConfidenceHigh},
	}

	var p ProductRecord
	est.Apply(&p)
	require.Equal(t, 12, p.WeeklySales)
	require.Equal(t, 50, p.MonthlySales)
	require.Equal(t, MethodStockDiff, p.SalesEstimateMethod)
	require.Equal(t, ConfidenceHigh, p.SalesConfidence)
}

func TestMergeSecondOccurrenceFillsOnlyEmpty(t *testing.T) {
	first := ProductRecord{SKU: "1", Title: "первое название", Price: 100}
	second := ProductRecord{SKU: "1", Title: "другое название", Price: 90, Brand: "Brand"}

	merged := Merge(first, second)
	require.Equal(t, "первое название", merged.Title)
	require.Equal(t, 100.0, merged.Price)
	require.Equal(t, "Brand", merged.Brand)
}
