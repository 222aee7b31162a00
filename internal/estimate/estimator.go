package estimate

import (
	"time"

	"ozonscout/internal/model"
)

// Params tune the method cascade. The conversion rate is an assumed
// review-to-sale ratio and the band thresholds are inherited design choices,
// so all of them stay configurable rather than hard-coded.
type Params struct {
	ConversionRate float64
	MinStockPairs  int
	MediumBand     int
	HighBand       int
}

func (p Params) withDefaults() Params {
	if p.ConversionRate <= 0 {
		p.ConversionRate = 0.02
	}
	if p.MinStockPairs <= 0 {
		p.MinStockPairs = 2
	}
	if p.MediumBand <= 0 {
		p.MediumBand = 5
	}
	if p.HighBand <= 0 {
		p.HighBand = 10
	}
	return p
}

// Estimate derives weekly and monthly sales from one product's snapshot
// series. The windows are computed independently, each selecting its own
// best-available method. Insufficient data is not an error: it yields zero
// sales with confidence none.
func Estimate(params Params, snaps []model.StockSnapshot, listedAt time.Time, totalReviews int, now time.Time) model.SalesEstimate {
	params = params.withDefaults()
	return model.SalesEstimate{
		Weekly:     estimateWindow(params, snaps, now, 7, listedAt, totalReviews),
		Monthly:    estimateWindow(params, snaps, now, 30, listedAt, totalReviews),
		ComputedAt: now,
	}
}

func estimateWindow(params Params, snaps []model.StockSnapshot, now time.Time, windowDays int, listedAt time.Time, totalReviews int) model.WindowEstimate {
	since := now.AddDate(0, 0, -windowDays)
	var in []model.StockSnapshot
	for _, s := range snaps {
		if !s.ObservedAt.Before(since) && !s.ObservedAt.After(now) {
			in = append(in, s)
		}
	}
	n := len(in)

	// A — stock delta with restock exclusion.
	pairs, sold, restock := stockDelta(in)
	if pairs >= params.MinStockPairs {
		return model.WindowEstimate{
			Sales:           sold,
			Method:          model.MethodStockDiff,
			Confidence:      confidenceFor(params, n),
			DataPoints:      n,
			RestockDetected: restock,
		}
	}

	// B — review growth over the window.
	if growth, points := reviewGrowth(in); points >= 2 && growth > 0 {
		return model.WindowEstimate{
			Sales:           int(float64(growth) / params.ConversionRate),
			Method:          model.MethodReviewGrowth,
			Confidence:      confidenceFor(params, n),
			DataPoints:      n,
			RestockDetected: restock,
		}
	}

	// C — extrapolation from the all-time review total. Always low
	// confidence: it rests entirely on the assumed conversion rate.
	if totalReviews > 0 && !listedAt.IsZero() && listedAt.Before(now) {
		days := now.Sub(listedAt).Hours() / 24
		if days < 1 {
			days = 1
		}
		total := float64(totalReviews) / params.ConversionRate
		return model.WindowEstimate{
			Sales:           int(total / days * float64(windowDays)),
			Method:          model.MethodReviewTotal,
			Confidence:      model.ConfidenceLow,
			DataPoints:      n,
			RestockDetected: restock,
		}
	}

	return model.WindowEstimate{
		Method:     model.MethodNone,
		Confidence: model.ConfidenceNone,
		DataPoints: n,
	}
}

// stockDelta walks the stock readings accumulating decreases. An increase is
// a restock: the pair is excluded and the pre-restock level stays the
// baseline, so replenished units are never counted as sales.
func stockDelta(snaps []model.StockSnapshot) (pairs, sold int, restock bool) {
	baseline := -1
	for _, s := range snaps {
		if !s.HasStock() {
			continue
		}
		cur := *s.StockRemaining
		if baseline < 0 {
			baseline = cur
			continue
		}
		if cur > baseline {
			restock = true
			continue
		}
		sold += baseline - cur
		pairs++
		baseline = cur
	}
	return pairs, sold, restock
}

// reviewGrowth reports the review-count increase across the window and how
// many snapshots carried a review reading.
func reviewGrowth(snaps []model.StockSnapshot) (growth, points int) {
	first, last := -1, -1
	for _, s := range snaps {
		if !s.HasReviews() {
			continue
		}
		points++
		if first < 0 {
			first = *s.ReviewCount
		}
		last = *s.ReviewCount
	}
	if points < 2 {
		return 0, points
	}
	return last - first, points
}

// confidenceFor labels an estimate from the number of in-window snapshots.
func confidenceFor(params Params, n int) model.Confidence {
	switch {
	case n >= params.HighBand:
		return model.ConfidenceHigh
	case n >= params.MediumBand:
		return model.ConfidenceMedium
	case n > 0:
		return model.ConfidenceLow
	default:
		return model.ConfidenceNone
	}
}
