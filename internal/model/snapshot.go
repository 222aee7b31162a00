package model

import "time"

// StockSnapshot is one timestamped observation of a product's remaining stock
// and/or review count. Snapshots are append-only: a correction is a new
// snapshot, never an edit.
type StockSnapshot struct {
	ProductID      string    `json:"product_id"`
	ObservedAt     time.Time `json:"observed_at"`
	StockRemaining *int      `json:"stock_remaining,omitempty"`
	ReviewCount    *int      `json:"review_count,omitempty"`
}

// HasStock reports whether the observation carries a stock reading.
func (s StockSnapshot) HasStock() bool { return s.StockRemaining != nil }

// HasReviews reports whether the observation carries a review count.
func (s StockSnapshot) HasReviews() bool { return s.ReviewCount != nil }

// IntPtr is a convenience for building optional snapshot fields.
func IntPtr(v int) *int { return &v }
