package model

import "time"

// Method names the estimation technique that produced a sales figure.
type Method string

const (
	MethodStockDiff    Method = "stock_diff"
	MethodReviewGrowth Method = "review_growth"
	MethodReviewTotal  Method = "review_total_estimate"
	MethodNone         Method = "none"
)

// Confidence is a qualitative reliability label for a sales estimate, driven
// by the number of usable data points in the window.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceNone   Confidence = "none"
)

// WindowEstimate is the estimate for one time window (weekly or monthly).
// Each window selects its own best-available method.
type WindowEstimate struct {
	Sales           int        `json:"sales"`
	Method          Method     `json:"method"`
	Confidence      Confidence `json:"confidence"`
	DataPoints      int        `json:"data_points"`
	RestockDetected bool       `json:"restock_detected"`
}

// SalesEstimate is derived, recomputable state: a pure function of the
// snapshot series plus listing age and review totals. It may be cached but must be
// invalidated whenever a new snapshot for the product arrives.
type SalesEstimate struct {
	ProductID  string         `json:"product_id"`
	Weekly     WindowEstimate `json:"weekly"`
	Monthly    WindowEstimate `json:"monthly"`
	ComputedAt time.Time      `json:"computed_at"`
}

// Apply writes the derived fields onto a product record. The monthly window
// labels the record, matching how the figures are surfaced downstream.
func (e SalesEstimate) Apply(p *ProductRecord) {
	p.WeeklySales = e.Weekly.Sales
	p.MonthlySales = e.Monthly.Sales
	p.SalesEstimateMethod = e.Monthly.Method
	p.SalesConfidence = e.Monthly.Confidence
}
