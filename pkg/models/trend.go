package models

// Confidence buckets how well a linear fit explains the recent samples,
// derived from the coefficient of determination.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// TrendResult is a derived, non-persisted prediction for one metric kind.
type TrendResult struct {
	Kind         AlertKind  `json:"kind"`
	Slope        float64    `json:"slope"`
	Average      float64    `json:"average"`
	CurrentValue float64    `json:"currentValue"`
	Confidence   Confidence `json:"confidence"`
	Severity     Severity   `json:"severity"`
	Message      string     `json:"message"`
	HoursToLimit float64    `json:"hoursToLimit,omitempty"`
}
