// Package api pkg/api/types.go
package api

import (
	"time"

	"github.com/hostpulse/hostpulse/pkg/models"
)

// HostPayload is one host's identity plus its most recent sample, as served
// by GET /api/metrics and pushed on the stream.
type HostPayload struct {
	ID       string               `json:"id"`
	Name     string               `json:"name"`
	Hostname string               `json:"hostname"`
	OS       string               `json:"os"`
	Status   models.HostStatus    `json:"status"`
	Uptime   uint64               `json:"uptime"`
	LastSeen time.Time            `json:"lastSeen"`
	Metrics  *models.MetricSample `json:"metrics,omitempty"`
}

// MetricsResponse wraps the host list for GET /api/metrics.
type MetricsResponse struct {
	Servers []HostPayload `json:"servers"`
}

// HistoryResponse is the sample window for GET /api/history/{hostId}.
type HistoryResponse struct {
	HostID string                `json:"hostId"`
	Period string                `json:"period"`
	Data   []models.MetricSample `json:"data"`
}

// PredictionsResponse carries trend results for GET /api/predictions/{hostId}.
// Message is set instead of Predictions when too few samples exist.
type PredictionsResponse struct {
	HostID         string               `json:"hostId"`
	Predictions    []models.TrendResult `json:"predictions"`
	AnalyzedPoints int                  `json:"analyzedPoints"`
	Message        string               `json:"message,omitempty"`
}

// AlertsResponse is the audit page for GET /api/alerts.
type AlertsResponse struct {
	Alerts []models.Alert `json:"alerts"`
	Total  int            `json:"total"`
}

// HealthResponse is the liveness body for GET /api/health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
