package models

import "time"

// AlertKind identifies which condition an alert reports on.
type AlertKind string

const (
	AlertCPU         AlertKind = "cpu"
	AlertRAM         AlertKind = "ram"
	AlertGPU         AlertKind = "gpu"
	AlertTemperature AlertKind = "temperature"
	AlertThrottled   AlertKind = "throttled"
	AlertLeak        AlertKind = "leak"
)

// Severity classifies how urgent an alert or trend signal is.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Alert is the persisted, immutable record of one emitted notification.
type Alert struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	HostID    string    `json:"hostId"`
	HostName  string    `json:"hostName"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Kind      AlertKind `json:"kind"`
	Severity  Severity  `json:"severity"`
}

// Thresholds are the deployment-wide alert limits. A zero value disables the
// corresponding kind.
type Thresholds struct {
	CPUPercent  float64 `json:"cpu_percent"`
	RAMPercent  float64 `json:"ram_percent"`
	GPUPercent  float64 `json:"gpu_percent"`
	TempCelsius float64 `json:"temp_celsius"`
}
