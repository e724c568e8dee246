// Package models pkg/models/metrics.go contains the core data model for hostpulse.
package models

import "time"

// CPUMetrics holds the processor readings for one sample.
type CPUMetrics struct {
	UsagePercent float64 `json:"usagePercent"`
	Temperature  float64 `json:"temperature"`
	Cores        int     `json:"cores"`
}

// RAMMetrics holds the memory readings for one sample. Temperature is only
// present on platforms that expose a memory sensor.
type RAMMetrics struct {
	UsedGB      float64  `json:"usedGb"`
	TotalGB     float64  `json:"totalGb"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// UsedPercent returns used/total as a percentage, or 0 when total is unknown.
func (r RAMMetrics) UsedPercent() float64 {
	if r.TotalGB <= 0 {
		return 0
	}

	return r.UsedGB / r.TotalGB * 100
}

// GPUMetrics holds the graphics controller readings. A sample carries a nil
// GPUMetrics when no controller was detected on the host.
type GPUMetrics struct {
	UsagePercent float64 `json:"usagePercent"`
	Temperature  float64 `json:"temperature"`
	MemoryGB     float64 `json:"memoryGb"`
}

// PowerMetrics is the estimated power draw, derived from usage fractions.
// It is informational only and never alert-bearing.
type PowerMetrics struct {
	TotalWatts   float64 `json:"totalWatts"`
	CPUWatts     float64 `json:"cpuWatts"`
	GPUWatts     float64 `json:"gpuWatts"`
	RAMWatts     float64 `json:"ramWatts"`
	StorageWatts float64 `json:"storageWatts"`
}

// NetworkMetrics holds ingress/egress rates since the previous sample.
type NetworkMetrics struct {
	RxKBps float64 `json:"rxKbps"`
	TxKBps float64 `json:"txKbps"`
}

// MetricSample is one point-in-time snapshot for one host. Samples are
// immutable once recorded; retention eviction is the only way one is removed.
type MetricSample struct {
	HostID    string         `json:"hostId"`
	Timestamp time.Time      `json:"timestamp"`
	CPU       CPUMetrics     `json:"cpu"`
	RAM       RAMMetrics     `json:"ram"`
	GPU       *GPUMetrics    `json:"gpu,omitempty"`
	Power     PowerMetrics   `json:"power"`
	Network   NetworkMetrics `json:"network"`
}
