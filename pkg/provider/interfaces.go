// Package provider pkg/provider/interfaces.go

//go:generate mockgen -destination=mock_provider.go -package=provider github.com/hostpulse/hostpulse/pkg/provider SnapshotProvider

package provider

import (
	"context"
	"errors"
)

// ErrSnapshotUnavailable means no reading of any kind could be taken; the
// collector skips the tick entirely when it sees this.
var ErrSnapshotUnavailable = errors.New("snapshot unavailable")

// CPUReading holds the raw processor readings.
type CPUReading struct {
	UsagePercent float64
	Temperature  float64
	Cores        int
}

// MemoryReading holds the raw memory readings. Temperature is nil on
// platforms without a memory sensor.
type MemoryReading struct {
	UsedGB      float64
	TotalGB     float64
	Temperature *float64
}

// GPUReading holds the raw graphics controller readings.
type GPUReading struct {
	UsagePercent float64
	Temperature  float64
	MemoryGB     float64
}

// NetworkReading holds ingress/egress rates since the previous snapshot.
type NetworkReading struct {
	RxKBps float64
	TxKBps float64
}

// HostReading holds identity and uptime readings.
type HostReading struct {
	Hostname      string
	OS            string
	UptimeSeconds uint64
}

// Snapshot is one best-effort set of raw readings. A nil section means that
// sub-call failed; the collector substitutes its documented fallback. GPU is
// also nil when the host simply has no GPU controller.
type Snapshot struct {
	CPU     *CPUReading
	Memory  *MemoryReading
	GPU     *GPUReading
	Network *NetworkReading
	Host    *HostReading
}

// SnapshotProvider is the external source of point-in-time host readings.
// Implementations never block indefinitely and return ErrSnapshotUnavailable
// only when every sub-call failed.
type SnapshotProvider interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}
