// Package collector pkg/collector/collector.go turns raw provider snapshots
// into stored, evaluated metric samples on a fixed cadence.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hostpulse/hostpulse/pkg/alerting"
	"github.com/hostpulse/hostpulse/pkg/metricstore"
	"github.com/hostpulse/hostpulse/pkg/models"
	"github.com/hostpulse/hostpulse/pkg/provider"
)

// Throttle detection constants. These are fixed and intentionally distinct
// from the configurable alert thresholds: throttling is a host status, not
// an alert policy.
const (
	throttleCPUPercent  = 95.0
	throttleTempCelsius = 90.0
)

// Power model coefficients (watts). The estimate is deterministic from usage
// fractions; no platform power interface is consulted.
const (
	cpuMaxWatts   = 65.0
	gpuMaxWatts   = 150.0
	ramMaxWatts   = 10.0
	storageWatts  = 8.0
	baselineWatts = 15.0
)

// offlineAfterIntervals is how many missed cadences mark the host offline.
const offlineAfterIntervals = 3

// ErrCollectionFailed wraps provider errors that made an entire tick unusable.
var ErrCollectionFailed = errors.New("collection failed")

// Collector samples the provider on every tick, persists the sample, and
// feeds it to the alert engine. Ticks are strictly serialized: if a tick is
// still running when the next fires, the new one is skipped and logged.
type Collector struct {
	provider provider.SnapshotProvider
	store    metricstore.Store
	engine   *alerting.Engine
	identity *Identity
	interval time.Duration

	inFlight atomic.Bool

	mu         sync.RWMutex
	lastSample *models.MetricSample
	lastSeen   time.Time
	os         string
	uptime     uint64
	status     models.HostStatus
}

func New(
	p provider.SnapshotProvider,
	store metricstore.Store,
	engine *alerting.Engine,
	identity *Identity,
	interval time.Duration,
) *Collector {
	return &Collector{
		provider: p,
		store:    store,
		engine:   engine,
		identity: identity,
		interval: interval,
		status:   models.HostOffline,
	}
}

// Tick runs one collection cycle. Overlapping invocations are skipped, not
// queued, so a slow provider can never stack cycles.
func (c *Collector) Tick(ctx context.Context) error {
	if !c.inFlight.CompareAndSwap(false, true) {
		log.Printf("Previous collection still running, skipping tick")
		return nil
	}
	defer c.inFlight.Store(false)

	sample, err := c.Collect(ctx)
	if err != nil {
		return err
	}

	if err := c.store.Append(sample); err != nil {
		// The sample is still evaluated for alerts; persistence catches
		// up on the next flush.
		log.Printf("Failed to append sample: %v", err)
	}

	host := c.HostRecord()
	c.engine.Evaluate(ctx, &host, sample)

	return nil
}

// Collect takes one snapshot and assembles a full sample. Individual failed
// sections fall back to the previous sample's values (zero values when there
// is no previous sample); only a totally failed snapshot aborts the tick.
func (c *Collector) Collect(ctx context.Context) (*models.MetricSample, error) {
	snap, err := c.provider.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCollectionFailed, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.lastSample

	sample := &models.MetricSample{
		HostID:    c.identity.ID(),
		Timestamp: time.Now().UTC(),
	}

	if snap.CPU != nil {
		sample.CPU = models.CPUMetrics{
			UsagePercent: snap.CPU.UsagePercent,
			Temperature:  snap.CPU.Temperature,
			Cores:        snap.CPU.Cores,
		}
	} else if prev != nil {
		sample.CPU = prev.CPU
	}

	if snap.Memory != nil {
		sample.RAM = models.RAMMetrics{
			UsedGB:      snap.Memory.UsedGB,
			TotalGB:     snap.Memory.TotalGB,
			Temperature: snap.Memory.Temperature,
		}
	} else if prev != nil {
		sample.RAM = prev.RAM
	}

	// GPU nil means no controller (or a failed read); either way the sample
	// carries no GPU section rather than a stale one.
	if snap.GPU != nil {
		sample.GPU = &models.GPUMetrics{
			UsagePercent: snap.GPU.UsagePercent,
			Temperature:  snap.GPU.Temperature,
			MemoryGB:     snap.GPU.MemoryGB,
		}
	}

	if snap.Network != nil {
		sample.Network = models.NetworkMetrics{
			RxKBps: snap.Network.RxKBps,
			TxKBps: snap.Network.TxKBps,
		}
	} else if prev != nil {
		sample.Network = prev.Network
	}

	if snap.Host != nil {
		c.os = snap.Host.OS
		c.uptime = snap.Host.UptimeSeconds
		c.identity.SetHostname(snap.Host.Hostname)
	}

	sample.Power = estimatePower(sample)

	c.status = deriveStatus(sample)
	c.lastSample = sample
	c.lastSeen = sample.Timestamp

	return sample, nil
}

// HostRecord is the current host snapshot for API responses and alert
// evaluation. A host that has not produced a sample within three intervals
// reads as offline.
func (c *Collector) HostRecord() models.HostRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := c.status
	if c.lastSeen.IsZero() || time.Since(c.lastSeen) > offlineAfterIntervals*c.interval {
		status = models.HostOffline
	}

	return models.HostRecord{
		ID:       c.identity.ID(),
		Name:     c.identity.Name(),
		Hostname: c.identity.Hostname(),
		OS:       c.os,
		Status:   status,
		Uptime:   c.uptime,
		LastSeen: c.lastSeen,
	}
}

// LastSample returns the most recent in-memory sample, or nil before the
// first successful tick.
func (c *Collector) LastSample() *models.MetricSample {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.lastSample
}

func deriveStatus(sample *models.MetricSample) models.HostStatus {
	if sample.CPU.UsagePercent > throttleCPUPercent || sample.CPU.Temperature > throttleTempCelsius {
		return models.HostThrottled
	}

	return models.HostOnline
}

// estimatePower converts usage fractions into a deterministic wattage
// estimate. Identical samples always yield identical figures.
func estimatePower(sample *models.MetricSample) models.PowerMetrics {
	p := models.PowerMetrics{
		CPUWatts:     baselineWatts + (sample.CPU.UsagePercent/100.0)*cpuMaxWatts,
		StorageWatts: storageWatts,
	}

	if sample.RAM.TotalGB > 0 {
		p.RAMWatts = (sample.RAM.UsedGB / sample.RAM.TotalGB) * ramMaxWatts
	}

	if sample.GPU != nil {
		p.GPUWatts = (sample.GPU.UsagePercent / 100.0) * gpuMaxWatts
	}

	p.TotalWatts = p.CPUWatts + p.GPUWatts + p.RAMWatts + p.StorageWatts

	return p
}
