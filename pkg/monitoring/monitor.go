// Package monitoring pkg/monitoring/monitor.go
package monitoring

import (
	"context"
	"log"
	"time"
)

// Monitor drives one periodic task: a named check run on a fixed interval
// with an immediate first run. It exists so cadence and shutdown are
// testable without real wall-clock waits.
type Monitor struct {
	name     string
	interval time.Duration
	done     chan struct{}
}

// NewMonitor creates a periodic runner for the given cadence.
func NewMonitor(name string, interval time.Duration) *Monitor {
	return &Monitor{
		name:     name,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Run executes check immediately and then on every tick until the context is
// canceled or Stop is called. Checks run serially within one Monitor; a slow
// check delays the next tick rather than overlapping it.
func (m *Monitor) Run(ctx context.Context, check func(context.Context) error) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	if err := check(ctx); err != nil {
		log.Printf("Initial %s run failed: %v", m.name, err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-ticker.C:
			if err := check(ctx); err != nil {
				log.Printf("%s run failed: %v", m.name, err)
			}
		}
	}
}

// Stop ends the loop. Safe to call once.
func (m *Monitor) Stop(_ context.Context) {
	close(m.done)
}
