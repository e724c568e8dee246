// Package metricstore pkg/metricstore/interfaces.go

//go:generate mockgen -destination=mock_store.go -package=metricstore github.com/hostpulse/hostpulse/pkg/metricstore Store

package metricstore

import (
	"context"
	"time"

	"github.com/hostpulse/hostpulse/pkg/models"
)

// Store is the append-only time series of metric samples, keyed by host id.
// One writer (the collection tick), many readers.
type Store interface {
	// Append records a sample in the write buffer. O(1); never rejects a
	// well-formed sample.
	Append(sample *models.MetricSample) error

	// Query returns all samples for hostID at or after since, ascending by
	// timestamp. Unknown host ids yield an empty slice, not an error.
	Query(ctx context.Context, hostID string, since time.Time) ([]models.MetricSample, error)

	// Latest returns the most recent sample for hostID, or nil when none exists.
	Latest(ctx context.Context, hostID string) (*models.MetricSample, error)

	// Hosts lists every host id with at least one sample.
	Hosts(ctx context.Context) ([]string, error)

	// Evict deletes every sample older than now-retention. Idempotent.
	Evict(ctx context.Context, retention time.Duration) error

	// Flush persists the write buffer. Called on a timer and on shutdown.
	Flush(ctx context.Context) error

	Close() error
}
