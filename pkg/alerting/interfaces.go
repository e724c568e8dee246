// Package alerting pkg/alerting/interfaces.go

//go:generate mockgen -destination=mock_alerting.go -package=alerting github.com/hostpulse/hostpulse/pkg/alerting AlertStore

package alerting

import (
	"context"
	"time"

	"github.com/hostpulse/hostpulse/pkg/models"
)

// AlertStore is the append-only audit log of emitted alerts. Individual
// alerts are never updated or deleted; only bulk retention eviction applies.
type AlertStore interface {
	// Record persists one emitted alert.
	Record(ctx context.Context, alert *models.Alert) error

	// Query returns up to limit alerts, most recent first. Empty hostID
	// means all hosts.
	Query(ctx context.Context, hostID string, limit int) ([]models.Alert, error)

	// Count returns the total number of recorded alerts, optionally
	// filtered by host.
	Count(ctx context.Context, hostID string) (int, error)

	// Evict deletes alerts older than now-retention.
	Evict(ctx context.Context, retention time.Duration) error

	Close() error
}
