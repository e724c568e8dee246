// Package notify pkg/notify/interfaces.go

//go:generate mockgen -destination=mock_notify.go -package=notify github.com/hostpulse/hostpulse/pkg/notify Notifier

package notify

import (
	"context"
)

// Notifier is one delivery channel for alert notifications. Implementations
// are best-effort: a failed or disabled send never propagates beyond the
// channel itself.
type Notifier interface {
	// Notify delivers one formatted notification through the channel.
	Notify(ctx context.Context, n *Notification) error

	// IsEnabled returns whether the channel is configured and active.
	IsEnabled() bool
}
