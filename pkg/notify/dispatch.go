package notify

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	dispatchTimeout = 15 * time.Second

	// Per-channel send budget. Anything beyond this is dropped, not queued;
	// the alert itself is already persisted by the time dispatch happens.
	channelRate  = rate.Limit(1)
	channelBurst = 5
)

// Dispatcher fans one notification out to every configured channel. Channels
// are independent: a slow or failing channel never blocks or fails the
// others, and no aggregate error is produced.
type Dispatcher struct {
	notifiers []Notifier
	limiters  []*rate.Limiter
	wg        sync.WaitGroup
}

func NewDispatcher(notifiers ...Notifier) *Dispatcher {
	limiters := make([]*rate.Limiter, len(notifiers))
	for i := range notifiers {
		limiters[i] = rate.NewLimiter(channelRate, channelBurst)
	}

	return &Dispatcher{
		notifiers: notifiers,
		limiters:  limiters,
	}
}

// Dispatch sends n to all enabled channels concurrently and returns
// immediately. Failures are logged per channel.
func (d *Dispatcher) Dispatch(n *Notification) {
	for i, notifier := range d.notifiers {
		if !notifier.IsEnabled() {
			continue
		}

		if !d.limiters[i].Allow() {
			log.Printf("Notification channel %d over rate limit, dropping: %s", i, n.Subject)
			continue
		}

		d.wg.Add(1)

		go func(nt Notifier) {
			defer d.wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
			defer cancel()

			if err := nt.Notify(ctx, n); err != nil {
				log.Printf("Notification delivery failed: %v", err)
			}
		}(notifier)
	}
}

// Wait blocks until all in-flight sends have finished. Used on shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
