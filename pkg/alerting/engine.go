package alerting

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hostpulse/hostpulse/pkg/models"
	"github.com/hostpulse/hostpulse/pkg/notify"
)

// latchKey identifies one hysteresis latch. Exactly one latch exists per
// (host, metric kind) pair, created lazily on first evaluation.
type latchKey struct {
	hostID string
	kind   models.AlertKind
}

// Engine is the edge-triggered threshold alerter. An alert fires only on the
// quiet-to-firing transition of a latch; a sustained excursion produces
// exactly one alert until the value drops back to or below the threshold.
//
// The latch map is in-memory and process-lifetime: a restart re-arms every
// latch, which at worst repeats one alert for a still-ongoing condition.
type Engine struct {
	mu         sync.Mutex
	thresholds models.Thresholds
	store      AlertStore
	dispatcher *notify.Dispatcher
	latches    map[latchKey]bool
}

func NewEngine(thresholds models.Thresholds, store AlertStore, dispatcher *notify.Dispatcher) *Engine {
	return &Engine{
		thresholds: thresholds,
		store:      store,
		dispatcher: dispatcher,
		latches:    make(map[latchKey]bool),
	}
}

// Evaluate runs every metric kind's latch over one sample. Each kind has an
// independent latch, so a simultaneous CPU and temperature excursion yields
// two alerts.
func (e *Engine) Evaluate(ctx context.Context, host *models.HostRecord, sample *models.MetricSample) {
	e.evaluateValue(ctx, host, models.AlertCPU, models.SeverityWarning,
		sample.CPU.UsagePercent, e.thresholds.CPUPercent,
		"High CPU usage",
		fmt.Sprintf("CPU usage is %.1f%% (threshold %.1f%%)", sample.CPU.UsagePercent, e.thresholds.CPUPercent))

	ramPct := sample.RAM.UsedPercent()
	e.evaluateValue(ctx, host, models.AlertRAM, models.SeverityWarning,
		ramPct, e.thresholds.RAMPercent,
		"High memory usage",
		fmt.Sprintf("Memory usage is %.1f%% (%.1f/%.1f GB, threshold %.1f%%)",
			ramPct, sample.RAM.UsedGB, sample.RAM.TotalGB, e.thresholds.RAMPercent))

	// Hosts without a GPU controller skip the GPU kind entirely; the latch
	// is neither created nor cleared.
	if sample.GPU != nil {
		e.evaluateValue(ctx, host, models.AlertGPU, models.SeverityWarning,
			sample.GPU.UsagePercent, e.thresholds.GPUPercent,
			"High GPU usage",
			fmt.Sprintf("GPU usage is %.1f%% (threshold %.1f%%)", sample.GPU.UsagePercent, e.thresholds.GPUPercent))
	}

	e.evaluateValue(ctx, host, models.AlertTemperature, models.SeverityError,
		sample.CPU.Temperature, e.thresholds.TempCelsius,
		"High CPU temperature",
		fmt.Sprintf("CPU temperature is %.1fC (threshold %.1fC)", sample.CPU.Temperature, e.thresholds.TempCelsius))

	e.evaluateCondition(ctx, host, models.AlertThrottled, models.SeverityError,
		host.Status == models.HostThrottled,
		"Host throttled",
		fmt.Sprintf("Host %s is throttling under load", host.Name))
}

// evaluateValue applies the latch discipline to one numeric kind. A zero or
// negative threshold disables the kind.
func (e *Engine) evaluateValue(
	ctx context.Context, host *models.HostRecord,
	kind models.AlertKind, severity models.Severity,
	value, threshold float64, subject, message string) {
	if threshold <= 0 {
		return
	}

	e.evaluateCondition(ctx, host, kind, severity, value > threshold, subject, message)
}

// evaluateCondition is the state machine itself: quiet->firing emits one
// alert, firing->quiet silently re-arms, same-state transitions do nothing.
func (e *Engine) evaluateCondition(
	ctx context.Context, host *models.HostRecord,
	kind models.AlertKind, severity models.Severity,
	exceeded bool, subject, message string) {
	key := latchKey{hostID: host.ID, kind: kind}

	e.mu.Lock()
	firing := e.latches[key]

	if exceeded == firing {
		e.mu.Unlock()
		return
	}

	e.latches[key] = exceeded
	e.mu.Unlock()

	if !exceeded {
		log.Printf("Alert condition cleared: host=%s kind=%s", host.Name, kind)
		return
	}

	e.emit(ctx, host, kind, severity, subject, message)
}

// emit persists the alert and hands it to the fan-out. The latch transition
// has already been decided; delivery failures never roll it back, and the
// alert counts as emitted once persisted.
func (e *Engine) emit(
	ctx context.Context, host *models.HostRecord,
	kind models.AlertKind, severity models.Severity, subject, message string) {
	alert := &models.Alert{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		HostID:    host.ID,
		HostName:  host.Name,
		Subject:   subject,
		Message:   message,
		Kind:      kind,
		Severity:  severity,
	}

	if err := e.store.Record(ctx, alert); err != nil {
		log.Printf("Failed to record alert: %v", err)
	}

	log.Printf("Alert: host=%s kind=%s severity=%s %s", host.Name, kind, severity, message)

	if e.dispatcher != nil {
		e.dispatcher.Dispatch(notificationFromAlert(alert))
	}
}

func notificationFromAlert(alert *models.Alert) *notify.Notification {
	level := notify.Warning
	if alert.Severity == models.SeverityError {
		level = notify.Error
	}

	return &notify.Notification{
		Level:     level,
		Subject:   fmt.Sprintf("%s: %s", alert.HostName, alert.Subject),
		Message:   alert.Message,
		Timestamp: alert.Timestamp.Format(time.RFC3339),
		HostID:    alert.HostID,
		HostName:  alert.HostName,
		Details: map[string]any{
			"kind": string(alert.Kind),
		},
	}
}
