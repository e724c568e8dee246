// Package trend pkg/trend/analyzer.go fits linear trends to recent samples
// and projects time-to-threshold for each metric kind.
package trend

import (
	"context"
	"fmt"
	"time"

	"github.com/hostpulse/hostpulse/pkg/metricstore"
	"github.com/hostpulse/hostpulse/pkg/models"
)

const (
	// DefaultWindow is how many recent samples a fit considers.
	DefaultWindow = 100

	// MinSamples is the floor below which no prediction is produced.
	MinSamples = 10

	highR2   = 0.7
	mediumR2 = 0.4

	// A projection closer than this is reported as an error rather than a
	// warning.
	urgentHours = 24
)

// fit is an ordinary least-squares fit of values against their sample index
// 0..n-1. The x-axis is sample order, not wall-clock time: sample spacing is
// assumed uniform, and the collector's serialized tick keeps it so.
type fit struct {
	slope float64
	mean  float64
	r2    float64
}

func fitLine(values []float64) fit {
	n := float64(len(values))
	if n < 2 {
		return fit{}
	}

	var sumX, sumY, sumXY, sumXX float64

	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return fit{mean: sumY / n}
	}

	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n
	mean := sumY / n

	var ssRes, ssTot float64

	for i, y := range values {
		predicted := intercept + slope*float64(i)
		ssRes += (y - predicted) * (y - predicted)
		ssTot += (y - mean) * (y - mean)
	}

	r2 := 0.0
	if ssTot > 0 {
		r2 = 1 - ssRes/ssTot
	}

	return fit{slope: slope, mean: mean, r2: r2}
}

func confidence(r2 float64) models.Confidence {
	switch {
	case r2 > highR2:
		return models.ConfidenceHigh
	case r2 > mediumR2:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

// metricSpec is the per-kind tuning: how to extract the series, the minimum
// slope worth reporting, and the already-elevated floor that gates noisy
// predictions from low baselines.
type metricSpec struct {
	kind     models.AlertKind
	label    string
	unit     string
	minSlope float64
	floor    float64
	extract  func(*models.MetricSample) (float64, bool)
	limit    func(models.Thresholds) float64
}

var metricSpecs = []metricSpec{
	{
		kind:     models.AlertCPU,
		label:    "CPU usage",
		unit:     "%",
		minSlope: 0.01,
		floor:    50,
		extract: func(s *models.MetricSample) (float64, bool) {
			return s.CPU.UsagePercent, true
		},
		limit: func(t models.Thresholds) float64 { return t.CPUPercent },
	},
	{
		kind:     models.AlertRAM,
		label:    "Memory usage",
		unit:     "%",
		minSlope: 0.01,
		floor:    60,
		extract: func(s *models.MetricSample) (float64, bool) {
			return s.RAM.UsedPercent(), true
		},
		limit: func(t models.Thresholds) float64 { return t.RAMPercent },
	},
	{
		kind:     models.AlertGPU,
		label:    "GPU usage",
		unit:     "%",
		minSlope: 0.01,
		floor:    50,
		extract: func(s *models.MetricSample) (float64, bool) {
			if s.GPU == nil {
				return 0, false
			}

			return s.GPU.UsagePercent, true
		},
		limit: func(t models.Thresholds) float64 { return t.GPUPercent },
	},
	{
		kind:     models.AlertTemperature,
		label:    "CPU temperature",
		unit:     "C",
		minSlope: 0.01,
		floor:    60,
		extract: func(s *models.MetricSample) (float64, bool) {
			return s.CPU.Temperature, true
		},
		limit: func(t models.Thresholds) float64 { return t.TempCelsius },
	},
}

// Analyzer derives forward-looking signals from the metric store.
type Analyzer struct {
	store          metricstore.Store
	thresholds     models.Thresholds
	window         int
	samplesPerHour float64
}

// NewAnalyzer scales projections by the actual sampling cadence rather than
// a fixed constant: a 5s interval means 720 samples per hour.
func NewAnalyzer(store metricstore.Store, thresholds models.Thresholds, sampleInterval time.Duration) *Analyzer {
	if sampleInterval <= 0 {
		sampleInterval = 5 * time.Second
	}

	return &Analyzer{
		store:          store,
		thresholds:     thresholds,
		window:         DefaultWindow,
		samplesPerHour: float64(time.Hour) / float64(sampleInterval),
	}
}

// Predict returns trend results for hostID plus the number of samples
// analyzed. Fewer than MinSamples is not an error: it returns an empty
// result set and the caller reports "insufficient data".
func (a *Analyzer) Predict(ctx context.Context, hostID string) ([]models.TrendResult, int, error) {
	samples, err := a.store.Query(ctx, hostID, time.Time{})
	if err != nil {
		return nil, 0, err
	}

	if len(samples) > a.window {
		samples = samples[len(samples)-a.window:]
	}

	analyzed := len(samples)
	if analyzed < MinSamples {
		return nil, analyzed, nil
	}

	results := make([]models.TrendResult, 0, len(metricSpecs)+1)

	for i := range metricSpecs {
		if r, ok := a.predictMetric(samples, &metricSpecs[i]); ok {
			results = append(results, *r)
		}
	}

	if r, ok := a.detectLeak(samples); ok {
		results = append(results, *r)
	}

	return results, analyzed, nil
}

func (a *Analyzer) predictMetric(samples []models.MetricSample, spec *metricSpec) (*models.TrendResult, bool) {
	values := make([]float64, 0, len(samples))

	for i := range samples {
		v, ok := spec.extract(&samples[i])
		if !ok {
			return nil, false
		}

		values = append(values, v)
	}

	f := fitLine(values)

	// Only an upward trend from an already-elevated baseline is worth
	// predicting; near-flat or low series just produce noise.
	if f.slope < spec.minSlope || f.mean < spec.floor {
		return nil, false
	}

	current := values[len(values)-1]

	result := &models.TrendResult{
		Kind:         spec.kind,
		Slope:        f.slope,
		Average:      f.mean,
		CurrentValue: current,
		Confidence:   confidence(f.r2),
		Severity:     models.SeverityWarning,
		Message: fmt.Sprintf("%s is trending upward (avg %.1f%s)",
			spec.label, f.mean, spec.unit),
	}

	limit := spec.limit(a.thresholds)
	if limit > f.mean {
		hours := (limit - f.mean) / f.slope / a.samplesPerHour
		result.HoursToLimit = hours
		result.Message = fmt.Sprintf("%s is trending upward (avg %.1f%s), projected to reach %.0f%s in %.1fh",
			spec.label, f.mean, spec.unit, limit, spec.unit, hours)

		if hours < urgentHours {
			result.Severity = models.SeverityError
		}
	}

	return result, true
}
