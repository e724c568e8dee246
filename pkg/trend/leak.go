package trend

import (
	"fmt"

	"github.com/hostpulse/hostpulse/pkg/models"
)

const (
	// LeakMinSamples is the minimum RAM series length the heuristic needs.
	LeakMinSamples = 20

	// leakSlopeEpsilon is the smallest per-sample growth (GB) that counts
	// as climbing at all.
	leakSlopeEpsilon = 1e-3

	// leakMaxReleaseFraction: a single-step drop at or above this share of
	// the window's value range reads as a real release event, not a leak.
	leakMaxReleaseFraction = 0.10
)

// IsLeak classifies a RAM-used series (GB) as a probable leak: steadily
// climbing with high confidence and no release event anywhere in the window.
// Ordinary noisy load either fails the confidence gate or shows at least one
// meaningful drop.
func IsLeak(values []float64) bool {
	if len(values) < LeakMinSamples {
		return false
	}

	f := fitLine(values)

	if f.slope <= leakSlopeEpsilon {
		return false
	}

	if confidence(f.r2) != models.ConfidenceHigh {
		return false
	}

	minV, maxV := values[0], values[0]

	for _, v := range values[1:] {
		if v < minV {
			minV = v
		}

		if v > maxV {
			maxV = v
		}
	}

	valueRange := maxV - minV
	if valueRange <= 0 {
		return false
	}

	var largestDrop float64

	for i := 1; i < len(values); i++ {
		if drop := values[i-1] - values[i]; drop > largestDrop {
			largestDrop = drop
		}
	}

	return largestDrop < leakMaxReleaseFraction*valueRange
}

// detectLeak runs the heuristic over the window's RAM-used series. The
// result is advisory, recomputed fresh on every query; it never touches the
// alert engine's latches.
func (a *Analyzer) detectLeak(samples []models.MetricSample) (*models.TrendResult, bool) {
	values := make([]float64, 0, len(samples))
	for i := range samples {
		values = append(values, samples[i].RAM.UsedGB)
	}

	if !IsLeak(values) {
		return nil, false
	}

	f := fitLine(values)
	current := values[len(values)-1]

	perHourGB := f.slope * a.samplesPerHour

	return &models.TrendResult{
		Kind:         models.AlertLeak,
		Slope:        f.slope,
		Average:      f.mean,
		CurrentValue: current,
		Confidence:   confidence(f.r2),
		Severity:     models.SeverityError,
		Message: fmt.Sprintf("Memory climbing steadily without release (%.2f GB/h), possible leak",
			perHourGB),
	}, true
}
