package trend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostpulse/hostpulse/pkg/metricstore"
	"github.com/hostpulse/hostpulse/pkg/models"
)

var testThresholds = models.Thresholds{
	CPUPercent:  90,
	RAMPercent:  90,
	GPUPercent:  95,
	TempCelsius: 85,
}

func TestFitLinePerfectLinear(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i)
	}

	f := fitLine(values)

	assert.InDelta(t, 1.0, f.slope, 0.0001)
	assert.InDelta(t, 49.5, f.mean, 0.0001)
	assert.InDelta(t, 1.0, f.r2, 0.0001)
	assert.Equal(t, models.ConfidenceHigh, confidence(f.r2))
}

func TestFitLineFlatSeries(t *testing.T) {
	values := make([]float64, 50)
	for i := range values {
		values[i] = 42
	}

	f := fitLine(values)

	assert.InDelta(t, 0, f.slope, 0.0001)
	assert.InDelta(t, 42, f.mean, 0.0001)
	assert.Equal(t, models.ConfidenceLow, confidence(f.r2))
}

func TestFitLineNoisySeriesLowConfidence(t *testing.T) {
	// Alternating values have no usable linear structure.
	values := make([]float64, 40)
	for i := range values {
		if i%2 == 0 {
			values[i] = 30
		} else {
			values[i] = 70
		}
	}

	f := fitLine(values)

	assert.InDelta(t, 0, f.slope, 0.1)
	assert.NotEqual(t, models.ConfidenceHigh, confidence(f.r2))
}

func TestConfidenceBuckets(t *testing.T) {
	assert.Equal(t, models.ConfidenceHigh, confidence(0.71))
	assert.Equal(t, models.ConfidenceMedium, confidence(0.7))
	assert.Equal(t, models.ConfidenceMedium, confidence(0.41))
	assert.Equal(t, models.ConfidenceLow, confidence(0.4))
	assert.Equal(t, models.ConfidenceLow, confidence(0))
}

func newAnalyzerWithStore(t *testing.T) (*Analyzer, *metricstore.SQLiteStore) {
	t.Helper()

	store, err := metricstore.New(filepath.Join(t.TempDir(), "trend.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = store.Close()
	})

	return NewAnalyzer(store, testThresholds, 5*time.Second), store
}

func appendSeries(t *testing.T, store *metricstore.SQLiteStore, hostID string, build func(i int) models.MetricSample, n int) {
	t.Helper()

	base := time.Now().UTC().Add(-time.Duration(n) * 5 * time.Second)

	for i := 0; i < n; i++ {
		sample := build(i)
		sample.HostID = hostID
		sample.Timestamp = base.Add(time.Duration(i) * 5 * time.Second)

		require.NoError(t, store.Append(&sample))
	}
}

func TestPredictInsufficientData(t *testing.T) {
	analyzer, store := newAnalyzerWithStore(t)

	appendSeries(t, store, "host-1", func(i int) models.MetricSample {
		return models.MetricSample{
			CPU: models.CPUMetrics{UsagePercent: 50 + float64(i)},
			RAM: models.RAMMetrics{UsedGB: 8, TotalGB: 32},
		}
	}, MinSamples-1)

	results, analyzed, err := analyzer.Predict(context.Background(), "host-1")
	require.NoError(t, err)
	assert.Nil(t, results)
	assert.Equal(t, MinSamples-1, analyzed)
}

func TestPredictRisingCPU(t *testing.T) {
	analyzer, store := newAnalyzerWithStore(t)

	// 60% climbing to ~90% over 60 samples.
	appendSeries(t, store, "host-1", func(i int) models.MetricSample {
		return models.MetricSample{
			CPU: models.CPUMetrics{UsagePercent: 60 + float64(i)*0.5, Temperature: 40},
			RAM: models.RAMMetrics{UsedGB: 8, TotalGB: 32},
		}
	}, 60)

	results, analyzed, err := analyzer.Predict(context.Background(), "host-1")
	require.NoError(t, err)
	assert.Equal(t, 60, analyzed)

	var cpu *models.TrendResult

	for i := range results {
		if results[i].Kind == models.AlertCPU {
			cpu = &results[i]
		}
	}

	require.NotNil(t, cpu, "expected a CPU trend result")
	assert.InDelta(t, 0.5, cpu.Slope, 0.01)
	assert.Equal(t, models.ConfidenceHigh, cpu.Confidence)
	assert.Greater(t, cpu.HoursToLimit, 0.0)
	assert.Less(t, cpu.HoursToLimit, 24.0)
	assert.Equal(t, models.SeverityError, cpu.Severity)
	assert.Contains(t, cpu.Message, "CPU usage")
}

func TestPredictSkipsQuietMetrics(t *testing.T) {
	analyzer, store := newAnalyzerWithStore(t)

	appendSeries(t, store, "host-1", func(i int) models.MetricSample {
		return models.MetricSample{
			CPU: models.CPUMetrics{UsagePercent: 20, Temperature: 40},
			RAM: models.RAMMetrics{UsedGB: 8, TotalGB: 32},
		}
	}, 50)

	results, analyzed, err := analyzer.Predict(context.Background(), "host-1")
	require.NoError(t, err)
	assert.Equal(t, 50, analyzed)
	assert.Empty(t, results)
}

func TestPredictWindowLimitsSamples(t *testing.T) {
	analyzer, store := newAnalyzerWithStore(t)

	appendSeries(t, store, "host-1", func(i int) models.MetricSample {
		return models.MetricSample{
			CPU: models.CPUMetrics{UsagePercent: 20},
			RAM: models.RAMMetrics{UsedGB: 8, TotalGB: 32},
		}
	}, DefaultWindow+40)

	_, analyzed, err := analyzer.Predict(context.Background(), "host-1")
	require.NoError(t, err)
	assert.Equal(t, DefaultWindow, analyzed)
}

func TestIsLeakMonotonicClimb(t *testing.T) {
	values := make([]float64, 25)
	for i := range values {
		values[i] = 4 + float64(i)*0.05
	}

	assert.True(t, IsLeak(values))
}

func TestIsLeakReleaseEventClears(t *testing.T) {
	values := make([]float64, 25)
	for i := range values {
		values[i] = 4 + float64(i)*0.05
	}

	// One garbage-collection style release halfway through.
	values[12] = values[11] - 0.6

	assert.False(t, IsLeak(values))
}

func TestIsLeakShortSeries(t *testing.T) {
	values := make([]float64, LeakMinSamples-1)
	for i := range values {
		values[i] = 4 + float64(i)*0.05
	}

	assert.False(t, IsLeak(values))
}

func TestIsLeakFlatSeries(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		values[i] = 8
	}

	assert.False(t, IsLeak(values))
}

func TestPredictReportsLeak(t *testing.T) {
	analyzer, store := newAnalyzerWithStore(t)

	appendSeries(t, store, "host-1", func(i int) models.MetricSample {
		return models.MetricSample{
			CPU: models.CPUMetrics{UsagePercent: 20, Temperature: 40},
			RAM: models.RAMMetrics{UsedGB: 4 + float64(i)*0.05, TotalGB: 32},
		}
	}, 30)

	results, _, err := analyzer.Predict(context.Background(), "host-1")
	require.NoError(t, err)

	var leak *models.TrendResult

	for i := range results {
		if results[i].Kind == models.AlertLeak {
			leak = &results[i]
		}
	}

	require.NotNil(t, leak, "expected a leak result")
	assert.Equal(t, models.SeverityError, leak.Severity)
	assert.Equal(t, models.ConfidenceHigh, leak.Confidence)
	assert.Contains(t, leak.Message, "possible leak")
}
