package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/hostpulse/hostpulse/pkg/alerting"
	"github.com/hostpulse/hostpulse/pkg/collector"
	"github.com/hostpulse/hostpulse/pkg/metricstore"
	"github.com/hostpulse/hostpulse/pkg/models"
	"github.com/hostpulse/hostpulse/pkg/provider"
	"github.com/hostpulse/hostpulse/pkg/trend"
)

type testEnv struct {
	server      *APIServer
	collector   *collector.Collector
	metricStore *metricstore.SQLiteStore
	alertStore  *alerting.SQLiteAlertStore
	hostID      string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()

	metricStore, err := metricstore.New(filepath.Join(dir, "metrics.db"))
	require.NoError(t, err)

	alertStore, err := alerting.NewStore(filepath.Join(dir, "alerts.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = metricStore.Close()
		_ = alertStore.Close()
	})

	identity, err := collector.LoadIdentity(dir)
	require.NoError(t, err)

	thresholds := models.Thresholds{
		CPUPercent:  90,
		RAMPercent:  90,
		GPUPercent:  95,
		TempCelsius: 85,
	}

	ctrl := gomock.NewController(t)
	mockProvider := provider.NewMockSnapshotProvider(ctrl)

	engine := alerting.NewEngine(thresholds, alertStore, nil)
	coll := collector.New(mockProvider, metricStore, engine, identity, 5*time.Second)
	analyzer := trend.NewAnalyzer(metricStore, thresholds, 5*time.Second)

	return &testEnv{
		server:      NewAPIServer(coll, metricStore, alertStore, analyzer),
		collector:   coll,
		metricStore: metricStore,
		alertStore:  alertStore,
		hostID:      identity.ID(),
	}
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()

	e.server.Router().ServeHTTP(rec, req)

	return rec
}

func TestGetHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestGetMetrics(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/api/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp MetricsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Servers, 1)
	assert.Equal(t, env.hostID, resp.Servers[0].ID)
	assert.Equal(t, models.HostOffline, resp.Servers[0].Status)
	assert.Nil(t, resp.Servers[0].Metrics)
}

func TestGetHistory(t *testing.T) {
	env := newTestEnv(t)

	now := time.Now().UTC()

	require.NoError(t, env.metricStore.Append(&models.MetricSample{
		HostID:    env.hostID,
		Timestamp: now.Add(-30 * time.Minute),
		CPU:       models.CPUMetrics{UsagePercent: 30},
		RAM:       models.RAMMetrics{UsedGB: 8, TotalGB: 32},
	}))
	require.NoError(t, env.metricStore.Append(&models.MetricSample{
		HostID:    env.hostID,
		Timestamp: now.Add(-3 * time.Hour),
		CPU:       models.CPUMetrics{UsagePercent: 50},
		RAM:       models.RAMMetrics{UsedGB: 8, TotalGB: 32},
	}))

	rec := env.get(t, "/api/history/"+env.hostID+"?period=1h")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HistoryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, env.hostID, resp.HostID)
	assert.Equal(t, "1h0m0s", resp.Period)
	require.Len(t, resp.Data, 1)
	assert.InDelta(t, 30, resp.Data[0].CPU.UsagePercent, 0.001)
}

func TestGetHistoryInvalidPeriod(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/api/history/"+env.hostID+"?period=banana")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.get(t, "/api/history/"+env.hostID+"?period=-1h")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPredictionsInsufficientData(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/api/predictions/"+env.hostID)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp PredictionsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, env.hostID, resp.HostID)
	assert.Zero(t, resp.AnalyzedPoints)
	assert.Empty(t, resp.Predictions)
	assert.Equal(t, "Insufficient data for trend analysis", resp.Message)
}

func TestGetPredictionsWithData(t *testing.T) {
	env := newTestEnv(t)

	base := time.Now().UTC().Add(-5 * time.Minute)

	for i := 0; i < 60; i++ {
		require.NoError(t, env.metricStore.Append(&models.MetricSample{
			HostID:    env.hostID,
			Timestamp: base.Add(time.Duration(i) * 5 * time.Second),
			CPU:       models.CPUMetrics{UsagePercent: 60 + float64(i)*0.5},
			RAM:       models.RAMMetrics{UsedGB: 8, TotalGB: 32},
		}))
	}

	rec := env.get(t, "/api/predictions/"+env.hostID)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp PredictionsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 60, resp.AnalyzedPoints)
	assert.Empty(t, resp.Message)
	require.NotEmpty(t, resp.Predictions)
	assert.Equal(t, models.AlertCPU, resp.Predictions[0].Kind)
}

func TestGetAlerts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.alertStore.Record(ctx, &models.Alert{
		ID:        "a-1",
		Timestamp: time.Now().UTC(),
		HostID:    env.hostID,
		HostName:  "worker-01",
		Subject:   "High CPU usage",
		Message:   "CPU usage is 95.0%",
		Kind:      models.AlertCPU,
		Severity:  models.SeverityWarning,
	}))

	rec := env.get(t, "/api/alerts?hostId="+env.hostID)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AlertsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Total)
	require.Len(t, resp.Alerts, 1)
	assert.Equal(t, "a-1", resp.Alerts[0].ID)
}

func TestGetAlertsEmpty(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/api/alerts")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AlertsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Zero(t, resp.Total)
	assert.Empty(t, resp.Alerts)
}

func TestGetAlertsInvalidLimit(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/api/alerts?limit=banana")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSHeadersSet(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/api/health")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
