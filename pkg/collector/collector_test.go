package collector

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/hostpulse/hostpulse/pkg/alerting"
	"github.com/hostpulse/hostpulse/pkg/metricstore"
	"github.com/hostpulse/hostpulse/pkg/models"
	"github.com/hostpulse/hostpulse/pkg/provider"
)

func newTestCollector(t *testing.T, p provider.SnapshotProvider) (*Collector, metricstore.Store) {
	t.Helper()

	dir := t.TempDir()

	store, err := metricstore.New(filepath.Join(dir, "metrics.db"))
	require.NoError(t, err)

	alertStore, err := alerting.NewStore(filepath.Join(dir, "alerts.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = store.Close()
		_ = alertStore.Close()
	})

	identity, err := LoadIdentity(dir)
	require.NoError(t, err)

	engine := alerting.NewEngine(models.Thresholds{
		CPUPercent:  90,
		RAMPercent:  90,
		GPUPercent:  95,
		TempCelsius: 85,
	}, alertStore, nil)

	return New(p, store, engine, identity, 5*time.Second), store
}

func fullSnapshot() *provider.Snapshot {
	return &provider.Snapshot{
		CPU: &provider.CPUReading{
			UsagePercent: 40,
			Temperature:  55,
			Cores:        8,
		},
		Memory: &provider.MemoryReading{
			UsedGB:  16,
			TotalGB: 32,
		},
		Network: &provider.NetworkReading{
			RxKBps: 100,
			TxKBps: 50,
		},
		Host: &provider.HostReading{
			Hostname:      "worker-01",
			OS:            "Ubuntu 24.04",
			UptimeSeconds: 3600,
		},
	}
}

func TestCollectBuildsSample(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockProvider := provider.NewMockSnapshotProvider(ctrl)

	mockProvider.EXPECT().Snapshot(gomock.Any()).Return(fullSnapshot(), nil)

	c, _ := newTestCollector(t, mockProvider)

	sample, err := c.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, c.identity.ID(), sample.HostID)
	assert.InDelta(t, 40, sample.CPU.UsagePercent, 0.001)
	assert.Equal(t, 8, sample.CPU.Cores)
	assert.InDelta(t, 16, sample.RAM.UsedGB, 0.001)
	assert.Nil(t, sample.GPU)
	assert.InDelta(t, 100, sample.Network.RxKBps, 0.001)

	host := c.HostRecord()
	assert.Equal(t, models.HostOnline, host.Status)
	assert.Equal(t, "Ubuntu 24.04", host.OS)
	assert.Equal(t, uint64(3600), host.Uptime)
	assert.Equal(t, "worker-01", host.Hostname)
}

func TestStatusThrottledOnHotCPU(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockProvider := provider.NewMockSnapshotProvider(ctrl)

	snap := fullSnapshot()
	snap.CPU.UsagePercent = 98

	mockProvider.EXPECT().Snapshot(gomock.Any()).Return(snap, nil)

	c, _ := newTestCollector(t, mockProvider)

	_, err := c.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.HostThrottled, c.HostRecord().Status)
}

func TestStatusThrottledOnHighTemperature(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockProvider := provider.NewMockSnapshotProvider(ctrl)

	snap := fullSnapshot()
	snap.CPU.Temperature = 95

	mockProvider.EXPECT().Snapshot(gomock.Any()).Return(snap, nil)

	c, _ := newTestCollector(t, mockProvider)

	_, err := c.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.HostThrottled, c.HostRecord().Status)
}

func TestPowerEstimateDeterministic(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockProvider := provider.NewMockSnapshotProvider(ctrl)

	snap := fullSnapshot()
	snap.GPU = &provider.GPUReading{UsagePercent: 50, Temperature: 60, MemoryGB: 4}

	mockProvider.EXPECT().Snapshot(gomock.Any()).Return(snap, nil).Times(2)

	c, _ := newTestCollector(t, mockProvider)

	first, err := c.Collect(context.Background())
	require.NoError(t, err)

	second, err := c.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Power, second.Power)

	// 15 baseline + 0.4*65 CPU, 0.5*150 GPU, 0.5*10 RAM, 8 storage.
	assert.InDelta(t, 41, first.Power.CPUWatts, 0.001)
	assert.InDelta(t, 75, first.Power.GPUWatts, 0.001)
	assert.InDelta(t, 5, first.Power.RAMWatts, 0.001)
	assert.InDelta(t, 8, first.Power.StorageWatts, 0.001)
	assert.InDelta(t, 129, first.Power.TotalWatts, 0.001)
}

func TestFailedSectionFallsBackToPrevious(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockProvider := provider.NewMockSnapshotProvider(ctrl)

	degraded := fullSnapshot()
	degraded.CPU = nil

	gomock.InOrder(
		mockProvider.EXPECT().Snapshot(gomock.Any()).Return(fullSnapshot(), nil),
		mockProvider.EXPECT().Snapshot(gomock.Any()).Return(degraded, nil),
	)

	c, _ := newTestCollector(t, mockProvider)
	ctx := context.Background()

	first, err := c.Collect(ctx)
	require.NoError(t, err)

	second, err := c.Collect(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.CPU, second.CPU)
	assert.InDelta(t, 16, second.RAM.UsedGB, 0.001)
}

func TestFailedSectionZeroWithoutHistory(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockProvider := provider.NewMockSnapshotProvider(ctrl)

	degraded := fullSnapshot()
	degraded.CPU = nil

	mockProvider.EXPECT().Snapshot(gomock.Any()).Return(degraded, nil)

	c, _ := newTestCollector(t, mockProvider)

	sample, err := c.Collect(context.Background())
	require.NoError(t, err)

	assert.Zero(t, sample.CPU.UsagePercent)
	assert.Zero(t, sample.CPU.Cores)
}

func TestCollectTotalFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockProvider := provider.NewMockSnapshotProvider(ctrl)

	mockProvider.EXPECT().Snapshot(gomock.Any()).Return(nil, provider.ErrSnapshotUnavailable)

	c, _ := newTestCollector(t, mockProvider)

	_, err := c.Collect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCollectionFailed))
	assert.Nil(t, c.LastSample())
}

func TestTickAppendsToStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockProvider := provider.NewMockSnapshotProvider(ctrl)

	mockProvider.EXPECT().Snapshot(gomock.Any()).Return(fullSnapshot(), nil)

	c, store := newTestCollector(t, mockProvider)

	require.NoError(t, c.Tick(context.Background()))

	samples, err := store.Query(context.Background(), c.identity.ID(), time.Time{})
	require.NoError(t, err)
	assert.Len(t, samples, 1)
}

func TestTickSkipsWhileInFlight(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockProvider := provider.NewMockSnapshotProvider(ctrl)

	release := make(chan struct{})
	started := make(chan struct{})

	mockProvider.EXPECT().Snapshot(gomock.Any()).DoAndReturn(
		func(context.Context) (*provider.Snapshot, error) {
			close(started)
			<-release

			return fullSnapshot(), nil
		})

	c, _ := newTestCollector(t, mockProvider)

	done := make(chan error, 1)

	go func() {
		done <- c.Tick(context.Background())
	}()

	<-started

	// The overlapping tick is skipped without touching the provider.
	require.NoError(t, c.Tick(context.Background()))

	close(release)
	require.NoError(t, <-done)
}

func TestHostRecordOfflineBeforeFirstSample(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockProvider := provider.NewMockSnapshotProvider(ctrl)

	c, _ := newTestCollector(t, mockProvider)

	assert.Equal(t, models.HostOffline, c.HostRecord().Status)
}

func TestIdentityPersistsAcrossLoads(t *testing.T) {
	dir := t.TempDir()

	first, err := LoadIdentity(dir)
	require.NoError(t, err)
	require.NotEmpty(t, first.ID())

	second, err := LoadIdentity(dir)
	require.NoError(t, err)
	assert.Equal(t, first.ID(), second.ID())
}
