package metricstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/hostpulse/hostpulse/pkg/models"
)

var (
	errFailedOpenDB      = errors.New("failed to open database")
	errFailedToEnableWAL = errors.New("failed to enable WAL mode")
	errFailedToInit      = errors.New("failed to initialize schema")
	errFailedToInsert    = errors.New("failed to insert samples")
	errFailedToQuery     = errors.New("failed to query samples")
	errFailedToScan      = errors.New("failed to scan row")
	errFailedToEvict     = errors.New("failed to evict samples")
	errFailedToBeginTx   = errors.New("failed to begin transaction")
)

const (
	dbOperationTimeout = 5 * time.Second

	createTablesSQL = `
	-- Host metric time series. Rows are immutable; the only delete path is
	-- bulk retention eviction.
	CREATE TABLE IF NOT EXISTS metric_samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		host_id TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		cpu_usage REAL NOT NULL,
		cpu_temp REAL NOT NULL,
		cpu_cores INTEGER NOT NULL,
		ram_used_gb REAL NOT NULL,
		ram_total_gb REAL NOT NULL,
		ram_temp REAL,
		gpu_usage REAL,
		gpu_temp REAL,
		gpu_memory_gb REAL,
		power_total REAL NOT NULL,
		power_cpu REAL NOT NULL,
		power_gpu REAL NOT NULL,
		power_ram REAL NOT NULL,
		power_storage REAL NOT NULL,
		net_rx_kbps REAL NOT NULL,
		net_tx_kbps REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_metric_samples_host_time
		ON metric_samples(host_id, timestamp);

	PRAGMA journal_mode=WAL;
	`

	insertSampleSQL = `
        INSERT INTO metric_samples (
            host_id, timestamp,
            cpu_usage, cpu_temp, cpu_cores,
            ram_used_gb, ram_total_gb, ram_temp,
            gpu_usage, gpu_temp, gpu_memory_gb,
            power_total, power_cpu, power_gpu, power_ram, power_storage,
            net_rx_kbps, net_tx_kbps
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `

	selectSampleColumns = `
        SELECT host_id, timestamp,
               cpu_usage, cpu_temp, cpu_cores,
               ram_used_gb, ram_total_gb, ram_temp,
               gpu_usage, gpu_temp, gpu_memory_gb,
               power_total, power_cpu, power_gpu, power_ram, power_storage,
               net_rx_kbps, net_tx_kbps
        FROM metric_samples
    `
)

// SQLiteStore persists metric samples in SQLite behind an in-memory write
// buffer. Physical writes are batched: Append only stages a sample, and
// Flush moves the batch to disk. A hard crash between flushes loses the
// unflushed tail; that trade-off is accepted, and a flush on clean shutdown
// is guaranteed by the lifecycle.
type SQLiteStore struct {
	mu      sync.RWMutex
	db      *sql.DB
	pending []models.MetricSample
}

// New opens (or creates) the store at dbPath and enables WAL mode.
func New(dbPath string) (*SQLiteStore, error) {
	sqlDB, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedOpenDB, err)
	}

	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedToEnableWAL, err)
	}

	if _, err := sqlDB.Exec(createTablesSQL); err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedToInit, err)
	}

	return &SQLiteStore{db: sqlDB}, nil
}

func (s *SQLiteStore) Append(sample *models.MetricSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = append(s.pending, *sample)

	return nil
}

func (s *SQLiteStore) Flush(ctx context.Context) error {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, dbOperationTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.restorePending(batch)
		return fmt.Errorf("%w: %w", errFailedToBeginTx, err)
	}

	for i := range batch {
		if err := insertSample(ctx, tx, &batch[i]); err != nil {
			_ = tx.Rollback()
			s.restorePending(batch)

			return err
		}
	}

	if err := tx.Commit(); err != nil {
		s.restorePending(batch)
		return fmt.Errorf("%w: %w", errFailedToInsert, err)
	}

	return nil
}

// restorePending puts a failed batch back in front of the buffer so the next
// flush retries it.
func (s *SQLiteStore) restorePending(batch []models.MetricSample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = append(batch, s.pending...)
}

func insertSample(ctx context.Context, tx *sql.Tx, sample *models.MetricSample) error {
	var ramTemp, gpuUsage, gpuTemp, gpuMemory sql.NullFloat64

	if sample.RAM.Temperature != nil {
		ramTemp = sql.NullFloat64{Float64: *sample.RAM.Temperature, Valid: true}
	}

	if sample.GPU != nil {
		gpuUsage = sql.NullFloat64{Float64: sample.GPU.UsagePercent, Valid: true}
		gpuTemp = sql.NullFloat64{Float64: sample.GPU.Temperature, Valid: true}
		gpuMemory = sql.NullFloat64{Float64: sample.GPU.MemoryGB, Valid: true}
	}

	_, err := tx.ExecContext(ctx, insertSampleSQL,
		sample.HostID, sample.Timestamp,
		sample.CPU.UsagePercent, sample.CPU.Temperature, sample.CPU.Cores,
		sample.RAM.UsedGB, sample.RAM.TotalGB, ramTemp,
		gpuUsage, gpuTemp, gpuMemory,
		sample.Power.TotalWatts, sample.Power.CPUWatts, sample.Power.GPUWatts,
		sample.Power.RAMWatts, sample.Power.StorageWatts,
		sample.Network.RxKBps, sample.Network.TxKBps,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", errFailedToInsert, err)
	}

	return nil
}

func (s *SQLiteStore) Query(ctx context.Context, hostID string, since time.Time) ([]models.MetricSample, error) {
	ctx, cancel := context.WithTimeout(ctx, dbOperationTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		selectSampleColumns+" WHERE host_id = ? AND timestamp >= ? ORDER BY timestamp ASC",
		hostID, since)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedToQuery, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	samples := make([]models.MetricSample, 0)

	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, err
		}

		samples = append(samples, *sample)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedToQuery, err)
	}

	// Merge in the unflushed tail. Buffered samples are always newer than
	// anything on disk for the same host.
	s.mu.RLock()
	for i := range s.pending {
		p := s.pending[i]
		if p.HostID == hostID && !p.Timestamp.Before(since) {
			samples = append(samples, p)
		}
	}
	s.mu.RUnlock()

	return samples, nil
}

func (s *SQLiteStore) Latest(ctx context.Context, hostID string) (*models.MetricSample, error) {
	s.mu.RLock()
	for i := len(s.pending) - 1; i >= 0; i-- {
		if s.pending[i].HostID == hostID {
			sample := s.pending[i]
			s.mu.RUnlock()

			return &sample, nil
		}
	}
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, dbOperationTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx,
		selectSampleColumns+" WHERE host_id = ? ORDER BY timestamp DESC LIMIT 1", hostID)

	sample, err := scanSample(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	return sample, err
}

func (s *SQLiteStore) Hosts(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, dbOperationTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT host_id FROM metric_samples")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedToQuery, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	seen := make(map[string]bool)
	hosts := make([]string, 0)

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: %w", errFailedToScan, err)
		}

		seen[id] = true

		hosts = append(hosts, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedToQuery, err)
	}

	s.mu.RLock()
	for i := range s.pending {
		if !seen[s.pending[i].HostID] {
			seen[s.pending[i].HostID] = true

			hosts = append(hosts, s.pending[i].HostID)
		}
	}
	s.mu.RUnlock()

	sort.Strings(hosts)

	return hosts, nil
}

func (s *SQLiteStore) Evict(ctx context.Context, retention time.Duration) error {
	cutoff := time.Now().Add(-retention)

	ctx, cancel := context.WithTimeout(ctx, dbOperationTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM metric_samples WHERE timestamp < ?", cutoff); err != nil {
		return fmt.Errorf("%w: %w", errFailedToEvict, err)
	}

	s.mu.Lock()
	kept := s.pending[:0]

	for i := range s.pending {
		if !s.pending[i].Timestamp.Before(cutoff) {
			kept = append(kept, s.pending[i])
		}
	}

	s.pending = kept
	s.mu.Unlock()

	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSample(row scanner) (*models.MetricSample, error) {
	var (
		sample    models.MetricSample
		ramTemp   sql.NullFloat64
		gpuUsage  sql.NullFloat64
		gpuTemp   sql.NullFloat64
		gpuMemory sql.NullFloat64
	)

	err := row.Scan(
		&sample.HostID, &sample.Timestamp,
		&sample.CPU.UsagePercent, &sample.CPU.Temperature, &sample.CPU.Cores,
		&sample.RAM.UsedGB, &sample.RAM.TotalGB, &ramTemp,
		&gpuUsage, &gpuTemp, &gpuMemory,
		&sample.Power.TotalWatts, &sample.Power.CPUWatts, &sample.Power.GPUWatts,
		&sample.Power.RAMWatts, &sample.Power.StorageWatts,
		&sample.Network.RxKBps, &sample.Network.TxKBps,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("%w: %w", errFailedToScan, err)
	}

	if ramTemp.Valid {
		t := ramTemp.Float64
		sample.RAM.Temperature = &t
	}

	if gpuUsage.Valid {
		sample.GPU = &models.GPUMetrics{
			UsagePercent: gpuUsage.Float64,
			Temperature:  gpuTemp.Float64,
			MemoryGB:     gpuMemory.Float64,
		}
	}

	return &sample, nil
}
