package alerting

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/hostpulse/hostpulse/pkg/models"
)

var (
	errFailedOpenDB   = errors.New("failed to open database")
	errFailedToInit   = errors.New("failed to initialize schema")
	errFailedToInsert = errors.New("failed to insert alert")
	errFailedToQuery  = errors.New("failed to query alerts")
	errFailedToScan   = errors.New("failed to scan alert row")
	errFailedToEvict  = errors.New("failed to evict alerts")
)

const (
	dbOperationTimeout = 5 * time.Second

	defaultQueryLimit = 50
	maxQueryLimit     = 500

	createAlertsSQL = `
	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		timestamp TIMESTAMP NOT NULL,
		host_id TEXT NOT NULL,
		host_name TEXT NOT NULL,
		subject TEXT NOT NULL,
		message TEXT NOT NULL,
		kind TEXT NOT NULL,
		severity TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_alerts_host_time
		ON alerts(host_id, timestamp);

	PRAGMA journal_mode=WAL;
	`
)

// SQLiteAlertStore is the persisted audit log of emitted alerts.
type SQLiteAlertStore struct {
	db *sql.DB
}

// NewStore opens (or creates) the alert log at dbPath. The metric store and
// alert store may share one database file; WAL mode handles the concurrent
// handles.
func NewStore(dbPath string) (*SQLiteAlertStore, error) {
	sqlDB, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedOpenDB, err)
	}

	if _, err := sqlDB.Exec(createAlertsSQL); err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedToInit, err)
	}

	return &SQLiteAlertStore{db: sqlDB}, nil
}

func (s *SQLiteAlertStore) Record(ctx context.Context, alert *models.Alert) error {
	ctx, cancel := context.WithTimeout(ctx, dbOperationTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO alerts (id, timestamp, host_id, host_name, subject, message, kind, severity)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `,
		alert.ID, alert.Timestamp, alert.HostID, alert.HostName,
		alert.Subject, alert.Message, string(alert.Kind), string(alert.Severity))
	if err != nil {
		return fmt.Errorf("%w: %w", errFailedToInsert, err)
	}

	return nil
}

func (s *SQLiteAlertStore) Query(ctx context.Context, hostID string, limit int) ([]models.Alert, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	if limit > maxQueryLimit {
		limit = maxQueryLimit
	}

	query := `
        SELECT id, timestamp, host_id, host_name, subject, message, kind, severity
        FROM alerts
    `
	args := make([]interface{}, 0, 2)

	if hostID != "" {
		query += " WHERE host_id = ?"
		args = append(args, hostID)
	}

	query += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	ctx, cancel := context.WithTimeout(ctx, dbOperationTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedToQuery, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	alerts := make([]models.Alert, 0, limit)

	for rows.Next() {
		var (
			alert          models.Alert
			kind, severity string
		)

		err := rows.Scan(&alert.ID, &alert.Timestamp, &alert.HostID, &alert.HostName,
			&alert.Subject, &alert.Message, &kind, &severity)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errFailedToScan, err)
		}

		alert.Kind = models.AlertKind(kind)
		alert.Severity = models.Severity(severity)

		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedToQuery, err)
	}

	return alerts, nil
}

func (s *SQLiteAlertStore) Count(ctx context.Context, hostID string) (int, error) {
	query := "SELECT COUNT(*) FROM alerts"
	args := make([]interface{}, 0, 1)

	if hostID != "" {
		query += " WHERE host_id = ?"
		args = append(args, hostID)
	}

	ctx, cancel := context.WithTimeout(ctx, dbOperationTimeout)
	defer cancel()

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: %w", errFailedToQuery, err)
	}

	return count, nil
}

func (s *SQLiteAlertStore) Evict(ctx context.Context, retention time.Duration) error {
	cutoff := time.Now().Add(-retention)

	ctx, cancel := context.WithTimeout(ctx, dbOperationTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM alerts WHERE timestamp < ?", cutoff); err != nil {
		return fmt.Errorf("%w: %w", errFailedToEvict, err)
	}

	return nil
}

func (s *SQLiteAlertStore) Close() error {
	return s.db.Close()
}
