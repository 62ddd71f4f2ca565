package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"upwatch/internal/models"
	"upwatch/internal/storage"
)

// SQLiteStore implements the storage.Storer interface for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore and establishes a connection to the database file.
// It also runs migrations to ensure the schema is up to date.
func New(ctx context.Context, dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", dataSourceName))
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	store := &SQLiteStore{db: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// migrate ensures the database schema is created.
func (s *SQLiteStore) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS targets (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	url        TEXT NOT NULL UNIQUE,
	group_ref  TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_targets_created_at_id ON targets (created_at, id);

CREATE TABLE IF NOT EXISTS health_records (
	target_id             TEXT PRIMARY KEY,
	status                TEXT NOT NULL,
	last_checked_at       TEXT NOT NULL,
	last_response_time_ms INTEGER,
	updated_at            TEXT NOT NULL,
	FOREIGN KEY(target_id) REFERENCES targets(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// CreateTarget saves a new target. Registering a URL that already exists
// returns the existing target along with storage.ErrDuplicateKey.
func (s *SQLiteStore) CreateTarget(ctx context.Context, target *models.Target) (*models.Target, error) {
	query := `
INSERT INTO targets (id, name, url, group_ref, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(url) DO NOTHING`
	res, err := s.db.ExecContext(ctx, query, target.ID, target.Name, target.URL, target.GroupRef, target.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to insert target: %w", err)
	}
	rowsAffected, _ := res.RowsAffected()
	if rowsAffected == 0 {
		var existing models.Target
		var createdAtStr string
		findQuery := `SELECT id, name, url, group_ref, created_at FROM targets WHERE url = ?`
		if err := s.db.QueryRowContext(ctx, findQuery, target.URL).Scan(&existing.ID, &existing.Name, &existing.URL, &existing.GroupRef, &createdAtStr); err != nil {
			return nil, fmt.Errorf("failed to retrieve existing target: %w", err)
		}
		existing.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
		return &existing, storage.ErrDuplicateKey
	}
	return target, nil
}

// GetTargetByID retrieves a single target by its unique ID.
func (s *SQLiteStore) GetTargetByID(ctx context.Context, id string) (*models.Target, error) {
	query := `SELECT id, name, url, group_ref, created_at FROM targets WHERE id = ?`
	var t models.Target
	var createdAtStr string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&t.ID, &t.Name, &t.URL, &t.GroupRef, &createdAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get target by id: %w", err)
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
	return &t, nil
}

// ListTargets retrieves all registered targets.
func (s *SQLiteStore) ListTargets(ctx context.Context) ([]models.Target, error) {
	query := `SELECT id, name, url, group_ref, created_at FROM targets ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query targets: %w", err)
	}
	defer rows.Close()
	var targets []models.Target
	for rows.Next() {
		var t models.Target
		var createdAtStr string
		if err := rows.Scan(&t.ID, &t.Name, &t.URL, &t.GroupRef, &createdAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan target row: %w", err)
		}
		t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// DeleteTarget removes a target; its health record is removed by cascade.
func (s *SQLiteStore) DeleteTarget(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM targets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete target: %w", err)
	}
	rowsAffected, _ := res.RowsAffected()
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// UpsertHealth writes the health record for a target, keyed by target id.
// Repeated writes for the same target replace the previous row.
func (s *SQLiteStore) UpsertHealth(ctx context.Context, record *models.HealthRecord) error {
	query := `
INSERT INTO health_records (target_id, status, last_checked_at, last_response_time_ms, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(target_id) DO UPDATE SET
	status = excluded.status,
	last_checked_at = excluded.last_checked_at,
	last_response_time_ms = excluded.last_response_time_ms,
	updated_at = excluded.updated_at`
	_, err := s.db.ExecContext(ctx, query,
		record.TargetID,
		string(record.Status),
		record.LastCheckedAt.Format(time.RFC3339Nano),
		record.LastResponseTimeMS,
		record.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert health record: %w", err)
	}
	return nil
}

// GetHealth retrieves the health record for a target.
func (s *SQLiteStore) GetHealth(ctx context.Context, targetID string) (*models.HealthRecord, error) {
	query := `SELECT target_id, status, last_checked_at, last_response_time_ms, updated_at FROM health_records WHERE target_id = ?`
	var r models.HealthRecord
	var statusStr, checkedAtStr, updatedAtStr string
	err := s.db.QueryRowContext(ctx, query, targetID).Scan(&r.TargetID, &statusStr, &checkedAtStr, &r.LastResponseTimeMS, &updatedAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get health record: %w", err)
	}
	r.Status = models.Status(statusStr)
	r.LastCheckedAt, _ = time.Parse(time.RFC3339Nano, checkedAtStr)
	r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAtStr)
	return &r, nil
}

// ListHealth retrieves the health records of all targets.
func (s *SQLiteStore) ListHealth(ctx context.Context) ([]models.HealthRecord, error) {
	query := `SELECT target_id, status, last_checked_at, last_response_time_ms, updated_at FROM health_records ORDER BY target_id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query health records: %w", err)
	}
	defer rows.Close()
	var records []models.HealthRecord
	for rows.Next() {
		var r models.HealthRecord
		var statusStr, checkedAtStr, updatedAtStr string
		if err := rows.Scan(&r.TargetID, &statusStr, &checkedAtStr, &r.LastResponseTimeMS, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan health record row: %w", err)
		}
		r.Status = models.Status(statusStr)
		r.LastCheckedAt, _ = time.Parse(time.RFC3339Nano, checkedAtStr)
		r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAtStr)
		records = append(records, r)
	}
	return records, rows.Err()
}

const (
	settingMonitoringEnabled = "monitoring_enabled"
	settingIntervalMinutes   = "monitoring_interval_minutes"
	settingSessionToken      = "session_token"
)

// GetSettings loads the persisted engine settings. Missing keys fall back
// to zero values so a fresh database reads as "monitoring off, logged out".
func (s *SQLiteStore) GetSettings(ctx context.Context) (*storage.Settings, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	settings := &storage.Settings{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan settings row: %w", err)
		}
		switch key {
		case settingMonitoringEnabled:
			settings.MonitoringEnabled = value == "true"
		case settingIntervalMinutes:
			settings.IntervalMinutes, _ = strconv.Atoi(value)
		case settingSessionToken:
			settings.SessionToken = value
		}
	}
	return settings, rows.Err()
}

// SetMonitoring persists the desired monitoring schedule.
func (s *SQLiteStore) SetMonitoring(ctx context.Context, enabled bool, intervalMinutes int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	enabledStr := "false"
	if enabled {
		enabledStr = "true"
	}
	if err := setSettingTx(ctx, tx, settingMonitoringEnabled, enabledStr); err != nil {
		return err
	}
	if err := setSettingTx(ctx, tx, settingIntervalMinutes, strconv.Itoa(intervalMinutes)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SetSessionToken persists the stored credential. An empty token clears it.
func (s *SQLiteStore) SetSessionToken(ctx context.Context, token string) error {
	query := `INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := s.db.ExecContext(ctx, query, settingSessionToken, token); err != nil {
		return fmt.Errorf("failed to persist session token: %w", err)
	}
	return nil
}

func setSettingTx(ctx context.Context, tx *sql.Tx, key, value string) error {
	query := `INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := tx.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to persist setting %s: %w", key, err)
	}
	return nil
}
