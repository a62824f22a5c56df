package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// HistoryEntry represents a single attribute change record.
//
// Each entry stores one attribute value at the time the change was
// observed, including stale late arrivals that never became the visible
// value. This provides a local audit trail even when the time-series
// database is unavailable.
type HistoryEntry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// DeviceID is the unique identifier of the device.
	DeviceID string `json:"device_id"`

	// Component, Capability and Attribute address the changed attribute.
	Component  string `json:"component"`
	Capability string `json:"capability"`
	Attribute  string `json:"attribute"`

	// Value is the JSON-encoded attribute value.
	Value any `json:"value"`

	// Unit is the value's unit, if the cloud reported one.
	Unit string `json:"unit,omitempty"`

	// Source identifies how the change was produced (event, poll, command).
	Source string `json:"source"`

	// RecordedAt is the event's own timestamp (UTC).
	RecordedAt time.Time `json:"recorded_at"`

	// CreatedAt is the insertion timestamp (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// HistoryRecorder stores and retrieves attribute change history.
//
// Implementations must be thread-safe and use UTC timestamps.
type HistoryRecorder interface {
	// RecordAttribute records one attribute change.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - u: The update to record, including its source and timestamp
	//
	// Returns:
	//   - error: nil on success, otherwise the underlying persistence error
	RecordAttribute(ctx context.Context, u Update) error

	// GetHistory returns recent attribute change history for the device.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - deviceID: Unique device identifier
	//   - limit: Maximum entries to return (implementation may clamp bounds)
	//
	// Returns:
	//   - []HistoryEntry: Ordered newest-first history entries (may be empty)
	//   - error: nil on success, otherwise the underlying query error
	GetHistory(ctx context.Context, deviceID string, limit int) ([]HistoryEntry, error)
}

// SQLiteHistoryRecorder implements HistoryRecorder using SQLite.
//
// It stores values as JSON in the attribute_history table.
type SQLiteHistoryRecorder struct {
	db *sql.DB
}

// NewSQLiteHistoryRecorder creates a new SQLite attribute history recorder.
//
// Parameters:
//   - db: Open SQLite connection used for queries
//
// Returns:
//   - *SQLiteHistoryRecorder: Recorder instance ready for use
func NewSQLiteHistoryRecorder(db *sql.DB) *SQLiteHistoryRecorder {
	return &SQLiteHistoryRecorder{db: db}
}

// RecordAttribute inserts a new attribute history entry.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - u: The update to record, including its source and timestamp
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteHistoryRecorder) RecordAttribute(ctx context.Context, u Update) error {
	if u.DeviceID == "" || u.Capability == "" || u.Attribute == "" {
		return fmt.Errorf("%w: device id, capability and attribute are required", ErrInvalidUpdate)
	}

	valueJSON, err := json.Marshal(u.Value)
	if err != nil {
		return fmt.Errorf("marshalling value: %w", err)
	}

	recordedAt := u.Timestamp
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}

	key := u.Key()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO attribute_history
			(device_id, component, capability, attribute, value, unit, source, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.DeviceID,
		key.Component,
		string(key.Capability),
		key.Attribute,
		string(valueJSON),
		u.Unit,
		string(u.Source),
		recordedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting attribute history: %w", err)
	}

	return nil
}

// GetHistory returns recent history entries for a device, ordered newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - deviceID: Unique device identifier
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []HistoryEntry: History entries ordered by created_at DESC
//   - error: nil on success, otherwise the underlying query error
func (r *SQLiteHistoryRecorder) GetHistory(ctx context.Context, deviceID string, limit int) ([]HistoryEntry, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("%w: device id is required", ErrInvalidUpdate)
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, component, capability, attribute, value, unit, source,
			recorded_at, created_at
		 FROM attribute_history
		 WHERE device_id = ?
		 ORDER BY created_at DESC
		 LIMIT ?`,
		deviceID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying attribute history: %w", err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0, limit)
	for rows.Next() {
		var entry HistoryEntry
		var valueJSON, recordedAt, createdAt string

		if err := rows.Scan(
			&entry.ID,
			&entry.DeviceID,
			&entry.Component,
			&entry.Capability,
			&entry.Attribute,
			&valueJSON,
			&entry.Unit,
			&entry.Source,
			&recordedAt,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scanning attribute history: %w", err)
		}

		if err := json.Unmarshal([]byte(valueJSON), &entry.Value); err != nil {
			return nil, fmt.Errorf("unmarshalling value: %w", err)
		}

		entry.RecordedAt, err = parseHistoryTimestamp(recordedAt)
		if err != nil {
			return nil, err
		}
		entry.CreatedAt, err = parseHistoryTimestamp(createdAt)
		if err != nil {
			return nil, err
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating attribute history: %w", err)
	}

	return entries, nil
}

// Prune deletes history entries older than the given duration.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - olderThan: Duration to retain (entries older than now-olderThan are deleted)
//
// Returns:
//   - int64: Number of rows deleted
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteHistoryRecorder) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM attribute_history WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting attribute history: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected, nil
}

// parseHistoryTimestamp parses a timestamp stored in SQLite.
func parseHistoryTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("timestamp is empty")
	}

	timestamp, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return timestamp, nil
	}

	fallback, fallbackErr := time.Parse("2006-01-02T15:04:05Z", value)
	if fallbackErr == nil {
		return fallback, nil
	}

	return time.Time{}, fmt.Errorf("parsing timestamp: %w", err)
}
