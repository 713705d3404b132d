package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 200
)

// SQLiteRecorder implements Recorder using SQLite.
//
// Entries live in the switch_events table created by the schema
// migrations. The created_at column is assigned by the database so all
// rows share a single clock.
type SQLiteRecorder struct {
	db *sql.DB
}

// NewSQLiteRecorder creates a new SQLite journal recorder.
//
// Parameters:
//   - db: Open SQLite connection used for queries
//
// Returns:
//   - *SQLiteRecorder: Recorder instance ready for use
func NewSQLiteRecorder(db *sql.DB) *SQLiteRecorder {
	return &SQLiteRecorder{db: db}
}

// Record inserts a new switch event row.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - entry: Event to persist (ID and CreatedAt are ignored)
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteRecorder) Record(ctx context.Context, entry Entry) error {
	if entry.DeviceID == "" {
		return fmt.Errorf("device id is required")
	}
	if !validDirection(entry.Direction) {
		return fmt.Errorf("invalid direction %q", entry.Direction)
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO switch_events (device_id, direction, status, outcome) VALUES (?, ?, ?, ?)",
		entry.DeviceID,
		entry.Direction,
		entry.Status,
		entry.Outcome,
	)
	if err != nil {
		return fmt.Errorf("inserting switch event: %w", err)
	}

	return nil
}

// Recent returns recent switch events for a device, ordered newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - deviceID: Unique device identifier
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []Entry: Journal entries ordered by created_at DESC
//   - error: nil on success, otherwise the underlying query error
func (r *SQLiteRecorder) Recent(ctx context.Context, deviceID string, limit int) ([]Entry, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, direction, status, outcome, created_at
		 FROM switch_events
		 WHERE device_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		deviceID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying switch events: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var entry Entry
		var createdAt string

		if err := rows.Scan(&entry.ID, &entry.DeviceID, &entry.Direction, &entry.Status, &entry.Outcome, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning switch event: %w", err)
		}

		// Parse timestamp - ignore error as format is controlled by the schema
		entry.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating switch events: %w", err)
	}

	return entries, nil
}

// PruneBefore deletes journal entries created before the cutoff.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - cutoff: Entries created before this instant are deleted
//
// Returns:
//   - int64: Number of rows deleted
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteRecorder) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if cutoff.IsZero() {
		return 0, fmt.Errorf("cutoff is required")
	}

	result, err := r.db.ExecContext(ctx,
		"DELETE FROM switch_events WHERE created_at < ?",
		cutoff.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting switch events: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected, nil
}

// validDirection reports whether the direction is one of the known values.
func validDirection(direction string) bool {
	switch direction {
	case DirectionSense, DirectionAct, DirectionApply:
		return true
	default:
		return false
	}
}
