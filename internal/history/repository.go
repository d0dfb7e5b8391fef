package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-things/internal/thing"
)

// List limits.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// timeLayout has fixed width so recorded_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrInvalidQuery is returned when a lookup is missing its thing or property.
var ErrInvalidQuery = errors.New("history: thing id and property are required")

// Entry is one recorded property value.
type Entry struct {
	ID         int64     `json:"id"`
	ThingID    string    `json:"thing_id"`
	Property   string    `json:"property"`
	Value      float64   `json:"value"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Repository stores and queries property history in SQLite.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repository on an open, migrated connection.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Record inserts ev. A zero event time is recorded as now.
func (r *Repository) Record(ctx context.Context, ev thing.Event) error {
	if ev.ThingID == "" || ev.Property == "" {
		return ErrInvalidQuery
	}
	at := ev.Time
	if at.IsZero() {
		at = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO property_history (thing_id, property, value, recorded_at) VALUES (?, ?, ?, ?)",
		ev.ThingID, ev.Property, ev.Value, at.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting property history: %w", err)
	}
	return nil
}

// List returns the most recent entries for one property, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - thingID, property: The property to look up
//   - limit: Maximum entries (default 50, capped at 500)
//
// Returns:
//   - []Entry: Entries ordered by recorded_at descending, never nil
//   - error: ErrInvalidQuery or the underlying query error
func (r *Repository) List(ctx context.Context, thingID, property string, limit int) ([]Entry, error) {
	if thingID == "" || property == "" {
		return nil, ErrInvalidQuery
	}
	limit = clampLimit(limit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, thing_id, property, value, recorded_at
		 FROM property_history
		 WHERE thing_id = ? AND property = ?
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`,
		thingID, property, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying property history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var recordedAt string
		if err := rows.Scan(&e.ID, &e.ThingID, &e.Property, &e.Value, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning property history: %w", err)
		}
		if e.RecordedAt, err = time.Parse(timeLayout, recordedAt); err != nil {
			return nil, fmt.Errorf("parsing recorded_at: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating property history: %w", err)
	}
	return entries, nil
}

// Prune deletes entries recorded before now minus olderThan.
//
// Returns the number of rows deleted.
func (r *Repository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("history: prune age must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(timeLayout)
	result, err := r.db.ExecContext(ctx, "DELETE FROM property_history WHERE recorded_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting property history: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}
