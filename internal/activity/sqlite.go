package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500

	// timeFormat has a fixed width so created_at sorts as text.
	timeFormat = "2006-01-02T15:04:05.000000Z"
)

// SQLiteRepository implements Repository on the activity_log table.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a repository on a migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Record inserts an entry. ID and CreatedAt are filled in when zero.
func (r *SQLiteRepository) Record(ctx context.Context, entry Entry) error {
	if entry.Automation == "" {
		return fmt.Errorf("%w: automation is required", ErrInvalidEntry)
	}
	if entry.Kind == "" {
		return fmt.Errorf("%w: kind is required", ErrInvalidEntry)
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now()
	}
	if entry.Attributes == nil {
		entry.Attributes = map[string]any{}
	}

	attrsJSON, err := json.Marshal(entry.Attributes)
	if err != nil {
		return fmt.Errorf("marshalling attributes: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO activity_log (id, automation, kind, entity_id, state, attributes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Automation,
		entry.Kind,
		entry.EntityID,
		entry.State,
		string(attrsJSON),
		entry.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting activity: %w", err)
	}

	return nil
}

// List returns recent entries ordered newest first (default 50, max 500).
func (r *SQLiteRepository) List(ctx context.Context, automation string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, automation, kind, entity_id, state, attributes, created_at
		 FROM activity_log
		 WHERE ? = '' OR automation = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`,
		automation,
		automation,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying activity: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var entry Entry
		var attrsJSON, createdAt string

		if err := rows.Scan(&entry.ID, &entry.Automation, &entry.Kind, &entry.EntityID,
			&entry.State, &attrsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning activity: %w", err)
		}

		if err := json.Unmarshal([]byte(attrsJSON), &entry.Attributes); err != nil {
			return nil, fmt.Errorf("unmarshalling attributes: %w", err)
		}
		if len(entry.Attributes) == 0 {
			entry.Attributes = nil
		}

		entry.CreatedAt, err = time.Parse(timeFormat, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating activity: %w", err)
	}

	return entries, nil
}

// Prune deletes entries older than olderThan.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := r.now().UTC().Add(-olderThan).Format(timeFormat)
	result, err := r.db.ExecContext(ctx, "DELETE FROM activity_log WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting activity: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}
