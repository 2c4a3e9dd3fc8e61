package activity

import (
	"context"
	"time"
)

// Entry is one row of the activity log.
type Entry struct {
	// ID is a UUID assigned on insert when empty.
	ID string `json:"id"`

	// Automation is the name of the door automation that acted.
	Automation string `json:"automation"`

	// Kind is the event kind, e.g. door_opened or restored.
	Kind string `json:"kind"`

	// EntityID is the controlled entity, empty for door-level events.
	EntityID string `json:"entity_id,omitempty"`

	// State is the state involved (door state or entity state).
	State string `json:"state,omitempty"`

	// Attributes applied or captured, if any.
	Attributes map[string]any `json:"attributes,omitempty"`

	// CreatedAt is when the event happened (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// Repository stores activity entries.
//
// Implementations must be thread-safe and use UTC timestamps.
type Repository interface {
	// Record appends an entry.
	Record(ctx context.Context, entry Entry) error

	// List returns recent entries newest first. An empty automation
	// matches every automation.
	List(ctx context.Context, automation string, limit int) ([]Entry, error)

	// Prune deletes entries older than olderThan and returns how many.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}
