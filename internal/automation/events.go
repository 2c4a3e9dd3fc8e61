package automation

import "time"

// EventKind names something the door automation did.
type EventKind string

// Event kinds reported to a Recorder.
const (
	EventDoorOpened       EventKind = "door_opened"
	EventDoorClosed       EventKind = "door_closed"
	EventGated            EventKind = "gated"
	EventSnapshot         EventKind = "snapshot"
	EventActivated        EventKind = "activated"
	EventRestored         EventKind = "restored"
	EventDeactivated      EventKind = "deactivated"
	EventOverride         EventKind = "override"
	EventOverridesCleared EventKind = "overrides_cleared"
)

// Event is a single audit record emitted by a Door.
type Event struct {
	Automation string
	Kind       EventKind
	EntityID   string // empty for door-level events
	State      string
	Attributes Attributes
	Time       time.Time
}
