package automation

import (
	"context"
	"time"
)

// StateChange describes one observed change of an entity's state value.
type StateChange struct {
	EntityID string
	Old      string
	New      string
}

// StateHandler receives state changes from a Listeners implementation.
type StateHandler func(StateChange)

// Matcher filters state changes before they reach a handler.
// A nil Matcher accepts every change.
type Matcher func(StateChange) bool

// NewStateIs returns a Matcher accepting changes whose new value is state.
func NewStateIs(state string) Matcher {
	return func(c StateChange) bool { return c.New == state }
}

// ListenerHandle identifies a registered state listener.
type ListenerHandle uint64

// TimerHandle identifies a scheduled callback.
type TimerHandle uint64

// Listeners delivers entity state changes. It serves both as the door
// sensor source and as the registry for manual-off listeners.
type Listeners interface {
	// Listen registers handler for changes of entityID accepted by match.
	Listen(entityID string, match Matcher, handler StateHandler) ListenerHandle

	// Unlisten removes a listener. Unknown handles are ignored.
	Unlisten(h ListenerHandle)
}

// Actuator reads and drives controlled entities.
type Actuator interface {
	// TurnOn switches an entity on, applying attrs when non-empty.
	TurnOn(ctx context.Context, entityID string, attrs Attributes) error

	// TurnOff switches an entity off.
	TurnOff(ctx context.Context, entityID string) error

	// State returns the entity's state value, or false if unknown.
	State(entityID string) (string, bool)

	// FullState returns state and attributes, or false if unknown.
	FullState(entityID string) (EntityState, bool)
}

// Scheduler runs deferred callbacks on the same serial loop as the
// listeners. Cancel of an unknown or already fired handle is a no-op.
type Scheduler interface {
	After(d time.Duration, fn func()) TimerHandle
	Cancel(h TimerHandle)
}

// Gate suppresses door transitions while IsGated reports true,
// e.g. while the sun is up.
type Gate interface {
	IsGated() bool
}

// Recorder receives automation events for auditing and telemetry.
// Implementations must not block for long; they run on the loop.
type Recorder interface {
	Record(ctx context.Context, ev Event)
}

// Host bundles the capabilities a Door needs from its environment.
// Gate and Recorder are optional.
type Host struct {
	Listeners Listeners
	Actuator  Actuator
	Scheduler Scheduler
	Gate      Gate
	Recorder  Recorder
}

// Logger defines the logging interface used by this package.
// Compatible with logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopRecorder struct{}

func (noopRecorder) Record(context.Context, Event) {}
