package activity

import (
	"context"
	"time"

	"github.com/petro31/illuminate-door/internal/automation"
)

// recordTimeout bounds a single audit write made from the event loop.
const recordTimeout = 2 * time.Second

// Logger defines the logging interface used by this package.
// Compatible with logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder writes automation events to a Repository.
// It implements automation.Recorder; write failures are logged.
type Recorder struct {
	repo   Repository
	logger Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(repo Repository, logger Logger) *Recorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Recorder{repo: repo, logger: logger}
}

// Record implements automation.Recorder.
func (r *Recorder) Record(ctx context.Context, ev automation.Event) {
	ctx, cancel := context.WithTimeout(ctx, recordTimeout)
	defer cancel()

	if err := r.repo.Record(ctx, EntryFromEvent(ev)); err != nil {
		r.logger.Warn("failed to record activity",
			"automation", ev.Automation,
			"kind", ev.Kind,
			"error", err,
		)
	}
}

// EntryFromEvent converts an automation event to a log entry.
func EntryFromEvent(ev automation.Event) Entry {
	return Entry{
		Automation: ev.Automation,
		Kind:       string(ev.Kind),
		EntityID:   ev.EntityID,
		State:      ev.State,
		Attributes: ev.Attributes.Clone(),
		CreatedAt:  ev.Time,
	}
}

// Multi fans an event out to several recorders in order.
type Multi []automation.Recorder

// NewMulti builds a Multi, skipping nil recorders.
func NewMulti(recorders ...automation.Recorder) Multi {
	m := make(Multi, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			m = append(m, r)
		}
	}
	return m
}

// Record implements automation.Recorder.
func (m Multi) Record(ctx context.Context, ev automation.Event) {
	for _, r := range m {
		r.Record(ctx, ev)
	}
}
