// Package eventloop runs callbacks one at a time on a single goroutine.
//
// Transport callbacks (MQTT messages, websocket events) and timer firings
// are posted onto the loop, so the door state machines they drive never
// see concurrent calls and need no locks of their own.
//
// A timer cancelled after it expired but before its posted callback ran is
// dropped on the loop, so Cancel always wins over a racing firing.
package eventloop

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/petro31/illuminate-door/internal/automation"
)

// queueSize bounds the number of posted callbacks waiting to run.
const queueSize = 256

// ErrStopped is returned by Do once the loop has exited.
var ErrStopped = errors.New("eventloop: stopped")

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

// Loop is a serial executor with cancellable timers.
// It implements automation.Scheduler.
//
// Thread Safety: Post, Do, After and Cancel are safe for concurrent use.
// Callbacks run sequentially on the goroutine that called Run.
type Loop struct {
	queue  chan func()
	done   chan struct{}
	logger Logger

	mu      sync.Mutex
	next    automation.TimerHandle
	timers  map[automation.TimerHandle]*time.Timer
	running bool
	stopped bool
}

// New creates a loop. Nothing runs until Run is called.
func New(logger Logger) *Loop {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Loop{
		queue:  make(chan func(), queueSize),
		done:   make(chan struct{}),
		logger: logger,
		timers: make(map[automation.TimerHandle]*time.Timer),
	}
}

// Run executes posted callbacks until ctx is cancelled. Pending timers are
// stopped and queued callbacks are dropped on exit. Run may be called once.
func (l *Loop) Run(ctx context.Context) {
	l.mu.Lock()
	if l.running || l.stopped {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.mu.Unlock()

	defer l.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.queue:
			l.exec(fn)
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Post queues fn to run on the loop. It blocks while the queue is full and
// returns false if the loop has stopped. Post must not be called from a
// loop callback while the queue may be full.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}

	select {
	case l.queue <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrStopped
	}
}

// After schedules fn to run on the loop once d has elapsed.
func (l *Loop) After(d time.Duration, fn func()) automation.TimerHandle {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.next++
	h := l.next
	if l.stopped {
		return h
	}

	l.timers[h] = time.AfterFunc(d, func() {
		l.Post(func() { l.fire(h, fn) })
	})
	return h
}

// Cancel stops a timer. Unknown or already fired handles are ignored.
func (l *Loop) Cancel(h automation.TimerHandle) {
	l.mu.Lock()
	t, ok := l.timers[h]
	delete(l.timers, h)
	l.mu.Unlock()

	if ok {
		t.Stop()
	}
}

// Pending returns the number of live timers.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.timers)
}

func (l *Loop) fire(h automation.TimerHandle, fn func()) {
	l.mu.Lock()
	_, live := l.timers[h]
	delete(l.timers, h)
	l.mu.Unlock()

	if !live {
		l.logger.Debug("dropping cancelled timer", "handle", uint64(h))
		return
	}
	fn()
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event loop callback panic recovered", "panic", r)
		}
	}()
	fn()
}

func (l *Loop) shutdown() {
	l.mu.Lock()
	l.stopped = true
	for h, t := range l.timers {
		t.Stop()
		delete(l.timers, h)
	}
	l.mu.Unlock()

	close(l.done)
}
