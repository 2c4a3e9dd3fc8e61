package automation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// ─── Scheduler ──────────────────────────────────────────────────────────────

type fakeTimer struct {
	handle TimerHandle
	after  time.Duration
	fn     func()
}

// fakeScheduler records timers and fires them only when told to.
type fakeScheduler struct {
	next    TimerHandle
	pending map[TimerHandle]fakeTimer
	all     map[TimerHandle]fakeTimer
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{
		pending: make(map[TimerHandle]fakeTimer),
		all:     make(map[TimerHandle]fakeTimer),
	}
}

func (s *fakeScheduler) After(d time.Duration, fn func()) TimerHandle {
	s.next++
	t := fakeTimer{handle: s.next, after: d, fn: fn}
	s.pending[t.handle] = t
	s.all[t.handle] = t
	return t.handle
}

func (s *fakeScheduler) Cancel(h TimerHandle) {
	delete(s.pending, h)
}

// timers returns pending timers in scheduling order.
func (s *fakeScheduler) timers() []fakeTimer {
	out := make([]fakeTimer, 0, len(s.pending))
	for _, t := range s.pending {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].handle < out[j].handle })
	return out
}

// fireAll runs every pending timer in scheduling order.
func (s *fakeScheduler) fireAll() {
	for _, t := range s.timers() {
		if _, ok := s.pending[t.handle]; !ok {
			continue
		}
		delete(s.pending, t.handle)
		t.fn()
	}
}

// forceFire runs a timer's callback even if it was cancelled, standing in
// for a host that delivers a stale firing.
func (s *fakeScheduler) forceFire(h TimerHandle) {
	delete(s.pending, h)
	s.all[h].fn()
}

// ─── Host (Listeners + Actuator) ────────────────────────────────────────────

type fakeListener struct {
	entityID string
	match    Matcher
	handler  StateHandler
}

type actuatorCall struct {
	op       string
	entityID string
	attrs    Attributes
}

// fakeHost keeps entity states in memory. Actuator calls update state
// silently; report simulates a device or user change and notifies listeners.
type fakeHost struct {
	states    map[string]EntityState
	listeners map[ListenerHandle]fakeListener
	next      ListenerHandle
	calls     []actuatorCall
	failOn    string
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		states:    make(map[string]EntityState),
		listeners: make(map[ListenerHandle]fakeListener),
	}
}

func (h *fakeHost) Listen(entityID string, match Matcher, handler StateHandler) ListenerHandle {
	h.next++
	h.listeners[h.next] = fakeListener{entityID: entityID, match: match, handler: handler}
	return h.next
}

func (h *fakeHost) Unlisten(handle ListenerHandle) {
	delete(h.listeners, handle)
}

func (h *fakeHost) listenerCount(entityID string) int {
	n := 0
	for _, l := range h.listeners {
		if l.entityID == entityID {
			n++
		}
	}
	return n
}

func (h *fakeHost) TurnOn(_ context.Context, entityID string, attrs Attributes) error {
	h.calls = append(h.calls, actuatorCall{op: "on", entityID: entityID, attrs: attrs.Clone()})
	if entityID == h.failOn {
		return errors.New("actuator unavailable")
	}
	st := h.states[entityID]
	merged := st.Attributes.Clone()
	if merged == nil {
		merged = Attributes{}
	}
	for k, v := range attrs {
		merged[k] = v
	}
	h.states[entityID] = EntityState{EntityID: entityID, State: StateOn, Attributes: merged}
	return nil
}

func (h *fakeHost) TurnOff(_ context.Context, entityID string) error {
	h.calls = append(h.calls, actuatorCall{op: "off", entityID: entityID})
	if entityID == h.failOn {
		return errors.New("actuator unavailable")
	}
	h.states[entityID] = EntityState{EntityID: entityID, State: StateOff, Attributes: Attributes{}}
	return nil
}

func (h *fakeHost) State(entityID string) (string, bool) {
	st, ok := h.states[entityID]
	return st.State, ok
}

func (h *fakeHost) FullState(entityID string) (EntityState, bool) {
	st, ok := h.states[entityID]
	return st, ok
}

// seed sets state without notifying anyone.
func (h *fakeHost) seed(entityID, state string, attrs Attributes) {
	h.states[entityID] = EntityState{EntityID: entityID, State: state, Attributes: attrs}
}

// report sets state and notifies matching listeners, as a device report would.
func (h *fakeHost) report(entityID, state string) {
	old := h.states[entityID]
	h.states[entityID] = EntityState{EntityID: entityID, State: state, Attributes: old.Attributes}
	change := StateChange{EntityID: entityID, Old: old.State, New: state}

	handles := make([]ListenerHandle, 0, len(h.listeners))
	for handle := range h.listeners {
		handles = append(handles, handle)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })

	for _, handle := range handles {
		l, ok := h.listeners[handle]
		if !ok || l.entityID != entityID {
			continue
		}
		if l.match != nil && !l.match(change) {
			continue
		}
		l.handler(change)
	}
}

func (h *fakeHost) callsFor(entityID string) []actuatorCall {
	var out []actuatorCall
	for _, c := range h.calls {
		if c.entityID == entityID {
			out = append(out, c)
		}
	}
	return out
}

// ─── Gate / Recorder / Logger ───────────────────────────────────────────────

type fakeGate struct{ gated bool }

func (g *fakeGate) IsGated() bool { return g.gated }

type fakeRecorder struct{ events []Event }

func (r *fakeRecorder) Record(_ context.Context, ev Event) {
	r.events = append(r.events, ev)
}

func (r *fakeRecorder) kinds() []EventKind {
	out := make([]EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

type logLine struct {
	level string
	msg   string
}

type captureLogger struct{ lines []logLine }

func (l *captureLogger) log(level, msg string, args ...any) {
	l.lines = append(l.lines, logLine{level: level, msg: fmt.Sprint(append([]any{msg}, args...)...)})
}

func (l *captureLogger) Debug(msg string, args ...any) { l.log("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.log("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.log("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.log("error", msg, args...) }

func (l *captureLogger) count(level string) int {
	n := 0
	for _, line := range l.lines {
		if line.level == level {
			n++
		}
	}
	return n
}
