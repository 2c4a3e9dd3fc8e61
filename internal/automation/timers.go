package automation

import "time"

// TimerRegistry keeps at most one pending timer per key.
//
// Arming a key cancels the timer already held under it, and a callback
// only runs if its handle is still the one registered for its key, so a
// replaced timer can never fire.
type TimerRegistry struct {
	sched  Scheduler
	timers map[string]TimerHandle
}

// NewTimerRegistry creates a registry scheduling through sched.
func NewTimerRegistry(sched Scheduler) *TimerRegistry {
	return &TimerRegistry{
		sched:  sched,
		timers: make(map[string]TimerHandle),
	}
}

// Arm schedules fn to run after d under key, replacing any pending timer.
func (r *TimerRegistry) Arm(key string, d time.Duration, fn func()) {
	r.Cancel(key)

	var h TimerHandle
	h = r.sched.After(d, func() {
		if cur, ok := r.timers[key]; !ok || cur != h {
			return
		}
		delete(r.timers, key)
		fn()
	})
	r.timers[key] = h
}

// Cancel stops the timer under key. Unknown keys are ignored.
func (r *TimerRegistry) Cancel(key string) {
	h, ok := r.timers[key]
	if !ok {
		return
	}
	delete(r.timers, key)
	r.sched.Cancel(h)
}

// Pending reports whether a timer is armed under key.
func (r *TimerRegistry) Pending(key string) bool {
	_, ok := r.timers[key]
	return ok
}

// CancelAll stops every pending timer.
func (r *TimerRegistry) CancelAll() {
	for key := range r.timers {
		r.Cancel(key)
	}
}

// Len returns the number of pending timers.
func (r *TimerRegistry) Len() int {
	return len(r.timers)
}

// ListenerRegistry keeps at most one state listener per key.
type ListenerRegistry struct {
	src     Listeners
	handles map[string]ListenerHandle
}

// NewListenerRegistry creates a registry subscribing through src.
func NewListenerRegistry(src Listeners) *ListenerRegistry {
	return &ListenerRegistry{
		src:     src,
		handles: make(map[string]ListenerHandle),
	}
}

// Listen registers handler for entityID under key, replacing any listener
// already held under key.
func (r *ListenerRegistry) Listen(key, entityID string, match Matcher, handler StateHandler) {
	r.Cancel(key)
	r.handles[key] = r.src.Listen(entityID, match, handler)
}

// Cancel removes the listener under key. Unknown keys are ignored.
func (r *ListenerRegistry) Cancel(key string) {
	h, ok := r.handles[key]
	if !ok {
		return
	}
	delete(r.handles, key)
	r.src.Unlisten(h)
}

// active reports whether a listener is registered under key.
func (r *ListenerRegistry) active(key string) bool {
	_, ok := r.handles[key]
	return ok
}

// CancelAll removes every listener.
func (r *ListenerRegistry) CancelAll() {
	for key := range r.handles {
		r.Cancel(key)
	}
}
