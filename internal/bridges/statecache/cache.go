package statecache

import (
	"slices"
	"sync"

	"github.com/petro31/illuminate-door/internal/automation"
)

// Dispatcher runs callbacks on the automation's serial loop.
// Satisfied by *eventloop.Loop.
type Dispatcher interface {
	Post(fn func()) bool
}

type listener struct {
	entityID string
	match    automation.Matcher
	handler  automation.StateHandler
}

// Cache holds the last known state of every entity a host bridge has
// seen and fans state-value changes out to registered listeners.
//
// Apply is called from transport goroutines. Listener callbacks are
// posted to the Dispatcher, and a listener removed before its callback
// runs is skipped.
//
// Thread Safety: All methods are safe for concurrent use.
type Cache struct {
	mu        sync.RWMutex
	states    map[string]automation.EntityState
	listeners map[automation.ListenerHandle]listener
	next      automation.ListenerHandle

	dispatch Dispatcher
	logger   Logger
}

// New creates an empty cache. A nil dispatcher runs callbacks inline,
// on the goroutine calling Apply.
func New(dispatch Dispatcher, logger Logger) *Cache {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Cache{
		states:    make(map[string]automation.EntityState),
		listeners: make(map[automation.ListenerHandle]listener),
		dispatch:  dispatch,
		logger:    logger,
	}
}

// Listen implements automation.Listeners.
func (c *Cache) Listen(entityID string, match automation.Matcher, handler automation.StateHandler) automation.ListenerHandle {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.next++
	c.listeners[c.next] = listener{entityID: entityID, match: match, handler: handler}
	return c.next
}

// Unlisten implements automation.Listeners. Unknown handles are ignored.
func (c *Cache) Unlisten(h automation.ListenerHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.listeners, h)
}

// listenerCount returns the number of registered listeners.
func (c *Cache) listenerCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.listeners)
}

// State returns the cached state value of an entity.
func (c *Cache) State(entityID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.states[entityID]
	return st.State, ok
}

// FullState returns the cached state and a copy of the attributes.
func (c *Cache) FullState(entityID string) (automation.EntityState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.states[entityID]
	if !ok {
		return automation.EntityState{}, false
	}
	st.Attributes = st.Attributes.Clone()
	return st, true
}

// Seed records a state without notifying anyone. Used for the initial
// state dump a bridge receives on connect.
func (c *Cache) Seed(st automation.EntityState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[st.EntityID] = st
}

// Apply records a reported state and notifies listeners when the state
// value changed. The first report of an entity only seeds the cache.
// Attribute-only updates are stored silently.
func (c *Cache) Apply(st automation.EntityState) {
	c.mu.Lock()
	prev, seen := c.states[st.EntityID]
	c.states[st.EntityID] = st
	if !seen || prev.State == st.State {
		c.mu.Unlock()
		return
	}

	change := automation.StateChange{EntityID: st.EntityID, Old: prev.State, New: st.State}
	var handles []automation.ListenerHandle
	for h, l := range c.listeners {
		if l.entityID == st.EntityID {
			handles = append(handles, h)
		}
	}
	c.mu.Unlock()

	slices.Sort(handles)
	for _, h := range handles {
		c.notify(h, change)
	}
}

func (c *Cache) notify(h automation.ListenerHandle, change automation.StateChange) {
	deliver := func() {
		c.mu.RLock()
		l, ok := c.listeners[h]
		c.mu.RUnlock()
		if !ok {
			return
		}
		if l.match != nil && !l.match(change) {
			return
		}
		l.handler(change)
	}

	if c.dispatch == nil {
		deliver()
		return
	}
	if !c.dispatch.Post(deliver) {
		c.logger.Warn("dropped state change, loop not accepting work",
			"entity_id", change.EntityID,
			"old", change.Old,
			"new", change.New,
		)
	}
}
