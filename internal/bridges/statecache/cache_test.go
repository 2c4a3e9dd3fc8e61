package statecache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petro31/illuminate-door/internal/automation"
)

// queueDispatcher collects posted callbacks so tests control when they run.
type queueDispatcher struct {
	queued []func()
	refuse bool
}

func (q *queueDispatcher) Post(fn func()) bool {
	if q.refuse {
		return false
	}
	q.queued = append(q.queued, fn)
	return true
}

func (q *queueDispatcher) drain() {
	for len(q.queued) > 0 {
		fn := q.queued[0]
		q.queued = q.queued[1:]
		fn()
	}
}

func state(id, value string) automation.EntityState {
	return automation.EntityState{EntityID: id, State: value}
}

func TestApply_FirstSightSeedsWithoutNotify(t *testing.T) {
	c := New(nil, nil)
	var got []automation.StateChange
	c.Listen("light.hall", nil, func(ch automation.StateChange) { got = append(got, ch) })

	c.Apply(state("light.hall", "off"))

	assert.Empty(t, got)
	v, ok := c.State("light.hall")
	require.True(t, ok)
	assert.Equal(t, "off", v)
}

func TestApply_NotifiesOnStateChange(t *testing.T) {
	c := New(nil, nil)
	c.Seed(state("light.hall", "off"))

	var got []automation.StateChange
	c.Listen("light.hall", nil, func(ch automation.StateChange) { got = append(got, ch) })
	c.Listen("light.other", nil, func(automation.StateChange) { t.Fatal("wrong entity notified") })

	c.Apply(state("light.hall", "on"))

	require.Len(t, got, 1)
	assert.Equal(t, automation.StateChange{EntityID: "light.hall", Old: "off", New: "on"}, got[0])
}

func TestApply_AttributeOnlyUpdateIsSilent(t *testing.T) {
	c := New(nil, nil)
	c.Seed(automation.EntityState{EntityID: "light.hall", State: "on", Attributes: automation.Attributes{"brightness": 10}})

	calls := 0
	c.Listen("light.hall", nil, func(automation.StateChange) { calls++ })

	c.Apply(automation.EntityState{EntityID: "light.hall", State: "on", Attributes: automation.Attributes{"brightness": 200}})

	assert.Zero(t, calls)
	full, ok := c.FullState("light.hall")
	require.True(t, ok)
	assert.Equal(t, 200, full.Attributes["brightness"])
}

func TestApply_MatcherFilters(t *testing.T) {
	c := New(nil, nil)
	c.Seed(state("light.hall", "on"))

	var got []string
	c.Listen("light.hall", automation.NewStateIs("off"), func(ch automation.StateChange) { got = append(got, ch.New) })

	c.Apply(state("light.hall", "unavailable"))
	c.Apply(state("light.hall", "off"))
	c.Apply(state("light.hall", "on"))

	assert.Equal(t, []string{"off"}, got)
}

func TestApply_PostsToDispatcherInOrder(t *testing.T) {
	q := &queueDispatcher{}
	c := New(q, nil)
	c.Seed(state("binary_sensor.door", "off"))

	var order []string
	c.Listen("binary_sensor.door", nil, func(ch automation.StateChange) { order = append(order, "first:"+ch.New) })
	c.Listen("binary_sensor.door", nil, func(ch automation.StateChange) { order = append(order, "second:"+ch.New) })

	c.Apply(state("binary_sensor.door", "on"))
	c.Apply(state("binary_sensor.door", "off"))
	assert.Empty(t, order, "callbacks wait for the loop")

	q.drain()
	assert.Equal(t, []string{"first:on", "second:on", "first:off", "second:off"}, order)
}

func TestApply_UnlistenBeforeDeliverySkips(t *testing.T) {
	q := &queueDispatcher{}
	c := New(q, nil)
	c.Seed(state("light.hall", "on"))

	calls := 0
	h := c.Listen("light.hall", nil, func(automation.StateChange) { calls++ })

	c.Apply(state("light.hall", "off"))
	c.Unlisten(h)
	q.drain()

	assert.Zero(t, calls)
	assert.Zero(t, c.listenerCount())
}

func TestApply_RefusedPostIsDropped(t *testing.T) {
	q := &queueDispatcher{refuse: true}
	c := New(q, nil)
	c.Seed(state("light.hall", "on"))

	calls := 0
	c.Listen("light.hall", nil, func(automation.StateChange) { calls++ })

	assert.NotPanics(t, func() { c.Apply(state("light.hall", "off")) })
	assert.Zero(t, calls)

	v, _ := c.State("light.hall")
	assert.Equal(t, "off", v, "state is still recorded")
}

func TestFullState_ReturnsCopy(t *testing.T) {
	c := New(nil, nil)
	c.Seed(automation.EntityState{EntityID: "light.hall", State: "on", Attributes: automation.Attributes{"brightness": 10}})

	full, ok := c.FullState("light.hall")
	require.True(t, ok)
	full.Attributes["brightness"] = 99

	again, _ := c.FullState("light.hall")
	assert.Equal(t, 10, again.Attributes["brightness"])
}

func TestState_Unknown(t *testing.T) {
	c := New(nil, nil)

	_, ok := c.State("light.nowhere")
	assert.False(t, ok)
	_, ok = c.FullState("light.nowhere")
	assert.False(t, ok)
}

func TestUnlisten_UnknownHandle(t *testing.T) {
	c := New(nil, nil)
	assert.NotPanics(t, func() { c.Unlisten(42) })
}

func TestCache_ImplementsListeners(t *testing.T) {
	var _ automation.Listeners = New(nil, nil)
}
