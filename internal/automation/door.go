package automation

import (
	"context"
	"fmt"
	"time"
)

// overrideClearKey is the TimerRegistry key of the bulk override clear.
// Entity ids never start with "@".
const overrideClearKey = "@override_clear"

// commandTimeout bounds a single actuator call.
const commandTimeout = 10 * time.Second

// TraceLevel selects the level routine automation messages are logged at.
type TraceLevel string

// Trace levels.
const (
	TraceDebug TraceLevel = "debug"
	TraceInfo  TraceLevel = "info"
)

// Options configures a Door.
type Options struct {
	// Name identifies the automation in logs and recorded events.
	Name string

	// Sensor is the door sensor entity id.
	Sensor string

	// Entities are turned on when the door opens.
	Entities []ControlledEntity

	// RestoreAfter is how long after the door closes each entity is restored.
	RestoreAfter time.Duration

	// ClearOverridesAfter is how long after the door closes the override
	// set is emptied. Zero means RestoreAfter.
	ClearOverridesAfter time.Duration

	// AttributeTolerance is the largest numeric difference still treated
	// as a matching attribute value.
	AttributeTolerance float64

	// Trace is the level for routine messages. Empty means TraceDebug.
	Trace TraceLevel
}

// Door is the state machine for one door sensor.
//
// Thread Safety: not safe for concurrent use. All calls, including the
// listener and timer callbacks it registers, must run on one goroutine.
type Door struct {
	opts   Options
	host   Host
	logger Logger

	snapshots *SnapshotStore
	timers    *TimerRegistry
	listeners *ListenerRegistry
	overrides *OverrideTracker

	// open is the last recognised sensor position, gated or not.
	open bool

	ctx context.Context
}

// NewDoor validates opts and builds a Door. Nothing is subscribed until
// Initialize is called.
func NewDoor(opts Options, host Host, logger Logger) (*Door, error) {
	if err := validateOptions(&opts); err != nil {
		return nil, err
	}
	if host.Listeners == nil || host.Actuator == nil || host.Scheduler == nil {
		return nil, ErrMissingHost
	}
	if host.Recorder == nil {
		host.Recorder = noopRecorder{}
	}
	if logger == nil {
		logger = noopLogger{}
	}

	return &Door{
		opts:      opts,
		host:      host,
		logger:    logger,
		snapshots: NewSnapshotStore(host.Actuator, logger),
		timers:    NewTimerRegistry(host.Scheduler),
		listeners: NewListenerRegistry(host.Listeners),
		overrides: NewOverrideTracker(),
		ctx:       context.Background(),
	}, nil
}

func validateOptions(opts *Options) error {
	if opts.Sensor == "" {
		return ErrNoSensor
	}
	if len(opts.Entities) == 0 {
		return ErrNoEntities
	}
	seen := make(map[string]bool, len(opts.Entities))
	for _, e := range opts.Entities {
		switch {
		case e.EntityID == "":
			return fmt.Errorf("%w: empty entity id", ErrInvalidEntity)
		case e.EntityID == opts.Sensor:
			return fmt.Errorf("%w: %q is the door sensor", ErrInvalidEntity, e.EntityID)
		case seen[e.EntityID]:
			return fmt.Errorf("%w: %q listed twice", ErrInvalidEntity, e.EntityID)
		}
		seen[e.EntityID] = true
	}
	if opts.RestoreAfter <= 0 || opts.ClearOverridesAfter < 0 {
		return ErrInvalidDuration
	}
	if opts.ClearOverridesAfter == 0 {
		opts.ClearOverridesAfter = opts.RestoreAfter
	}
	if opts.AttributeTolerance < 0 {
		opts.AttributeTolerance = 0
	}
	if opts.Name == "" {
		opts.Name = opts.Sensor
	}
	if opts.Trace == "" {
		opts.Trace = TraceDebug
	}
	return nil
}

// Name returns the automation name.
func (d *Door) Name() string {
	return d.opts.Name
}

// Sensor returns the door sensor entity id.
func (d *Door) Sensor() string {
	return d.opts.Sensor
}

// Initialize subscribes to the door sensor. ctx bounds actuator calls
// made by later transitions.
func (d *Door) Initialize(ctx context.Context) {
	d.ctx = ctx
	d.listeners.Listen(d.opts.Sensor, d.opts.Sensor, nil, d.trackDoor)
	d.logger.Info("door automation initialised",
		"sensor", d.opts.Sensor,
		"entities", len(d.opts.Entities),
		"restore_after", d.opts.RestoreAfter,
		"clear_overrides_after", d.opts.ClearOverridesAfter,
	)
}

// Terminate cancels every live timer and listener, the sensor included.
func (d *Door) Terminate() {
	d.listeners.CancelAll()
	d.timers.CancelAll()
	d.logger.Info("door automation terminated")
}

// Overridden returns the entities currently exempt from automatic restore.
func (d *Door) Overridden() []string {
	return d.overrides.List()
}

func (d *Door) trackDoor(change StateChange) {
	state := ClassifyDoor(change.New)
	if state == DoorUnknown {
		d.trace("ignoring unrecognised sensor value", "old", change.Old, "new", change.New)
		return
	}
	d.open = state == DoorOpen

	if d.host.Gate != nil && d.host.Gate.IsGated() {
		d.trace("door transition suppressed by gate", "door", state.String())
		d.record(Event{Kind: EventGated, State: state.String()})
		return
	}

	switch state {
	case DoorOpen:
		d.doorOpened()
	case DoorClosed:
		d.doorClosed()
	}
}

func (d *Door) doorOpened() {
	d.trace("door opened", "sensor", d.opts.Sensor)
	d.record(Event{Kind: EventDoorOpened, State: DoorOpen.String()})

	for _, e := range d.opts.Entities {
		if d.overrides.IsMarked(e.EntityID) {
			d.trace("entity overridden, skipping", "entity_id", e.EntityID)
			continue
		}

		// Reopened before the restore fired.
		d.cancelTimer(e.EntityID)
		d.turnOnIfOff(e)
		d.listenForOverride(e.EntityID)
	}

	// A reopen resets the clock on any pending amnesty.
	d.cancelTimer(overrideClearKey)
}

func (d *Door) doorClosed() {
	d.trace("door closed", "sensor", d.opts.Sensor)
	d.record(Event{Kind: EventDoorClosed, State: DoorClosed.String()})

	for _, e := range d.opts.Entities {
		if d.overrides.IsMarked(e.EntityID) {
			d.trace("entity overridden, no restore", "entity_id", e.EntityID)
			d.listeners.Cancel(e.EntityID)
			continue
		}
		id := e.EntityID
		d.trace("starting restore timer", "entity_id", id, "after", d.opts.RestoreAfter)
		d.timers.Arm(id, d.opts.RestoreAfter, func() { d.restoreState(id) })
	}

	d.timers.Arm(overrideClearKey, d.opts.ClearOverridesAfter, d.clearOverrides)
}

// turnOnIfOff activates the entity when it is off or its configured
// attributes differ from the current ones, snapshotting it first.
func (d *Door) turnOnIfOff(e ControlledEntity) {
	d.trace("turn on if off", "entity_id", e.EntityID, "attributes", e.Attributes.String())

	if !d.needsActivation(e) {
		return
	}

	if !d.snapshots.Has(e.EntityID) {
		if stored, ok := d.snapshots.Take(e.EntityID); ok {
			d.record(Event{Kind: EventSnapshot, EntityID: e.EntityID, State: stored.State, Attributes: stored.Attributes})
		}
	}

	d.activate(e.EntityID, e.Attributes, EventActivated)
}

func (d *Door) needsActivation(e ControlledEntity) bool {
	current, ok := d.host.Actuator.FullState(e.EntityID)
	if ok && current.State == StateOff {
		return true
	}
	if len(e.Attributes) == 0 {
		return false
	}
	return !attributesMatch(current.Attributes, e.Attributes, d.opts.AttributeTolerance)
}

func (d *Door) listenForOverride(entityID string) {
	d.trace("starting override listener", "entity_id", entityID)
	d.listeners.Listen(entityID, entityID, NewStateIs(StateOff), d.override)
}

// override handles a manual off of a controlled entity.
func (d *Door) override(change StateChange) {
	id := change.EntityID
	d.trace("manual off detected", "entity_id", id, "old", change.Old, "new", change.New)

	if !d.open {
		// Door already closed: the restore decision is made, drop it.
		d.listeners.Cancel(id)
	} else {
		// Door still open: keep the door's hands off until the bulk clear.
		d.overrides.Mark(id)
		d.record(Event{Kind: EventOverride, EntityID: id, State: change.New})
	}

	d.cancelTimer(id)
	d.snapshots.Discard(id)
}

// restoreState returns an entity to its snapshot when its timer fires.
func (d *Door) restoreState(entityID string) {
	d.listeners.Cancel(entityID)

	stored, ok := d.snapshots.Pop(entityID)
	if !ok {
		d.trace("no snapshot to restore", "entity_id", entityID)
		return
	}
	d.trace("recalling state", "snapshot", stored.String())

	switch stored.State {
	case StateOn:
		d.activate(entityID, stored.Attributes, EventRestored)
	case StateOff:
		d.deactivate(entityID)
	default:
		d.logger.Warn("snapshot has unrestorable state", "entity_id", entityID, "state", stored.State)
	}
}

func (d *Door) clearOverrides() {
	cleared := d.overrides.ClearAll()
	d.trace("clearing overrides", "overrides", cleared)
	if len(cleared) > 0 {
		d.record(Event{Kind: EventOverridesCleared})
	}
}

func (d *Door) cancelTimer(key string) {
	if d.timers.Pending(key) {
		d.trace("cancelling timer", "key", key)
		d.timers.Cancel(key)
	}
}

func (d *Door) activate(entityID string, attrs Attributes, kind EventKind) {
	ctx, cancel := context.WithTimeout(d.ctx, commandTimeout)
	defer cancel()

	if err := d.host.Actuator.TurnOn(ctx, entityID, attrs); err != nil {
		d.logger.Error("failed to turn on entity", "entity_id", entityID, "error", err)
		return
	}
	d.record(Event{Kind: kind, EntityID: entityID, State: StateOn, Attributes: attrs})
}

func (d *Door) deactivate(entityID string) {
	ctx, cancel := context.WithTimeout(d.ctx, commandTimeout)
	defer cancel()

	if err := d.host.Actuator.TurnOff(ctx, entityID); err != nil {
		d.logger.Error("failed to turn off entity", "entity_id", entityID, "error", err)
		return
	}
	d.record(Event{Kind: EventDeactivated, EntityID: entityID, State: StateOff})
}

// trace logs routine messages at the automation's configured level.
func (d *Door) trace(msg string, args ...any) {
	if d.opts.Trace == TraceInfo {
		d.logger.Info(msg, args...)
		return
	}
	d.logger.Debug(msg, args...)
}

func (d *Door) record(ev Event) {
	ev.Automation = d.opts.Name
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	d.host.Recorder.Record(d.ctx, ev)
}
