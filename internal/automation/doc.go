// Package automation implements the door-triggered lighting automation.
//
// When a door sensor opens, the configured lights and switches are turned
// on. When it closes, each of them is scheduled to return to the state it
// had before the door opened, unless somebody switches it off by hand
// first.
//
// Architecture:
//
//	┌─────────────────────────────────────────────────────────┐
//	│                     Door (door.go)                      │
//	│  classifies sensor values, drives the components below  │
//	│  ┌───────────────┐ ┌───────────────┐ ┌───────────────┐  │
//	│  │ SnapshotStore │ │ TimerRegistry │ │OverrideTracker│  │
//	│  │ (snapshot.go) │ │  (timers.go)  │ │ (overrides.go)│  │
//	│  └───────────────┘ └───────────────┘ └───────────────┘  │
//	│          │                 │                            │
//	│          ▼                 ▼                            │
//	│   Actuator / Listeners / Scheduler / Gate  (host.go)    │
//	└─────────────────────────────────────────────────────────┘
//
// # Key Types
//
//   - Door: the state machine for one sensor and its controlled entities
//   - SnapshotStore: prior state of each auto-activated entity, read once
//   - TimerRegistry: one pending timer per key with replace semantics
//   - ListenerRegistry: one state listener per key with replace semantics
//   - OverrideTracker: entities a user switched off by hand
//
// # Thread Safety
//
// Nothing in this package locks. All methods must be called from a single
// goroutine; the host (see internal/eventloop) serialises transport
// callbacks and timer firings onto one loop before they reach a Door.
//
// # Usage
//
//	door, err := automation.NewDoor(automation.Options{
//	    Name:         "front-door",
//	    Sensor:       "binary_sensor.front_door",
//	    Entities:     entities,
//	    RestoreAfter: 2 * time.Minute,
//	}, automation.Host{
//	    Listeners: bridge,
//	    Actuator:  bridge,
//	    Scheduler: loop,
//	}, log)
//	if err != nil {
//	    return err
//	}
//	door.Initialize(ctx)
//	defer door.Terminate()
package automation
