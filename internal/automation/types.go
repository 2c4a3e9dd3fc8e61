package automation

import (
	"fmt"
	"sort"
	"strings"
)

// Entity state values understood by the automation.
const (
	StateOn  = "on"
	StateOff = "off"
)

// DoorState is the semantic bucket a raw sensor value falls into.
type DoorState int

// Door states.
const (
	DoorUnknown DoorState = iota
	DoorOpen
	DoorClosed
)

// String implements fmt.Stringer.
func (s DoorState) String() string {
	switch s {
	case DoorOpen:
		return "open"
	case DoorClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ClassifyDoor maps a raw sensor value onto a door state.
//
// Contact sensors report open/closed, binary sensors and switches report
// on/off. Any other value (unavailable, unknown, "") is DoorUnknown.
func ClassifyDoor(value string) DoorState {
	switch value {
	case "open", StateOn:
		return DoorOpen
	case "closed", StateOff:
		return DoorClosed
	default:
		return DoorUnknown
	}
}

// Restorable attribute names. Only these survive into a snapshot.
const (
	AttrRGBColor   = "rgb_color"
	AttrWhiteValue = "white_value"
	AttrBrightness = "brightness"
	AttrEffect     = "effect"
)

var restorableAttributes = map[string]struct{}{
	AttrRGBColor:   {},
	AttrWhiteValue: {},
	AttrBrightness: {},
	AttrEffect:     {},
}

// Attributes is an entity attribute mapping (brightness, rgb_color, ...).
type Attributes map[string]any

// Clone returns a shallow copy. Nested values are shared.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	cpy := make(Attributes, len(a))
	for k, v := range a {
		cpy[k] = v
	}
	return cpy
}

// Restorable returns a copy of a restricted to the restorable attributes.
func (a Attributes) Restorable() Attributes {
	out := make(Attributes)
	for k, v := range a {
		if _, ok := restorableAttributes[k]; ok {
			out[k] = v
		}
	}
	return out
}

// String renders attributes with sorted keys so log lines are stable.
func (a Attributes) String() string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", k, a[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// ControlledEntity is a light or switch the door turns on.
// Attributes, when set, are applied on activation.
type ControlledEntity struct {
	EntityID   string
	Attributes Attributes
}

// EntityState is the full state of an entity as reported by the host.
type EntityState struct {
	EntityID   string
	State      string
	Attributes Attributes
}

// StoredState is a snapshot of an entity taken before auto-activation.
type StoredState struct {
	EntityID   string
	State      string
	Attributes Attributes
}

// String implements fmt.Stringer.
func (s StoredState) String() string {
	return fmt.Sprintf("{entity_id:%s, state:%s, attributes:%s}", s.EntityID, s.State, s.Attributes)
}
