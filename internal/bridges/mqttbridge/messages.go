package mqttbridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/petro31/illuminate-door/internal/automation"
)

// Commands published to device command topics.
const (
	CommandTurnOn  = "turn_on"
	CommandTurnOff = "turn_off"
)

// commandSource identifies this service in published commands.
const commandSource = "illuminate-door"

// CommandMessage is published to {prefix}/device/{entity_id}/set.
type CommandMessage struct {
	// ID uniquely identifies this command for correlation by the device side.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC).
	Timestamp time.Time `json:"timestamp"`

	// EntityID is the target entity.
	EntityID string `json:"entity_id"`

	// Command is CommandTurnOn or CommandTurnOff.
	Command string `json:"command"`

	// Attributes are applied with turn_on, e.g. brightness or rgb_color.
	Attributes map[string]any `json:"attributes,omitempty"`

	// Source indicates where the command originated.
	Source string `json:"source"`
}

// StateMessage is the retained payload on {prefix}/device/{entity_id}/state.
// Devices that only publish a bare value ("on", "off") are accepted too.
type StateMessage struct {
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// EventMessage is published to {prefix}/illuminate-door/{automation}/event.
type EventMessage struct {
	Automation string         `json:"automation"`
	Kind       string         `json:"kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	State      string         `json:"state,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// parseState decodes a device state payload.
func parseState(entityID string, payload []byte) (automation.EntityState, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return automation.EntityState{}, fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}

	if trimmed[0] != '{' {
		return automation.EntityState{EntityID: entityID, State: string(trimmed)}, nil
	}

	var msg StateMessage
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return automation.EntityState{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if msg.State == "" {
		return automation.EntityState{}, fmt.Errorf("%w: missing state", ErrInvalidPayload)
	}

	return automation.EntityState{
		EntityID:   entityID,
		State:      msg.State,
		Attributes: automation.Attributes(msg.Attributes),
	}, nil
}
