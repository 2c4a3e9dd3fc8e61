package homeassistant

import (
	"encoding/json"

	"github.com/petro31/illuminate-door/internal/automation"
)

// Websocket message types.
const (
	typeAuthRequired    = "auth_required"
	typeAuth            = "auth"
	typeAuthOK          = "auth_ok"
	typeAuthInvalid     = "auth_invalid"
	typeResult          = "result"
	typeEvent           = "event"
	typePing            = "ping"
	typePong            = "pong"
	typeGetStates       = "get_states"
	typeSubscribeEvents = "subscribe_events"
	typeCallService     = "call_service"

	eventStateChanged = "state_changed"
)

// authMessage is sent in reply to auth_required.
type authMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token"`
}

// request is the envelope of every command after authentication.
type request struct {
	ID          int64          `json:"id"`
	Type        string         `json:"type"`
	EventType   string         `json:"event_type,omitempty"`
	Domain      string         `json:"domain,omitempty"`
	Service     string         `json:"service,omitempty"`
	ServiceData map[string]any `json:"service_data,omitempty"`
	Target      *target        `json:"target,omitempty"`
}

type target struct {
	EntityID string `json:"entity_id"`
}

// message is any frame received from the server.
type message struct {
	ID      int64           `json:"id"`
	Type    string          `json:"type"`
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   *resultError    `json:"error"`
	Event   *event          `json:"event"`
	Message string          `json:"message"`
}

type resultError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type event struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
}

type stateChangedData struct {
	EntityID string   `json:"entity_id"`
	NewState *haState `json:"new_state"`
	OldState *haState `json:"old_state"`
}

// haState is one entity state object as Home Assistant serialises it.
type haState struct {
	EntityID   string         `json:"entity_id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

func (s haState) toEntityState() automation.EntityState {
	return automation.EntityState{
		EntityID:   s.EntityID,
		State:      s.State,
		Attributes: automation.Attributes(s.Attributes),
	}
}
