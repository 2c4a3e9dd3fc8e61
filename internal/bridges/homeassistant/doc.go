// Package homeassistant hosts door automations on a Home Assistant
// instance through its websocket API.
//
// The client authenticates with a long-lived access token, subscribes to
// state_changed events and loads the current states with get_states.
// Lights are driven with light.turn_on/turn_off so brightness and colour
// attributes apply; other entities use homeassistant.turn_on/turn_off.
package homeassistant
