package mqtt

import (
	"fmt"
	"strings"
)

// DefaultPrefix is used when Topics.Prefix is empty.
const DefaultPrefix = "home"

// serviceSegment namespaces topics owned by this service.
const serviceSegment = "illuminate-door"

// Topics builds the MQTT topic hierarchy under a site prefix:
//
//	{prefix}/device/{entity_id}/state          retained device state
//	{prefix}/device/{entity_id}/set            commands to a device
//	{prefix}/illuminate-door/status            online/offline (LWT)
//	{prefix}/illuminate-door/{automation}/event automation events
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultPrefix
	}
	return strings.TrimSuffix(t.Prefix, "/")
}

// DeviceState returns the retained state topic of an entity.
//
// Example: home/device/light.hall/state
func (t Topics) DeviceState(entityID string) string {
	return fmt.Sprintf("%s/device/%s/state", t.prefix(), entityID)
}

// DeviceCommand returns the command topic of an entity.
//
// Example: home/device/light.hall/set
func (t Topics) DeviceCommand(entityID string) string {
	return fmt.Sprintf("%s/device/%s/set", t.prefix(), entityID)
}

// AllDeviceStates returns a pattern matching every device state topic.
//
// Pattern: home/device/+/state
func (t Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/device/+/state", t.prefix())
}

// Status returns the service status topic.
//
// Example: home/illuminate-door/status
func (t Topics) Status() string {
	return fmt.Sprintf("%s/%s/status", t.prefix(), serviceSegment)
}

// AutomationEvent returns the topic automation events are published on.
//
// Example: home/illuminate-door/front-door/event
func (t Topics) AutomationEvent(automation string) string {
	return fmt.Sprintf("%s/%s/%s/event", t.prefix(), serviceSegment, automation)
}

// ParseDeviceState extracts the entity id from a device state topic.
func (t Topics) ParseDeviceState(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.prefix()+"/device/")
	if !ok {
		return "", false
	}
	entityID, ok := strings.CutSuffix(rest, "/state")
	if !ok || entityID == "" || strings.Contains(entityID, "/") {
		return "", false
	}
	return entityID, true
}
