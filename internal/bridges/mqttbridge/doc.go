// Package mqttbridge hosts door automations on an MQTT broker.
//
// Devices publish retained state as JSON or a bare value:
//
//	home/device/light.hall/state  {"state":"on","attributes":{"brightness":200}}
//	home/device/binary_sensor.front_door/state  on
//
// The bridge turns entities on and off by publishing commands:
//
//	home/device/light.hall/set  {"id":"<uuid>","entity_id":"light.hall","command":"turn_on",...}
//
// EventPublisher optionally mirrors automation events to
// home/illuminate-door/{automation}/event.
package mqttbridge
