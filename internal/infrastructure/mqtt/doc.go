// Package mqtt provides MQTT client connectivity for illuminate-door.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - The device topic hierarchy (see Topics)
//
// # Architecture
//
// With the mqtt host backend, device bridges (zigbee2mqtt, tasmota relays,
// custom firmware) publish retained entity state and accept commands:
//
//	device bridges ↔ MQTT broker ↔ illuminate-door
//
// # Security Considerations
//
//   - Use TLS outside a trusted LAN (cfg.Broker.TLS=true)
//   - Set credentials through ILLUMINATE_MQTT_USERNAME/PASSWORD
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().AllDeviceStates(), 1,
//	    func(topic string, payload []byte) error {
//	        id, _ := client.Topics().ParseDeviceState(topic)
//	        log.Printf("%s = %s", id, payload)
//	        return nil
//	    })
package mqtt
