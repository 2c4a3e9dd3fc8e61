package mqttbridge

import (
	"context"
	"encoding/json"

	"github.com/petro31/illuminate-door/internal/automation"
)

// Publisher is the subset of the MQTT client used to publish events.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// EventPublisher is an automation.Recorder that mirrors automation events
// onto {prefix}/illuminate-door/{automation}/event.
type EventPublisher struct {
	client Publisher
	topic  func(automation string) string
	logger Logger
}

// NewEventPublisher creates a recorder publishing through client.
// topic maps an automation name to its event topic, usually
// mqtt.Topics.AutomationEvent.
func NewEventPublisher(client Publisher, topic func(string) string, logger Logger) *EventPublisher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &EventPublisher{client: client, topic: topic, logger: logger}
}

// Record implements automation.Recorder. Failures are logged, never returned.
func (p *EventPublisher) Record(_ context.Context, ev automation.Event) {
	payload, err := json.Marshal(EventMessage{
		Automation: ev.Automation,
		Kind:       string(ev.Kind),
		EntityID:   ev.EntityID,
		State:      ev.State,
		Attributes: ev.Attributes,
		Timestamp:  ev.Time.UTC(),
	})
	if err != nil {
		p.logger.Warn("failed to encode automation event", "kind", ev.Kind, "error", err)
		return
	}

	if err := p.client.Publish(p.topic(ev.Automation), payload, 0, false); err != nil {
		p.logger.Warn("failed to publish automation event", "kind", ev.Kind, "error", err)
	}
}
