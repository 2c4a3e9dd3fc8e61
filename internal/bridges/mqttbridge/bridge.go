package mqttbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/petro31/illuminate-door/internal/automation"
	"github.com/petro31/illuminate-door/internal/bridges/statecache"
	"github.com/petro31/illuminate-door/internal/infrastructure/mqtt"
)

// MQTTClient is the subset of *mqtt.Client the bridge needs.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	Topics() mqtt.Topics
}

// Options configures a Bridge.
type Options struct {
	// Client is the connected MQTT client.
	Client MQTTClient

	// Dispatcher runs listener callbacks on the event loop.
	Dispatcher statecache.Dispatcher

	// QoS is used for subscriptions and commands.
	QoS byte

	// Logger is an optional structured logger.
	Logger Logger
}

// Bridge is an automation host backed by an MQTT broker.
//
// Device state arrives on {prefix}/device/+/state and is kept in an
// embedded statecache.Cache, which also provides automation.Listeners.
// Commands go out on {prefix}/device/{entity_id}/set.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	*statecache.Cache

	client MQTTClient
	topics mqtt.Topics
	qos    byte
	logger Logger

	mu      sync.Mutex
	started bool
}

// New creates a bridge. Call Start to subscribe.
func New(opts Options) (*Bridge, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Bridge{
		Cache:  statecache.New(opts.Dispatcher, logger),
		client: opts.Client,
		topics: opts.Client.Topics(),
		qos:    opts.QoS,
		logger: logger,
	}, nil
}

// Start subscribes to every device state topic. Retained messages seed
// the cache without notifying listeners.
func (b *Bridge) Start(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return nil
	}

	topic := b.topics.AllDeviceStates()
	if err := b.client.Subscribe(topic, b.qos, b.handleState); err != nil {
		return fmt.Errorf("subscribe to device states: %w", err)
	}
	b.started = true
	b.logger.Info("mqtt host bridge started", "topic", topic)
	return nil
}

// Stop unsubscribes from device states.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		return
	}
	b.started = false
	if err := b.client.Unsubscribe(b.topics.AllDeviceStates()); err != nil && !errors.Is(err, mqtt.ErrNotConnected) {
		b.logger.Warn("failed to unsubscribe device states", "error", err)
	}
	b.logger.Info("mqtt host bridge stopped")
}

func (b *Bridge) handleState(topic string, payload []byte) error {
	entityID, ok := b.topics.ParseDeviceState(topic)
	if !ok {
		b.logger.Debug("ignoring message on unexpected topic", "topic", topic)
		return nil
	}

	st, err := parseState(entityID, payload)
	if err != nil {
		return fmt.Errorf("state of %s: %w", entityID, err)
	}

	b.Apply(st)
	return nil
}

// TurnOn implements automation.Actuator.
func (b *Bridge) TurnOn(ctx context.Context, entityID string, attrs automation.Attributes) error {
	return b.command(ctx, entityID, CommandTurnOn, attrs)
}

// TurnOff implements automation.Actuator.
func (b *Bridge) TurnOff(ctx context.Context, entityID string) error {
	return b.command(ctx, entityID, CommandTurnOff, nil)
}

func (b *Bridge) command(ctx context.Context, entityID, command string, attrs automation.Attributes) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	started := b.started
	b.mu.Unlock()
	if !started {
		return ErrNotStarted
	}

	msg := CommandMessage{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		EntityID:   entityID,
		Command:    command,
		Attributes: attrs,
		Source:     commandSource,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	if err := b.client.Publish(b.topics.DeviceCommand(entityID), payload, b.qos, false); err != nil {
		return fmt.Errorf("publish %s to %s: %w", command, entityID, err)
	}

	b.logger.Debug("command published", "command_id", msg.ID, "entity_id", entityID, "command", command)
	return nil
}
