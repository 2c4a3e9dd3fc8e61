package homeassistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/petro31/illuminate-door/internal/automation"
	"github.com/petro31/illuminate-door/internal/bridges/statecache"
)

const (
	defaultRequestTimeout = 10 * time.Second
	handshakeTimeout      = 15 * time.Second
	pingInterval          = 30 * time.Second

	// get_states returns every entity in one frame.
	maxMessageSize = 16 << 20
)

// Options configures Dial.
type Options struct {
	// URL is the websocket endpoint, e.g. ws://homeassistant.local:8123/api/websocket.
	URL string

	// Token is a long-lived access token.
	Token string

	// RequestTimeout bounds each command. Zero means 10s.
	RequestTimeout time.Duration

	// Dispatcher runs listener callbacks on the event loop.
	Dispatcher statecache.Dispatcher

	// Dialer overrides websocket.DefaultDialer.
	Dialer *websocket.Dialer

	// Logger is an optional structured logger.
	Logger Logger
}

// Client is an automation host backed by the Home Assistant websocket API.
//
// After Dial it has authenticated, subscribed to state_changed events and
// seeded its embedded statecache.Cache from get_states. Entity changes are
// delivered through the cache's listeners; services are called with
// call_service.
//
// The connection is not re-established once lost: Done is closed and Err
// reports why.
//
// State changes are handed from the read loop to a forwarding goroutine,
// so a full dispatcher queue never stops command results being read.
//
// Thread Safety: All methods are safe for concurrent use.
type Client struct {
	*statecache.Cache

	conn    *websocket.Conn
	timeout time.Duration
	logger  Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan message
	err     error

	eventsMu sync.Mutex
	events   []automation.EntityState
	eventsIn chan struct{}

	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects, authenticates and loads the initial entity states.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("home assistant url is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, resp, err := dialer.DialContext(ctx, opts.URL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", opts.URL, err)
	}
	conn.SetReadLimit(maxMessageSize)

	c := &Client{
		Cache:   statecache.New(opts.Dispatcher, logger),
		conn:    conn,
		timeout: timeout,
		logger:  logger,
		pending:  make(map[int64]chan message),
		eventsIn: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	if err := c.handshake(ctx, opts.Token); err != nil {
		conn.Close()
		return nil, err
	}

	go c.readLoop()
	go c.forwardLoop()
	go c.keepalive()

	logger.Info("connected to home assistant", "url", opts.URL)
	return c, nil
}

// handshake runs auth, subscribe_events and get_states synchronously,
// before the read loop owns the connection.
func (c *Client) handshake(ctx context.Context, token string) error {
	deadline := time.Now().Add(handshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(deadline)
	//nolint:errcheck // Cleared for the read loop
	defer c.conn.SetReadDeadline(time.Time{})

	var msg message
	if err := c.conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("read auth_required: %w", err)
	}
	if msg.Type != typeAuthRequired {
		return fmt.Errorf("%w: got %q, want %q", ErrProtocol, msg.Type, typeAuthRequired)
	}

	if err := c.write(authMessage{Type: typeAuth, AccessToken: token}); err != nil {
		return err
	}

	msg = message{}
	if err := c.conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("read auth result: %w", err)
	}
	switch msg.Type {
	case typeAuthOK:
	case typeAuthInvalid:
		return fmt.Errorf("%w: %s", ErrAuthFailed, msg.Message)
	default:
		return fmt.Errorf("%w: got %q after auth", ErrProtocol, msg.Type)
	}

	// Subscribe before loading states so no change falls between the two.
	if _, err := c.requestSync(request{Type: typeSubscribeEvents, EventType: eventStateChanged}); err != nil {
		return fmt.Errorf("subscribe state_changed: %w", err)
	}

	res, err := c.requestSync(request{Type: typeGetStates})
	if err != nil {
		return fmt.Errorf("get_states: %w", err)
	}
	var states []haState
	if err := json.Unmarshal(res.Result, &states); err != nil {
		return fmt.Errorf("%w: decode get_states: %w", ErrProtocol, err)
	}
	for _, st := range states {
		// An event seen during the handshake is newer than the dump.
		if _, known := c.State(st.EntityID); !known {
			c.Seed(st.toEntityState())
		}
	}
	c.logger.Debug("loaded entity states", "entities", len(states))

	return nil
}

// requestSync sends req and reads frames until its result arrives,
// applying any events seen on the way. Only used during the handshake,
// before anything listens, so applying inline cannot block.
func (c *Client) requestSync(req request) (message, error) {
	req.ID = c.allocID()
	if err := c.write(req); err != nil {
		return message{}, err
	}

	for {
		var msg message
		if err := c.conn.ReadJSON(&msg); err != nil {
			return message{}, fmt.Errorf("read result: %w", err)
		}
		switch {
		case msg.Type == typeEvent:
			if st, ok := c.decodeStateChanged(msg); ok {
				c.Apply(st)
			}
		case msg.Type == typeResult && msg.ID == req.ID:
			return msg, checkResult(msg)
		}
	}
}

func (c *Client) allocID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	return c.nextID
}

func (c *Client) write(v any) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	//nolint:errcheck // Best-effort write deadline
	c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	if err := c.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// request sends req and waits for the matching result or pong.
func (c *Client) request(ctx context.Context, req request) (message, error) {
	ch := make(chan message, 1)

	c.mu.Lock()
	c.nextID++
	req.ID = c.nextID
	c.pending[req.ID] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	if err := c.write(req); err != nil {
		return message{}, err
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case msg := <-ch:
		return msg, checkResult(msg)
	case <-ctx.Done():
		return message{}, ctx.Err()
	case <-timer.C:
		return message{}, fmt.Errorf("%w: %s after %v", ErrTimeout, req.Type, c.timeout)
	case <-c.done:
		return message{}, ErrClosed
	}
}

func checkResult(msg message) error {
	if msg.Type != typeResult || msg.Success {
		return nil
	}
	if msg.Error != nil {
		return fmt.Errorf("%w: %s: %s", ErrRequestFailed, msg.Error.Code, msg.Error.Message)
	}
	return ErrRequestFailed
}

func (c *Client) readLoop() {
	for {
		var msg message
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.fail(err)
			return
		}

		switch msg.Type {
		case typeEvent:
			if st, ok := c.decodeStateChanged(msg); ok {
				c.enqueue(st)
			}
		case typeResult, typePong:
			c.resolve(msg)
		default:
			c.logger.Debug("ignoring home assistant message", "type", msg.Type)
		}
	}
}

func (c *Client) resolve(msg message) {
	c.mu.Lock()
	ch, ok := c.pending[msg.ID]
	c.mu.Unlock()

	if ok {
		ch <- msg
	}
}

// decodeStateChanged extracts the new entity state from a state_changed
// event. It reports false for other events and removed entities.
func (c *Client) decodeStateChanged(msg message) (automation.EntityState, bool) {
	if msg.Event == nil || msg.Event.EventType != eventStateChanged {
		return automation.EntityState{}, false
	}

	var data stateChangedData
	if err := json.Unmarshal(msg.Event.Data, &data); err != nil {
		c.logger.Warn("invalid state_changed event", "error", err)
		return automation.EntityState{}, false
	}
	if data.NewState == nil {
		// Entity removed.
		return automation.EntityState{}, false
	}

	st := data.NewState.toEntityState()
	if st.EntityID == "" {
		st.EntityID = data.EntityID
	}
	return st, true
}

// enqueue hands a state to forwardLoop without blocking the reader.
func (c *Client) enqueue(st automation.EntityState) {
	c.eventsMu.Lock()
	c.events = append(c.events, st)
	c.eventsMu.Unlock()

	select {
	case c.eventsIn <- struct{}{}:
	default:
	}
}

// forwardLoop applies queued states in arrival order. Apply may block
// while the dispatcher is busy.
func (c *Client) forwardLoop() {
	for {
		select {
		case <-c.done:
			return
		case <-c.eventsIn:
		}

		for {
			c.eventsMu.Lock()
			batch := c.events
			c.events = nil
			c.eventsMu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, st := range batch {
				c.Apply(st)
			}
		}
	}
}

func (c *Client) keepalive() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.Ping(context.Background()); err != nil && !errors.Is(err, ErrClosed) {
				c.fail(fmt.Errorf("keepalive: %w", err))
				return
			}
		}
	}
}

// fail records the first terminal error and tears the connection down.
func (c *Client) fail(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()

		close(c.done)
		c.conn.Close()

		if !errors.Is(err, ErrClosed) {
			c.logger.Warn("home assistant connection lost", "error", err)
		}
	})
}

// Ping round-trips a ping frame.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.request(ctx, request{Type: typePing})
	return err
}

// TurnOn implements automation.Actuator.
func (c *Client) TurnOn(ctx context.Context, entityID string, attrs automation.Attributes) error {
	return c.callService(ctx, entityID, "turn_on", attrs)
}

// TurnOff implements automation.Actuator.
func (c *Client) TurnOff(ctx context.Context, entityID string) error {
	return c.callService(ctx, entityID, "turn_off", nil)
}

func (c *Client) callService(ctx context.Context, entityID, service string, data automation.Attributes) error {
	domain := serviceDomain(entityID)
	_, err := c.request(ctx, request{
		Type:        typeCallService,
		Domain:      domain,
		Service:     service,
		ServiceData: data,
		Target:      &target{EntityID: entityID},
	})
	if err != nil {
		return fmt.Errorf("%s.%s %s: %w", domain, service, entityID, err)
	}
	c.logger.Debug("service called", "domain", domain, "service", service, "entity_id", entityID)
	return nil
}

// serviceDomain picks the service domain for an entity. Lights take
// their own domain so light attributes are accepted; everything else
// goes through the generic homeassistant domain.
func serviceDomain(entityID string) string {
	if domain, _, ok := strings.Cut(entityID, "."); ok && domain == "light" {
		return "light"
	}
	return "homeassistant"
}

// Done is closed when the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns why the connection ended, or nil while it is up.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close sends a normal close frame and releases the connection.
func (c *Client) Close() error {
	select {
	case <-c.done:
		return nil
	default:
	}

	c.writeMu.Lock()
	//nolint:errcheck // Peer may already be gone
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()

	c.fail(ErrClosed)
	return nil
}
