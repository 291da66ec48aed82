package channel

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/guttosm/dashwatch/internal/domain/message"
	"github.com/guttosm/dashwatch/internal/metrics"
	"github.com/rs/zerolog/log"
)

// EventMessage fires for every inbound frame, in addition to the event named
// after the frame's type tag.
const EventMessage = "message"

// Handler consumes one inbound message.
type Handler func(msg message.Message)

// Subscription identifies one registered handler for removal via Off.
type Subscription struct {
	event string
	id    string
}

// Config holds channel configuration.
type Config struct {
	// Endpoint is the absolute ws/wss URL to connect to.
	Endpoint string
	// Handshake is sent immediately after every successful open.
	Handshake interface{}
	// MaxReconnects bounds consecutive automatic reconnect attempts.
	MaxReconnects int
	// ReconnectDelay is the initial backoff delay.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the doubled backoff delay.
	MaxReconnectDelay time.Duration
	// HeartbeatInterval is the outbound ping period. Zero disables pings.
	HeartbeatInterval time.Duration
	// Dialer opens the transport. Defaults to DialWebSocket.
	Dialer Dialer
}

// DefaultConfig returns the default channel configuration for an endpoint.
func DefaultConfig(endpoint string) Config {
	return Config{
		Endpoint:          endpoint,
		Handshake:         message.NewSubscribeAll(),
		MaxReconnects:     5,
		ReconnectDelay:    time.Second,
		MaxReconnectDelay: 30 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		Dialer:            DialWebSocket,
	}
}

type subscriber struct {
	id string
	fn Handler
}

// connectAttempt is the shared outcome of an in-flight dial, so concurrent
// Connect calls converge on one transport.
type connectAttempt struct {
	done chan struct{}
	err  error
}

// Status is a read-only snapshot of the connection for introspection.
type Status struct {
	Endpoint  string        `json:"endpoint"`
	State     string        `json:"state"`
	Attempts  int           `json:"reconnect_attempts"`
	NextDelay time.Duration `json:"next_delay"`
}

// Channel maintains one live transport to an endpoint, transparently
// recovering from unclean closes with bounded exponential backoff, and fans
// inbound messages out to subscribers by message type. At most one transport
// is live per Channel instance.
type Channel struct {
	cfg Config

	mu             sync.Mutex
	state          State
	transport      Transport
	attempts       int
	delay          time.Duration
	intentional    bool
	inflight       *connectAttempt
	reconnectTimer *time.Timer
	stopHeartbeat  chan struct{}

	subMu sync.RWMutex
	subs  map[string][]subscriber
}

// New creates a Channel for the given configuration, filling defaults for
// zero-valued policy fields.
func New(cfg Config) *Channel {
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = 5
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = time.Second
	}
	if cfg.MaxReconnectDelay == 0 {
		cfg.MaxReconnectDelay = 30 * time.Second
	}
	if cfg.Dialer == nil {
		cfg.Dialer = DialWebSocket
	}
	return &Channel{
		cfg:   cfg,
		state: StateIdle,
		delay: cfg.ReconnectDelay,
		subs:  make(map[string][]subscriber),
	}
}

// Connect opens the transport. It is idempotent while already connecting or
// open: concurrent callers share the in-flight outcome instead of opening a
// second transport. On success the reconnect counter and backoff delay reset
// and the handshake message is sent. A dial failure is returned to the
// caller; it does not start the automatic reconnect path.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateOpen {
		c.mu.Unlock()
		return nil
	}
	if c.inflight != nil {
		att := c.inflight
		c.mu.Unlock()
		<-att.done
		return att.err
	}
	att := &connectAttempt{done: make(chan struct{})}
	c.inflight = att
	c.state = StateConnecting
	c.intentional = false
	c.mu.Unlock()

	transport, err := c.cfg.Dialer(ctx, c.cfg.Endpoint)

	c.mu.Lock()
	c.inflight = nil
	if err != nil {
		c.state = StateClosed
		c.mu.Unlock()
		att.err = err
		close(att.done)
		return err
	}
	if c.intentional {
		// Disconnect raced the dial; drop the fresh transport.
		c.state = StateClosed
		c.mu.Unlock()
		_ = transport.Close(websocket.CloseNormalClosure, "client disconnect")
		close(att.done)
		return nil
	}
	c.transport = transport
	c.state = StateOpen
	c.attempts = 0
	c.delay = c.cfg.ReconnectDelay
	stop := make(chan struct{})
	c.stopHeartbeat = stop
	c.mu.Unlock()

	if c.cfg.Handshake != nil {
		if err := transport.WriteJSON(c.cfg.Handshake); err != nil {
			log.Warn().Err(err).Str("endpoint", c.cfg.Endpoint).Msg("Channel handshake send failed")
		}
	}

	go c.readLoop(transport, stop)
	if c.cfg.HeartbeatInterval > 0 {
		go c.heartbeat(stop)
	}

	log.Info().Str("endpoint", c.cfg.Endpoint).Msg("Channel connected")
	close(att.done)
	return nil
}

// Send transmits a message while the channel is open. Otherwise the message
// is dropped with a warning: delivery is best-effort and never queued.
func (c *Channel) Send(v interface{}) {
	c.mu.Lock()
	transport := c.transport
	state := c.state
	c.mu.Unlock()

	if state != StateOpen || transport == nil {
		metrics.ChannelSendsDroppedTotal.Inc()
		log.Warn().Str("endpoint", c.cfg.Endpoint).Str("state", state.String()).Msg("Channel send dropped, not open")
		return
	}
	if err := transport.WriteJSON(v); err != nil {
		log.Warn().Err(err).Str("endpoint", c.cfg.Endpoint).Msg("Channel send failed")
	}
}

// On registers a handler for an exact event name. Handlers for one event run
// in registration order.
func (c *Channel) On(event string, fn Handler) Subscription {
	sub := subscriber{id: uuid.New().String(), fn: fn}
	c.subMu.Lock()
	c.subs[event] = append(c.subs[event], sub)
	c.subMu.Unlock()
	return Subscription{event: event, id: sub.id}
}

// Off removes a previously registered handler.
func (c *Channel) Off(sub Subscription) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	handlers := c.subs[sub.event]
	for i, h := range handlers {
		if h.id == sub.id {
			c.subs[sub.event] = append(handlers[:i:i], handlers[i+1:]...)
			return
		}
	}
}

// Disconnect closes the transport intentionally: pending reconnect and
// heartbeat timers are cancelled, the transport is closed with a normal
// closure code, and the reconnect path is suppressed.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.intentional = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.stopHeartbeat != nil {
		close(c.stopHeartbeat)
		c.stopHeartbeat = nil
	}
	transport := c.transport
	c.transport = nil
	if transport != nil {
		c.state = StateClosing
	} else if c.state != StateIdle {
		c.state = StateClosed
	}
	c.mu.Unlock()

	if transport != nil {
		_ = transport.Close(websocket.CloseNormalClosure, "client disconnect")
		c.mu.Lock()
		c.state = StateClosed
		c.mu.Unlock()
		log.Info().Str("endpoint", c.cfg.Endpoint).Msg("Channel disconnected")
	}
}

// Close disconnects and clears all subscribers. The channel is not usable
// afterwards without re-registering handlers.
func (c *Channel) Close() {
	c.Disconnect()
	c.subMu.Lock()
	c.subs = make(map[string][]subscriber)
	c.subMu.Unlock()
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns the consecutive reconnect attempt count.
func (c *Channel) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// GetStatus returns a snapshot of the connection for debugging.
func (c *Channel) GetStatus() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Endpoint:  c.cfg.Endpoint,
		State:     c.state.String(),
		Attempts:  c.attempts,
		NextDelay: c.delay,
	}
}

// readLoop pumps inbound frames until the transport reports an error, then
// routes the close through the reconnect policy.
func (c *Channel) readLoop(transport Transport, stop chan struct{}) {
	for {
		data, err := transport.ReadMessage()
		if err != nil {
			c.handleClose(err, stop)
			return
		}
		msg, derr := message.Decode(data)
		if derr != nil {
			log.Warn().Err(derr).Str("endpoint", c.cfg.Endpoint).Msg("Channel dropped undecodable frame")
			continue
		}
		metrics.ChannelMessagesTotal.WithLabelValues(msg.Type()).Inc()
		if _, unknown := msg.(message.Unknown); unknown {
			log.Debug().Str("type", msg.Type()).Msg("Channel received unknown message type")
		}
		c.dispatch(msg.Type(), msg)
		c.dispatch(EventMessage, msg)
	}
}

// handleClose tears down per-connection resources and, on an unclean close,
// enters the backoff schedule.
func (c *Channel) handleClose(err error, stop chan struct{}) {
	c.mu.Lock()
	if c.stopHeartbeat != nil {
		// Identity check: Disconnect or a newer Connect may already have
		// cleared or replaced this connection's stop channel.
		if c.stopHeartbeat == stop {
			close(c.stopHeartbeat)
			c.stopHeartbeat = nil
		} else {
			c.mu.Unlock()
			return
		}
	}
	c.transport = nil
	c.state = StateClosed
	intentional := c.intentional
	c.mu.Unlock()

	if intentional || isCleanClose(err) {
		log.Info().Str("endpoint", c.cfg.Endpoint).Msg("Channel closed")
		return
	}

	log.Warn().Err(err).Str("endpoint", c.cfg.Endpoint).Msg("Channel closed uncleanly")
	c.scheduleReconnect()
}

// scheduleReconnect arms the backoff timer for the next attempt: the delay
// starts at ReconnectDelay and doubles per attempt up to MaxReconnectDelay.
// Once MaxReconnects consecutive attempts fail without an intervening open,
// automatic recovery stops and the caller must Connect again.
func (c *Channel) scheduleReconnect() {
	c.mu.Lock()
	if c.intentional {
		c.mu.Unlock()
		return
	}
	if c.attempts >= c.cfg.MaxReconnects {
		c.mu.Unlock()
		log.Warn().
			Str("endpoint", c.cfg.Endpoint).
			Int("attempts", c.cfg.MaxReconnects).
			Msg("Channel reconnect attempts exhausted, giving up")
		return
	}
	c.attempts++
	attempt := c.attempts
	delay := c.delay
	if next := c.delay * 2; next > c.cfg.MaxReconnectDelay {
		c.delay = c.cfg.MaxReconnectDelay
	} else {
		c.delay = next
	}
	c.reconnectTimer = time.AfterFunc(delay, func() {
		if err := c.Connect(context.Background()); err != nil {
			c.scheduleReconnect()
		}
	})
	c.mu.Unlock()

	metrics.ChannelReconnectsTotal.WithLabelValues(c.cfg.Endpoint).Inc()
	log.Info().
		Str("endpoint", c.cfg.Endpoint).
		Int("attempt", attempt).
		Dur("delay", delay).
		Msg("Channel reconnect scheduled")
}

// heartbeat sends outbound liveness pings while the connection is open. It
// is pure signaling and has no effect on reconnect state.
func (c *Channel) heartbeat(stop chan struct{}) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Send(message.NewPing(time.Now()))
		case <-stop:
			return
		}
	}
}

// dispatch invokes every handler registered for event, in registration
// order. A panicking handler is recovered and logged so the remaining
// handlers still run.
func (c *Channel) dispatch(event string, msg message.Message) {
	c.subMu.RLock()
	handlers := make([]subscriber, len(c.subs[event]))
	copy(handlers, c.subs[event])
	c.subMu.RUnlock()

	for _, h := range handlers {
		c.invoke(event, h, msg)
	}
}

func (c *Channel) invoke(event string, h subscriber, msg message.Message) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("endpoint", c.cfg.Endpoint).
				Str("event", event).
				Interface("panic", r).
				Msg("Channel handler panicked")
		}
	}()
	h.fn(msg)
}
