// Package realtime maintains the persistent push connection to the console
// backend: connect/reconnect with a bounded retry budget, a periodic
// heartbeat, and typed fan-out of inbound frames to subscribers.
//
// The channel is a convenience push layer, not a delivery-guaranteed
// transport: outbound sends while disconnected are dropped with a warning,
// and domain correctness never depends on a push event arriving.
package realtime

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zyx3721/ops-integrated-admin-console/internal/client/session"
	"github.com/zyx3721/ops-integrated-admin-console/internal/logging"
)

// State is the connection lifecycle phase, owned exclusively by the
// Channel.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

const (
	// PingType is the zero-payload heartbeat frame type.
	PingType = "ping"

	DefaultHeartbeatInterval    = 30 * time.Second
	DefaultReconnectDelay       = 3 * time.Second
	DefaultMaxReconnectAttempts = 5
)

// Options tunes the channel. Zero values fall back to the defaults above.
type Options struct {
	// URL is the websocket endpoint, e.g. ws://host/ws/message. The
	// session token is appended as a query credential at dial time.
	URL string

	HeartbeatInterval    time.Duration
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int

	Dialer *websocket.Dialer
}

// Channel is the reconnecting push connection. One Channel exists per
// authenticated session; all methods are safe for concurrent use.
type Channel struct {
	mu             sync.Mutex
	state          State
	conn           *websocket.Conn
	stopHeartbeat  chan struct{}
	reconnectTimer *time.Timer
	attempts       int

	writeMu sync.Mutex

	url               string
	heartbeatInterval time.Duration
	reconnectDelay    time.Duration
	maxAttempts       int
	dialer            *websocket.Dialer

	guard      *session.Guard
	log        logging.Logger
	dispatcher *dispatcher
}

func NewChannel(opts Options, guard *session.Guard, log logging.Logger) *Channel {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.MaxReconnectAttempts <= 0 {
		opts.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}

	return &Channel{
		url:               opts.URL,
		heartbeatInterval: opts.HeartbeatInterval,
		reconnectDelay:    opts.ReconnectDelay,
		maxAttempts:       opts.MaxReconnectAttempts,
		dialer:            opts.Dialer,
		guard:             guard,
		log:               log,
		dispatcher:        newDispatcher(),
	}
}

// On registers a handler for the given event type (or Wildcard) and
// returns its subscription handle.
func (c *Channel) On(eventType string, fn Handler) *Subscription {
	return c.dispatcher.subscribe(eventType, fn)
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the connection is open.
func (c *Channel) IsConnected() bool {
	return c.State() == StateOpen
}

// Connect opens the connection. It resets the reconnect budget, so an
// explicit call resumes retrying even after the automatic attempts were
// exhausted. A no-op while already open or connecting, and while no valid
// credential exists.
func (c *Channel) Connect() {
	c.mu.Lock()
	c.attempts = 0
	c.mu.Unlock()
	c.connect()
}

// connect is the shared path for Connect and scheduled reconnects; it
// leaves the retry budget alone.
func (c *Channel) connect() {
	ctx := context.Background()

	if !c.guard.IsValid() {
		c.log.Warn(ctx, "not logged in, realtime connect skipped")
		return
	}

	c.mu.Lock()
	if c.state == StateOpen || c.state == StateConnecting {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.mu.Unlock()

	target, err := c.dialURL()
	if err != nil {
		c.log.Error(ctx, "invalid realtime url", "url", c.url, "error", err)
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		return
	}

	c.log.Debug(ctx, "realtime connecting", "url", c.url)
	conn, resp, err := c.dialer.Dial(target, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		c.log.Error(ctx, "realtime connect failed", "error", err)
		c.mu.Lock()
		c.state = StateDisconnected
		c.scheduleReconnectLocked(ctx)
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	c.conn = conn
	c.state = StateOpen
	c.attempts = 0
	c.stopHeartbeat = make(chan struct{})
	stop := c.stopHeartbeat
	c.mu.Unlock()

	c.log.Info(ctx, "realtime connected")
	go c.heartbeatLoop(stop)
	go c.readLoop(conn)
}

// Disconnect tears the connection down: timers cleared, socket closed,
// retry budget reset. Safe to call from any state, any number of times.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.stopHeartbeat != nil {
		close(c.stopHeartbeat)
		c.stopHeartbeat = nil
	}
	conn := c.conn
	c.conn = nil
	c.attempts = 0
	if conn != nil {
		c.state = StateClosing
	}
	c.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = conn.Close()
	}

	c.mu.Lock()
	c.state = StateDisconnected
	c.mu.Unlock()
}

// Send writes one frame, fire-and-forget. While not open the frame is
// dropped with a warning; realtime messages are never queued for later.
func (c *Channel) Send(eventType string, data any) {
	ctx := context.Background()

	c.mu.Lock()
	conn := c.conn
	open := c.state == StateOpen
	c.mu.Unlock()

	if !open || conn == nil {
		c.log.Warn(ctx, "realtime not connected, message dropped", "type", eventType)
		return
	}

	frame, err := encodeFrame(eventType, data)
	if err != nil {
		c.log.Error(ctx, "failed to encode realtime frame", "type", eventType, "error", err)
		return
	}

	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, frame)
	c.writeMu.Unlock()
	if err != nil {
		c.log.Error(ctx, "realtime send failed", "type", eventType, "error", err)
	}
}

// readLoop delivers inbound frames in arrival order. A malformed frame is
// logged and dropped; it must never tear down the connection.
func (c *Channel) readLoop(conn *websocket.Conn) {
	ctx := context.Background()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(conn, err)
			return
		}

		evt, perr := parseFrame(data)
		if perr != nil {
			c.log.Error(ctx, "dropping malformed realtime frame", "error", perr)
			continue
		}
		c.dispatcher.dispatch(evt)
	}
}

// handleClose reacts to a broken read loop: disarm the heartbeat and, for
// non-deliberate closes, schedule a reconnect.
func (c *Channel) handleClose(conn *websocket.Conn, cause error) {
	ctx := context.Background()

	c.mu.Lock()
	if c.conn != conn {
		// a Disconnect or newer connection already took over
		c.mu.Unlock()
		return
	}
	c.conn = nil
	if c.stopHeartbeat != nil {
		close(c.stopHeartbeat)
		c.stopHeartbeat = nil
	}
	c.state = StateDisconnected
	c.scheduleReconnectLocked(ctx)
	c.mu.Unlock()

	_ = conn.Close()
	c.log.Warn(ctx, "realtime connection closed", "error", cause)
}

// scheduleReconnectLocked arms the reconnect timer unless the retry budget
// is spent. Callers hold c.mu.
func (c *Channel) scheduleReconnectLocked(ctx context.Context) {
	if c.attempts >= c.maxAttempts {
		c.log.Warn(ctx, "max reconnect attempts reached, staying disconnected",
			"attempts", c.attempts)
		return
	}
	c.attempts++
	c.log.Info(ctx, "scheduling realtime reconnect",
		"attempt", c.attempts, "delay", c.reconnectDelay)
	c.reconnectTimer = time.AfterFunc(c.reconnectDelay, c.connect)
}

func (c *Channel) heartbeatLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(c.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.Send(PingType, nil)
		}
	}
}

// dialURL appends the session token as a query credential.
func (c *Channel) dialURL() (string, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", c.guard.Token())
	u.RawQuery = q.Encode()
	return u.String(), nil
}
