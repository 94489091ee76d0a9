// Package transport owns the single authenticated streaming connection to
// the chat gateway and provides a typed send/receive surface over it.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/clutchchat/clutch/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	readLimit      = 1 << 20
	sendBufferSize = 64
)

// State is the connection lifecycle state. It is owned exclusively by the
// Transport; other components observe it via OnStateChange.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateBackoff
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
	case StateBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

var (
	// ErrAlreadyConnected is returned by Connect when a connection is live.
	ErrAlreadyConnected = errors.New("transport: already connected")
	// ErrNotConnected is returned by Send when the connection is not open.
	ErrNotConnected = errors.New("transport: not connected")
	// ErrSendBufferFull is returned by Send when the outbound queue is full.
	ErrSendBufferFull = errors.New("transport: send buffer full")
)

// Handler receives inbound frames in wire arrival order.
type Handler func(protocol.Frame)

// StateHandler observes connection state transitions.
type StateHandler func(State)

// Options configures a Transport.
type Options struct {
	// Reconnect enables automatic redial with exponential backoff after an
	// unexpected connection loss.
	Reconnect bool
	// MaxInterval caps the backoff wait between redial attempts.
	MaxInterval time.Duration
	// Dialer overrides the websocket dialer, mainly for tests.
	Dialer *websocket.Dialer
}

// Transport maintains at most one live streaming connection per session
// credential. All inbound frames are dispatched from a single read pump, so
// handlers see them in arrival order.
type Transport struct {
	endpoint string
	opts     Options
	dialer   *websocket.Dialer

	mu     sync.Mutex
	state  State
	conn   *websocket.Conn
	send   chan protocol.Frame
	done   chan struct{}
	token  string
	ctx    context.Context
	closed bool

	handlers []Handler
	stateFns []StateHandler
}

// New creates a Transport for the given gateway endpoint (ws:// or wss://).
func New(endpoint string, opts Options) *Transport {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}
	return &Transport{
		endpoint: endpoint,
		opts:     opts,
		dialer:   dialer,
		ctx:      context.Background(),
	}
}

// OnFrame registers a handler invoked once per inbound frame. All registered
// handlers run, in registration order, on the read pump goroutine.
func (t *Transport) OnFrame(h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers = append(t.handlers, h)
}

// OnStateChange registers an observer for connection state transitions.
func (t *Transport) OnStateChange(fn StateHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stateFns = append(t.stateFns, fn)
}

// State returns the current connection state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Connect dials the gateway with the session credential attached as a query
// parameter (the handshake does not support arbitrary headers). The returned
// error is the hard failure signal; state observers fire on every transition.
func (t *Transport) Connect(ctx context.Context, token string) error {
	t.mu.Lock()
	if t.state != StateDisconnected {
		t.mu.Unlock()
		return ErrAlreadyConnected
	}
	t.state = StateConnecting
	t.token = token
	t.ctx = ctx
	t.closed = false
	fns := append([]StateHandler(nil), t.stateFns...)
	t.mu.Unlock()
	for _, fn := range fns {
		fn(StateConnecting)
	}

	conn, err := t.dial(ctx)
	if err != nil {
		t.setState(StateDisconnected)
		return fmt.Errorf("connect: %w", err)
	}
	t.startPumps(conn)
	return nil
}

// Disconnect closes the connection if open. Idempotent; safe to call when
// already disconnected. It also cancels a pending reconnect.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		t.setState(StateDisconnected)
		return
	}
	t.setState(StateClosing)
	deadline := time.Now().Add(writeWait)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	_ = conn.Close()
}

// Send serializes the frame and enqueues it on the bounded outbound queue.
// Returns ErrNotConnected when the connection is not open and
// ErrSendBufferFull when the queue is saturated; it never blocks.
func (t *Transport) Send(f protocol.Frame) error {
	t.mu.Lock()
	if t.state != StateOpen || t.send == nil {
		t.mu.Unlock()
		return ErrNotConnected
	}
	send := t.send
	t.mu.Unlock()

	select {
	case send <- f:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (t *Transport) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(t.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("token", t.token)
	u.RawQuery = q.Encode()

	conn, _, err := t.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", t.endpoint, err)
	}
	return conn, nil
}

func (t *Transport) startPumps(conn *websocket.Conn) {
	t.mu.Lock()
	t.conn = conn
	t.send = make(chan protocol.Frame, sendBufferSize)
	t.done = make(chan struct{})
	send, done := t.send, t.done
	t.mu.Unlock()

	t.setState(StateOpen)
	go t.writePump(conn, send, done)
	go t.readPump(conn)
}

func (t *Transport) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("transport: read loop ended")
			}
			break
		}
		frame, err := protocol.Decode(payload)
		if err != nil {
			log.Warn().Err(err).Msg("transport: dropping malformed frame")
			continue
		}
		t.dispatch(frame)
	}
	t.teardown(conn)
}

func (t *Transport) writePump(conn *websocket.Conn, send <-chan protocol.Frame, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case f := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			data, err := protocol.Encode(f)
			if err != nil {
				log.Error().Err(err).Msg("transport: encode outbound frame")
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func (t *Transport) dispatch(f protocol.Frame) {
	t.mu.Lock()
	handlers := append([]Handler(nil), t.handlers...)
	t.mu.Unlock()
	for _, h := range handlers {
		h(f)
	}
}

// teardown runs exactly once per connection, from the read pump.
func (t *Transport) teardown(conn *websocket.Conn) {
	t.mu.Lock()
	deliberate := t.closed
	if t.conn == conn {
		t.conn = nil
		close(t.done)
		t.send = nil
		t.done = nil
	}
	t.mu.Unlock()
	_ = conn.Close()

	if deliberate || !t.opts.Reconnect {
		t.setState(StateDisconnected)
		return
	}
	t.reconnect()
}

func (t *Transport) reconnect() {
	t.setState(StateBackoff)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0
	if t.opts.MaxInterval > 0 {
		bo.MaxInterval = t.opts.MaxInterval
	}

	for {
		wait := bo.NextBackOff()
		log.Info().Dur("wait", wait).Msg("transport: connection lost, reconnecting")
		select {
		case <-time.After(wait):
		case <-t.ctx.Done():
			t.setState(StateDisconnected)
			return
		}

		t.mu.Lock()
		closed := t.closed
		t.mu.Unlock()
		if closed {
			t.setState(StateDisconnected)
			return
		}

		conn, err := t.dial(t.ctx)
		if err != nil {
			log.Warn().Err(err).Msg("transport: reconnect attempt failed")
			continue
		}

		// Disconnect may have raced the dial.
		t.mu.Lock()
		closed = t.closed
		t.mu.Unlock()
		if closed {
			_ = conn.Close()
			t.setState(StateDisconnected)
			return
		}
		t.startPumps(conn)
		return
	}
}

func (t *Transport) setState(s State) {
	t.mu.Lock()
	if t.state == s {
		t.mu.Unlock()
		return
	}
	t.state = s
	fns := append([]StateHandler(nil), t.stateFns...)
	t.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}
