// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hubbridge/hubbridge/internal/hub"
)

var (
	// ErrNotConnected is returned for invocations without a live connection.
	ErrNotConnected = errors.New("transport: not connected")

	// ErrClientClosed is returned when operations are attempted on a closed
	// client.
	ErrClientClosed = errors.New("transport: client closed")

	// ErrConnectionClosed resolves invocations that were in flight when the
	// connection went away.
	ErrConnectionClosed = errors.New("transport: connection closed")

	// ErrStaleConnection is reported when the server stops answering
	// keepalives.
	ErrStaleConnection = errors.New("transport: connection stale, no ping received")

	// ErrHandshakeRejected is returned when the server refuses the protocol
	// handshake.
	ErrHandshakeRejected = errors.New("transport: handshake rejected")
)

// completion is the outcome of a single invocation.
type completion struct {
	result json.RawMessage
	err    error
}

// Client is a WebSocket connection to a hub endpoint speaking the framed
// JSON protocol. It implements hub.Transport: Start dials and handshakes,
// Stop tears down gracefully, and the same client can be restarted after a
// stop or an unexpected closure.
type Client struct {
	endpoint string
	opts     Options
	logger   *slog.Logger

	// writeMu serializes data writes to the connection
	writeMu sync.Mutex

	// closedCh reports unexpected closures to the connection manager, one
	// event per closure. It lives as long as the client.
	closedCh chan error

	// mu protects everything below
	mu       sync.Mutex
	closed   bool
	stopping bool
	state    hub.State
	lastPing time.Time

	// Per-connection state, replaced on each Start.
	conn       *websocket.Conn
	pending    map[string]chan completion
	done       chan struct{}
	readExited chan struct{}
	closeOnce  *sync.Once
}

// NewClient builds a client for the given endpoint. No network activity
// happens until Start.
func NewClient(endpoint string, opts Options) *Client {
	o := opts.withDefaults()
	return &Client{
		endpoint: endpoint,
		opts:     o,
		logger:   o.Logger,
		closedCh: make(chan error, 1),
		pending:  make(map[string]chan completion),
	}
}

// Start dials the endpoint and performs the protocol handshake. It is
// called for the initial connection and again after Stop or a dropped
// connection; each call establishes a fresh WebSocket.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	header := http.Header{}
	header.Set("Accept", "application/json")
	if c.opts.TokenSource != nil {
		token, err := c.opts.TokenSource.Token(ctx)
		if err != nil {
			return fmt.Errorf("resolve access token: %w", err)
		}
		if token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.opts.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.endpoint, err)
	}

	if err := c.handshake(ctx, conn); err != nil {
		conn.Close()
		return err
	}

	conn.SetPingHandler(func(data string) error {
		c.touchPing()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	conn.SetPongHandler(func(string) error {
		c.touchPing()
		return nil
	})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrClientClosed
	}
	c.conn = conn
	c.pending = make(map[string]chan completion)
	c.done = make(chan struct{})
	c.readExited = make(chan struct{})
	c.closeOnce = new(sync.Once)
	c.stopping = false
	c.state = hub.StateConnected
	c.lastPing = time.Now()
	done := c.done
	readExited := c.readExited
	c.mu.Unlock()

	// Drop any closure event left over from a previous connection.
	select {
	case <-c.closedCh:
	default:
	}

	go c.readLoop(conn, done, readExited)
	go c.keepaliveLoop(conn, done)

	c.logger.Debug("transport connected", "endpoint", c.endpoint)
	return nil
}

// handshake negotiates the protocol before any frames flow. Bounded by the
// caller's context via the connection deadlines.
func (c *Client) handshake(ctx context.Context, conn *websocket.Conn) error {
	deadline := time.Now().Add(c.opts.HandshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	req, err := encodeFrame(handshakeRequest{Protocol: "json", Version: 1})
	if err != nil {
		return err
	}

	conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, req); err != nil {
		return fmt.Errorf("send handshake: %w", err)
	}

	conn.SetReadDeadline(deadline)
	_, data, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read handshake response: %w", err)
	}
	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})

	frames := splitFrames(data)
	if len(frames) == 0 {
		return fmt.Errorf("%w: empty response", ErrHandshakeRejected)
	}

	var resp handshakeResponse
	if err := json.Unmarshal(frames[0], &resp); err != nil {
		return fmt.Errorf("%w: %v", ErrHandshakeRejected, err)
	}
	if resp.Error != "" {
		return fmt.Errorf("%w: %s", ErrHandshakeRejected, resp.Error)
	}

	// Frames batched behind the ack can only be pings this early; nothing
	// is pending yet, so dropping them is safe.
	return nil
}

// Invoke calls a hub method and waits for its completion frame.
func (c *Client) Invoke(ctx context.Context, method string, payload any) (json.RawMessage, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	if c.conn == nil || c.state != hub.StateConnected {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	conn := c.conn
	done := c.done

	id := uuid.NewString()
	ch := make(chan completion, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	args, err := invocationArguments(payload)
	if err != nil {
		c.forgetPending(id)
		return nil, err
	}

	frame := hubMessage{
		Type:         typeInvocation,
		InvocationID: id,
		Target:       method,
		Arguments:    args,
	}
	if err := c.writeFrame(conn, frame); err != nil {
		c.forgetPending(id)
		return nil, fmt.Errorf("send invocation: %w", err)
	}

	c.logger.Debug("invocation sent", "method", method, "invocation_id", id)

	select {
	case result := <-ch:
		if result.err != nil {
			return nil, result.err
		}
		return result.result, nil
	case <-ctx.Done():
		c.forgetPending(id)
		return nil, ctx.Err()
	case <-done:
		// Prefer a completion that raced the teardown.
		select {
		case result := <-ch:
			if result.err != nil {
				return nil, result.err
			}
			return result.result, nil
		default:
		}
		return nil, ErrConnectionClosed
	}
}

// forgetPending drops a pending invocation registration.
func (c *Client) forgetPending(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// writeFrame serializes and sends one frame.
func (c *Client) writeFrame(conn *websocket.Conn, v any) error {
	data, err := encodeFrame(v)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop consumes frames until the connection errors out or is torn
// down. It owns all reads after the handshake.
func (c *Client) readLoop(conn *websocket.Conn, done <-chan struct{}, readExited chan struct{}) {
	defer close(readExited)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
				// Teardown already ran, nothing to report.
				return
			default:
			}

			c.mu.Lock()
			stopping := c.stopping
			c.mu.Unlock()
			if stopping {
				// The server answered our close frame; Stop finishes the
				// teardown.
				c.teardown(nil, false)
				return
			}

			cause := err
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				cause = nil
			} else {
				c.logger.Debug("read failed", "error", err)
			}
			c.teardown(cause, true)
			return
		}

		for _, frame := range splitFrames(data) {
			c.handleFrame(frame)
		}
	}
}

// handleFrame dispatches a single decoded frame.
func (c *Client) handleFrame(frame []byte) {
	var msg hubMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		c.logger.Debug("discarding malformed frame", "error", err)
		return
	}

	switch msg.Type {
	case typeCompletion:
		c.completeInvocation(msg)
	case typePing:
		c.touchPing()
	case typeInvocation:
		// Server-initiated calls are not supported; acknowledge nothing.
		c.logger.Debug("ignoring server invocation", "target", msg.Target)
	default:
		c.logger.Debug("ignoring unknown frame type", "type", msg.Type)
	}
}

// completeInvocation routes a completion frame to its waiting caller.
func (c *Client) completeInvocation(msg hubMessage) {
	c.mu.Lock()
	ch, ok := c.pending[msg.InvocationID]
	if ok {
		delete(c.pending, msg.InvocationID)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("completion for unknown invocation", "invocation_id", msg.InvocationID)
		return
	}

	if msg.Error != "" {
		ch <- completion{err: fmt.Errorf("hub error: %s", msg.Error)}
		return
	}
	ch <- completion{result: msg.Result}
}

// keepaliveLoop sends periodic pings and tears the connection down when
// the server goes quiet for more than twice the ping interval.
func (c *Client) keepaliveLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.writeFrame(conn, hubMessage{Type: typePing}); err != nil {
				c.logger.Debug("keepalive send failed", "error", err)
			}

			c.mu.Lock()
			last := c.lastPing
			c.mu.Unlock()

			if time.Since(last) > 2*c.opts.PingInterval {
				c.logger.Warn("connection stale", "endpoint", c.endpoint, "last_ping", last)
				c.teardown(ErrStaleConnection, true)
				return
			}
		}
	}
}

// touchPing records sign of life from the server.
func (c *Client) touchPing() {
	c.mu.Lock()
	c.lastPing = time.Now()
	c.mu.Unlock()
}

// teardown dismantles the current connection exactly once per connection.
// Pending invocations are failed, and when signal is set the closure is
// reported on the Closed channel.
func (c *Client) teardown(cause error, signal bool) {
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = hub.StateDisconnected
	done := c.done
	once := c.closeOnce
	pending := c.pending
	c.pending = make(map[string]chan completion)
	c.mu.Unlock()

	close(done)
	conn.Close()

	for _, ch := range pending {
		ch <- completion{err: ErrConnectionClosed}
	}

	if signal {
		once.Do(func() {
			select {
			case c.closedCh <- cause:
			default:
				// A previous closure is still unconsumed; it already says
				// the connection is down.
			}
		})
	}
}

// Stop closes the connection gracefully: it announces the closure to the
// server, waits briefly for the read loop to observe the server's reply,
// and then tears down. The client can be started again afterwards.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return nil
	}
	c.stopping = true
	c.state = hub.StateDisconnecting
	conn := c.conn
	readExited := c.readExited
	c.mu.Unlock()

	deadline := time.Now().Add(time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	err := conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		deadline,
	)
	if err != nil {
		c.logger.Debug("close frame send failed", "error", err)
	}

	select {
	case <-readExited:
	case <-ctx.Done():
	case <-time.After(time.Second):
	}

	c.teardown(nil, false)
	c.logger.Debug("transport stopped", "endpoint", c.endpoint)
	return nil
}

// Close releases the client permanently. Safe to call multiple times.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.stopping = true
	c.mu.Unlock()

	c.teardown(nil, false)
	return nil
}

// State reports the client's own view of the connection.
func (c *Client) State() hub.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Closed reports unexpected connection closures, one event per closure. A
// nil event means the server closed cleanly.
func (c *Client) Closed() <-chan error {
	return c.closedCh
}
