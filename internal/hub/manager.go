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

package hub

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hubbridge/hubbridge/internal/log"
	bridgeerrors "github.com/hubbridge/hubbridge/pkg/errors"
)

// ErrClosed is returned for operations on a manager after Close.
var ErrClosed = errors.New("hub: manager is closed")

// Manager owns the lifecycle of a single hub connection: connecting,
// deduplicating concurrent connection attempts, reconnecting after
// unexpected closures, and tearing everything down on disposal.
//
// All methods are safe for concurrent use.
type Manager struct {
	// endpoint is the hub address connections are made to
	endpoint string

	// provider creates transport handles for the endpoint
	provider Provider

	// opts holds timing and logging configuration
	opts Options

	// logger receives lifecycle events
	logger *slog.Logger

	// lifetime governs background goroutines; cancelled by Close
	lifetime       context.Context
	lifetimeCancel context.CancelFunc

	// gate serializes connection and teardown work. Capacity one: holding
	// the slot means holding the gate.
	gate chan struct{}

	// keepReconnecting is false after an intentional disconnect, which
	// suppresses both auto-reconnect and implicit connect-on-invoke.
	// A new explicit connection attempt re-arms it.
	keepReconnecting atomic.Bool

	// disposed flips once when Close begins and never resets
	disposed atomic.Bool

	// state is the observable connection state
	state *observable[State]

	// mu protects the fields below
	mu sync.Mutex

	// scope is the cancellation scope of the current connection. Cancelled
	// by Disconnect and Close to abort an in-flight attempt.
	scope       context.Context
	scopeCancel context.CancelFunc

	// attempt is the in-flight connection attempt joined by concurrent
	// callers, or nil when none is running
	attempt *connectAttempt

	// handle is the current transport, reused across reconnects
	handle Transport

	// watchStop stops the close watcher for the current connection
	watchStop chan struct{}

	// teardowns counts intentional disconnects. An attempt published
	// before a teardown is stale once it reaches the gate and must not
	// resurrect the connection.
	teardowns uint64
}

// connectAttempt is a single shared connection attempt. Concurrent
// Connect callers await the same attempt and observe the same outcome.
type connectAttempt struct {
	// done is closed when the attempt completes
	done chan struct{}

	// ok is the outcome, valid once done is closed
	ok bool

	// gen is the teardown generation the attempt was published under
	gen uint64
}

// await blocks until the attempt completes or the caller's context is
// cancelled. A cancelled caller detaches with false; the attempt itself
// keeps running for the remaining callers.
func (a *connectAttempt) await(ctx context.Context) bool {
	select {
	case <-a.done:
		return a.ok
	case <-ctx.Done():
		return false
	}
}

// NewManager creates a connection manager for the given endpoint. The
// manager starts disconnected; call Connect or let an invocation connect
// implicitly.
func NewManager(endpoint string, provider Provider, opts Options) (*Manager, error) {
	if endpoint == "" {
		return nil, &bridgeerrors.ValidationError{
			Field:      "endpoint",
			Message:    "endpoint is required",
			Suggestion: "set the hub endpoint URL in the configuration file or with --endpoint",
		}
	}
	if provider == nil {
		return nil, &bridgeerrors.ValidationError{
			Field:   "provider",
			Message: "connection provider is required",
		}
	}

	o := opts.withDefaults()
	lifetime, cancel := context.WithCancel(context.Background())

	m := &Manager{
		endpoint:       endpoint,
		provider:       provider,
		opts:           o,
		logger:         log.WithEndpoint(o.Logger, endpoint),
		lifetime:       lifetime,
		lifetimeCancel: cancel,
		gate:           make(chan struct{}, 1),
		state:          newObservable(StateDisconnected),
	}
	m.keepReconnecting.Store(true)
	return m, nil
}

// Endpoint returns the hub address the manager connects to.
func (m *Manager) Endpoint() string {
	return m.endpoint
}

// State returns the current connection state.
func (m *Manager) State() State {
	return m.state.Load()
}

// Connected reports whether the connection is currently established.
func (m *Manager) Connected() bool {
	return m.state.Load() == StateConnected
}

// StateChanges returns a channel that delivers the current state followed
// by every future transition, and a cancel function that releases the
// subscription. After Close the channel is closed.
func (m *Manager) StateChanges() (<-chan State, func()) {
	return m.state.Subscribe()
}

// Connect establishes the connection, retrying failed attempts until the
// attempt's cancellation scope ends. It returns true once connected and
// false when the attempt was cancelled or the manager is closed.
//
// Concurrent callers share a single attempt: whoever arrives while one is
// running awaits its outcome instead of starting another. The attempt's
// cancellation scope derives from the originating caller's context, so
// cancelling a joiner only detaches that joiner.
func (m *Manager) Connect(ctx context.Context) bool {
	if m.disposed.Load() {
		return false
	}
	if m.state.Load() == StateConnected {
		return true
	}

	m.mu.Lock()
	if a := m.attempt; a != nil {
		m.mu.Unlock()
		return a.await(ctx)
	}
	a := &connectAttempt{done: make(chan struct{}), gen: m.teardowns}
	m.attempt = a
	m.mu.Unlock()

	return m.originate(ctx, a)
}

// originate runs the shared connection attempt as its owner, resolving it
// for every joined caller on all exit paths.
func (m *Manager) originate(ctx context.Context, a *connectAttempt) bool {
	finish := func(ok bool) bool {
		m.mu.Lock()
		a.ok = ok
		m.attempt = nil
		m.mu.Unlock()
		close(a.done)
		return ok
	}

	select {
	case m.gate <- struct{}{}:
	case <-ctx.Done():
		return finish(false)
	case <-m.lifetime.Done():
		return finish(false)
	}
	defer func() { <-m.gate }()

	if m.disposed.Load() {
		return finish(false)
	}
	if m.state.Load() == StateConnected {
		return finish(true)
	}

	m.mu.Lock()
	if a.gen != m.teardowns {
		// A disconnect ran while this attempt was queued on the gate;
		// its intent wins over the stale attempt.
		m.mu.Unlock()
		return finish(false)
	}
	if m.scope != nil && m.scope.Err() != nil {
		// A disconnect cancelled the scope but has not reached its gate
		// turn yet; bail out instead of resurrecting the connection.
		m.mu.Unlock()
		return finish(false)
	}
	if m.scopeCancel != nil {
		m.scopeCancel()
	}
	scope, cancel := context.WithCancel(ctx)
	m.scope = scope
	m.scopeCancel = cancel
	m.mu.Unlock()

	m.keepReconnecting.Store(true)

	return finish(m.runAttempt(scope))
}

// runAttempt drives the retry loop for one connection attempt. The caller
// holds the gate.
func (m *Manager) runAttempt(scope context.Context) bool {
	// A reconnect watcher sets Reconnecting before joining; keep it.
	if m.state.Load() != StateReconnecting {
		m.state.Store(StateConnecting)
	}

	for attempt := 1; ; attempt++ {
		if m.disposed.Load() || scope.Err() != nil {
			break
		}

		if m.tryOnce(scope, attempt) {
			m.state.Store(StateConnected)
			m.logger.Info("connected", "attempts", attempt)
			return true
		}

		select {
		case <-scope.Done():
		case <-time.After(m.opts.RetryInterval):
			continue
		}
		break
	}

	m.state.Store(StateDisconnected)
	return false
}

// tryOnce performs a single bounded connection attempt: create a transport
// if none exists, then start it.
func (m *Manager) tryOnce(scope context.Context, attempt int) bool {
	attemptCtx, cancel := context.WithTimeout(scope, m.opts.StartTimeout)
	defer cancel()

	m.mu.Lock()
	handle := m.handle
	m.mu.Unlock()

	if handle == nil {
		created, err := m.createHandle(attemptCtx)
		if err != nil {
			m.logger.Warn("transport creation failed", "attempt", attempt, "error", err)
			return false
		}
		if created == nil {
			m.logger.Warn("transport unavailable", "attempt", attempt)
			return false
		}
		handle = created

		m.mu.Lock()
		m.handle = handle
		m.mu.Unlock()
	}

	if err := handle.Start(attemptCtx); err != nil {
		m.logger.Warn("connection attempt failed", "attempt", attempt, "error", err)
		return false
	}

	m.startWatcher(handle)
	return true
}

// createHandle asks the provider for a transport, bounded by ctx. When the
// wait times out first, the late result is closed rather than leaked.
func (m *Manager) createHandle(ctx context.Context) (Transport, error) {
	type result struct {
		handle Transport
		err    error
	}

	// Unbuffered on purpose: the send only succeeds while the receiver is
	// still waiting, so an abandoned handle is always detected and closed.
	ch := make(chan result)
	go func() {
		h, err := m.provider.CreateConnection(ctx, m.endpoint)
		select {
		case ch <- result{handle: h, err: err}:
		default:
			if h != nil {
				_ = h.Close()
			}
		}
	}()

	select {
	case r := <-ch:
		return r.handle, r.err
	case <-ctx.Done():
		return nil, &bridgeerrors.TimeoutError{
			Operation: "create transport",
			Duration:  m.opts.StartTimeout,
			Cause:     ctx.Err(),
		}
	}
}

// startWatcher begins watching the transport for closures, replacing any
// earlier watcher registration.
func (m *Manager) startWatcher(handle Transport) {
	stop := make(chan struct{})

	m.mu.Lock()
	m.watchStop = stop
	m.mu.Unlock()

	go m.watchClose(handle, stop)
}

// watchClose waits for the transport to report a closure and reacts to it.
// A graceful disconnect stops the watcher before touching the transport,
// so anything observed here was unexpected.
func (m *Manager) watchClose(handle Transport, stop <-chan struct{}) {
	select {
	case err := <-handle.Closed():
		m.onUnexpectedClose(err)
	case <-stop:
	case <-m.lifetime.Done():
	}
}

// onUnexpectedClose handles a connection dropping out from under us.
func (m *Manager) onUnexpectedClose(cause error) {
	if m.disposed.Load() || !m.keepReconnecting.Load() {
		m.state.Store(StateDisconnected)
		return
	}

	if cause != nil {
		m.logger.Warn("connection lost", "error", cause)
	} else {
		m.logger.Warn("connection closed unexpectedly")
	}

	// Mark before connecting so the attempt preserves Reconnecting rather
	// than reporting a fresh Connecting phase.
	m.state.Store(StateReconnecting)
	m.Connect(m.lifetime)
}

// Disconnect gracefully tears down the connection and disables
// auto-reconnect. Any in-flight connection attempt is cancelled before
// waiting for its turn on the gate. The transport handle is stopped and
// closed; a later Connect builds a fresh one. Cancellation noise from the
// transport stop is folded into a nil return; only unexpected stop
// failures surface.
func (m *Manager) Disconnect(ctx context.Context) error {
	if m.disposed.Load() {
		return ErrClosed
	}

	m.keepReconnecting.Store(false)

	m.mu.Lock()
	m.teardowns++
	if m.scopeCancel != nil {
		m.scopeCancel()
	}
	m.mu.Unlock()

	if m.state.Load() != StateDisconnected {
		m.state.Store(StateDisconnecting)
	}

	select {
	case m.gate <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-m.gate }()

	// A connect that won the gate race may have re-armed reconnection.
	m.keepReconnecting.Store(false)

	m.mu.Lock()
	m.scope = nil
	m.scopeCancel = nil
	stop := m.watchStop
	m.watchStop = nil
	handle := m.handle
	m.handle = nil
	m.mu.Unlock()

	if stop != nil {
		close(stop)
	}

	m.state.Store(StateDisconnected)

	if handle == nil {
		return nil
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), m.opts.StopTimeout)
	defer cancel()

	stopErr := handle.Stop(stopCtx)
	_ = handle.Close()

	if stopErr != nil {
		if errors.Is(stopErr, context.Canceled) || errors.Is(stopErr, context.DeadlineExceeded) {
			return nil
		}
		m.logger.Warn("transport stop failed", "error", stopErr)
		return &bridgeerrors.ConnectionError{
			Endpoint: m.endpoint,
			Message:  "graceful stop failed",
			Cause:    stopErr,
		}
	}

	m.logger.Debug("disconnected")
	return nil
}

// DisconnectImmediate tears the connection down without a graceful stop.
// It is meant for abrupt shutdown paths such as the host closing stdin:
// best effort, bounded waits, and no errors surfaced. The transport handle
// is closed outright, so a later Connect builds a fresh one.
func (m *Manager) DisconnectImmediate() {
	m.keepReconnecting.Store(false)

	m.mu.Lock()
	m.teardowns++
	if m.scopeCancel != nil {
		m.scopeCancel()
	}
	m.mu.Unlock()

	timer := time.NewTimer(m.opts.DisposeTimeout)
	defer timer.Stop()

	acquired := false
	select {
	case m.gate <- struct{}{}:
		acquired = true
	case <-timer.C:
		m.logger.Warn("timed out waiting for in-flight work, forcing teardown")
	}
	if acquired {
		defer func() { <-m.gate }()
	}

	m.keepReconnecting.Store(false)

	m.mu.Lock()
	m.scope = nil
	m.scopeCancel = nil
	stop := m.watchStop
	m.watchStop = nil
	handle := m.handle
	m.handle = nil
	m.mu.Unlock()

	if stop != nil {
		close(stop)
	}

	m.state.Store(StateDisconnected)

	if handle != nil {
		_ = handle.Close()
	}
}

// Close disposes the manager. The first call wins; later calls return nil
// without doing anything. Close cancels any in-flight attempt, waits a
// bounded time for it to release the gate, tears down the transport, and
// closes the state observable last so subscribers observe the final
// disconnected state before their channels close.
func (m *Manager) Close() error {
	if !m.disposed.CompareAndSwap(false, true) {
		return nil
	}

	m.keepReconnecting.Store(false)

	m.mu.Lock()
	m.teardowns++
	if m.scopeCancel != nil {
		m.scopeCancel()
	}
	m.mu.Unlock()

	m.lifetimeCancel()

	timer := time.NewTimer(m.opts.DisposeTimeout)
	defer timer.Stop()

	acquired := false
	select {
	case m.gate <- struct{}{}:
		acquired = true
	case <-timer.C:
		m.logger.Warn("timed out waiting for in-flight work during close")
	}

	m.mu.Lock()
	m.scope = nil
	m.scopeCancel = nil
	stop := m.watchStop
	m.watchStop = nil
	handle := m.handle
	m.handle = nil
	m.mu.Unlock()

	if stop != nil {
		close(stop)
	}

	var closeErr error
	if handle != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), m.opts.StopTimeout)
		_ = handle.Stop(stopCtx)
		cancel()
		closeErr = handle.Close()
	}

	m.state.Store(StateDisconnected)
	m.state.Close()

	if acquired {
		<-m.gate
	}

	m.logger.Debug("manager closed")
	return closeErr
}
