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
	"sync"
	"sync/atomic"
)

// State represents the connection state of the hub link.
type State uint32

// Connection states.
const (
	// StateDisconnected indicates no live connection exists.
	StateDisconnected State = iota
	// StateConnecting indicates a connection attempt is in progress.
	StateConnecting
	// StateConnected indicates the connection is established and usable.
	StateConnected
	// StateReconnecting indicates the connection dropped and an automatic
	// reconnect attempt is in progress.
	StateReconnecting
	// StateDisconnecting indicates an intentional teardown is in progress.
	StateDisconnecting
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// subscriberBuffer is the channel capacity handed to each subscriber.
// When a subscriber falls further behind than this, the oldest pending
// notification is dropped so the publisher never blocks; the subscriber
// still converges on the latest value.
const subscriberBuffer = 16

// observable holds a value and notifies subscribers of changes.
// Subscribers receive the value current at subscription time followed by
// every subsequent transition. Reads are lock-free.
type observable[T comparable] struct {
	// cur is the current value, readable without the lock
	cur atomic.Pointer[T]

	// mu protects the subscriber map
	mu sync.Mutex

	// subs maps subscription ids to notification channels
	subs map[uint64]chan T

	// nextID is the next subscription id
	nextID uint64

	// closed prevents new notifications after shutdown
	closed bool
}

// newObservable creates an observable with the given initial value.
func newObservable[T comparable](initial T) *observable[T] {
	o := &observable[T]{
		subs: make(map[uint64]chan T),
	}
	o.cur.Store(&initial)
	return o
}

// Load returns the current value.
func (o *observable[T]) Load() T {
	return *o.cur.Load()
}

// Store sets the current value and notifies all subscribers.
// Setting the same value again is not a transition and produces no
// notification. Stores after Close are ignored.
func (o *observable[T]) Store(v T) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || *o.cur.Load() == v {
		return
	}
	o.cur.Store(&v)

	for _, ch := range o.subs {
		select {
		case ch <- v:
		default:
			// Subscriber is behind; drop the oldest notification
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}

// Subscribe registers a new subscriber. The returned channel immediately
// receives the current value, then every future transition. The returned
// cancel function removes the subscription and closes the channel.
func (o *observable[T]) Subscribe() (<-chan T, func()) {
	ch := make(chan T, subscriberBuffer)

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		close(ch)
		return ch, func() {}
	}

	id := o.nextID
	o.nextID++
	o.subs[id] = ch
	ch <- o.Load()
	o.mu.Unlock()

	cancel := func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if _, ok := o.subs[id]; ok {
			delete(o.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Close shuts down the observable and closes all subscriber channels.
// Subsequent Store calls are ignored.
func (o *observable[T]) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	o.closed = true

	for id, ch := range o.subs {
		delete(o.subs, id)
		close(ch)
	}
}
