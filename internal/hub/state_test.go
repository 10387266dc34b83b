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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{StateReconnecting, "reconnecting"},
		{StateDisconnecting, "disconnecting"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.String())
		})
	}
}

func TestObservable_SubscribeDeliversCurrentValue(t *testing.T) {
	o := newObservable(StateConnected)

	ch, cancel := o.Subscribe()
	defer cancel()

	select {
	case got := <-ch:
		assert.Equal(t, StateConnected, got)
	default:
		t.Fatal("expected the current value to be buffered at subscription")
	}
}

func TestObservable_NotifiesTransitions(t *testing.T) {
	o := newObservable(StateDisconnected)

	ch, cancel := o.Subscribe()
	defer cancel()

	require.Equal(t, StateDisconnected, <-ch)

	o.Store(StateConnecting)
	o.Store(StateConnected)

	assert.Equal(t, StateConnecting, <-ch)
	assert.Equal(t, StateConnected, <-ch)
}

func TestObservable_SkipsDuplicateStores(t *testing.T) {
	o := newObservable(StateDisconnected)

	ch, cancel := o.Subscribe()
	defer cancel()

	require.Equal(t, StateDisconnected, <-ch)

	o.Store(StateDisconnected)
	o.Store(StateDisconnected)
	o.Store(StateConnecting)

	assert.Equal(t, StateConnecting, <-ch)
	assert.Empty(t, ch)
}

func TestObservable_SlowSubscriberConverges(t *testing.T) {
	o := newObservable(0)

	ch, cancel := o.Subscribe()
	defer cancel()

	// Overflow the subscriber buffer without draining it. Intermediate
	// values may be dropped, but the publisher must not block and the
	// subscriber must still end on the latest value.
	last := 0
	for i := 1; i <= subscriberBuffer*3; i++ {
		o.Store(i)
		last = i
	}

	var got int
	for {
		select {
		case v := <-ch:
			got = v
			continue
		default:
		}
		break
	}
	assert.Equal(t, last, got)
	assert.Equal(t, last, o.Load())
}

func TestObservable_CancelClosesChannel(t *testing.T) {
	o := newObservable(StateDisconnected)

	ch, cancel := o.Subscribe()
	<-ch
	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)

	// Stores after cancellation must not panic.
	o.Store(StateConnected)
}

func TestObservable_CloseClosesAllSubscribers(t *testing.T) {
	o := newObservable(StateDisconnected)

	ch1, cancel1 := o.Subscribe()
	ch2, cancel2 := o.Subscribe()
	defer cancel1()
	defer cancel2()

	<-ch1
	<-ch2

	o.Close()
	o.Close()

	_, open1 := <-ch1
	_, open2 := <-ch2
	assert.False(t, open1)
	assert.False(t, open2)

	// Stores after close are ignored, and the last value remains readable.
	o.Store(StateConnected)
	assert.Equal(t, StateDisconnected, o.Load())
}

func TestObservable_SubscribeAfterClose(t *testing.T) {
	o := newObservable(StateDisconnected)
	o.Close()

	ch, cancel := o.Subscribe()
	defer cancel()

	_, open := <-ch
	assert.False(t, open)
}
