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
	"encoding/json"
)

// Provider creates transport connections for a manager. Implementations
// decide the wire protocol; the manager only drives the lifecycle.
type Provider interface {
	// CreateConnection builds a transport for the given endpoint. It may
	// return (nil, nil) when no connection can be provided right now, for
	// example because the endpoint is not yet resolvable; the manager
	// treats that the same as a failed attempt.
	CreateConnection(ctx context.Context, endpoint string) (Transport, error)
}

// Transport is a single logical connection to a hub endpoint. Start may
// run again after a failed attempt or an unexpected closure; once Stop or
// Close has run the manager discards the handle and builds a fresh one.
type Transport interface {
	// Start establishes the underlying connection. It may be called again
	// after a failed or dropped connection to reconnect.
	Start(ctx context.Context) error

	// Invoke calls the named hub method and returns the raw result.
	Invoke(ctx context.Context, method string, payload any) (json.RawMessage, error)

	// Stop gracefully shuts down the underlying connection.
	Stop(ctx context.Context) error

	// Close releases all transport resources. The transport cannot be
	// restarted afterwards.
	Close() error

	// State reports the transport's own view of the connection.
	State() State

	// Closed returns a channel that delivers one event per connection
	// closure. A nil value means the closure was clean; a non-nil error
	// carries the cause. The channel is re-armed across restarts.
	Closed() <-chan error
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, endpoint string) (Transport, error)

// CreateConnection calls f.
func (f ProviderFunc) CreateConnection(ctx context.Context, endpoint string) (Transport, error) {
	return f(ctx, endpoint)
}
