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
	"log/slog"
	"time"
)

// Default transport timing.
const (
	// DefaultHandshakeTimeout bounds the WebSocket dial plus protocol
	// handshake.
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultWriteTimeout bounds each frame write.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultPingInterval is the keepalive cadence. A connection with no
	// sign of life for twice this interval is considered stale.
	DefaultPingInterval = 15 * time.Second
)

// TokenSource supplies the bearer token attached to connection requests.
// An empty token means connect without credentials.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Options configures the WebSocket transport.
type Options struct {
	// HandshakeTimeout bounds dialing and handshaking. Zero means
	// DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration

	// WriteTimeout bounds individual frame writes. Zero means
	// DefaultWriteTimeout.
	WriteTimeout time.Duration

	// PingInterval is the keepalive cadence. Zero means
	// DefaultPingInterval.
	PingInterval time.Duration

	// TokenSource supplies credentials for the connection. Nil connects
	// anonymously.
	TokenSource TokenSource

	// Logger receives transport events. Nil means the process default.
	Logger *slog.Logger
}

// withDefaults fills unset options.
func (o Options) withDefaults() Options {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.PingInterval <= 0 {
		o.PingInterval = DefaultPingInterval
	}
	if o.Logger == nil {
		o.Logger = slog.Default().With("component", "transport")
	}
	return o
}
