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
	"log/slog"
	"time"

	"github.com/hubbridge/hubbridge/internal/log"
)

// Default timing for the connection lifecycle.
const (
	// DefaultStartTimeout bounds a single connection attempt, including
	// transport creation.
	DefaultStartTimeout = 30 * time.Second

	// DefaultRetryInterval is the pause between failed connection attempts.
	DefaultRetryInterval = 5 * time.Second

	// DefaultStopTimeout bounds a graceful transport stop.
	DefaultStopTimeout = 5 * time.Second

	// DefaultDisposeTimeout bounds how long Close waits for an in-flight
	// operation to release the connection gate before proceeding anyway.
	DefaultDisposeTimeout = 5 * time.Second
)

// Options configures a Manager.
type Options struct {
	// StartTimeout bounds each individual connection attempt. Zero means
	// DefaultStartTimeout.
	StartTimeout time.Duration

	// RetryInterval is the delay between connection attempts. Zero means
	// DefaultRetryInterval.
	RetryInterval time.Duration

	// StopTimeout bounds graceful disconnects. Zero means
	// DefaultStopTimeout.
	StopTimeout time.Duration

	// DisposeTimeout bounds the gate wait during Close and immediate
	// disconnects. Zero means DefaultDisposeTimeout.
	DisposeTimeout time.Duration

	// Logger receives lifecycle events. Nil means the process default.
	Logger *slog.Logger
}

// withDefaults fills unset options.
func (o Options) withDefaults() Options {
	if o.StartTimeout <= 0 {
		o.StartTimeout = DefaultStartTimeout
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = DefaultRetryInterval
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = DefaultStopTimeout
	}
	if o.DisposeTimeout <= 0 {
		o.DisposeTimeout = DefaultDisposeTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default().With(log.String("component", "hub"))
	}
	return o
}
