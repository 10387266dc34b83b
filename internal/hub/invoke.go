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

	bridgeerrors "github.com/hubbridge/hubbridge/pkg/errors"
)

// ensureConnection makes sure a connection exists before an invocation.
// After an intentional disconnect it fails fast instead of reconnecting;
// otherwise it connects implicitly.
func (m *Manager) ensureConnection(ctx context.Context) error {
	if m.disposed.Load() {
		return ErrClosed
	}
	if m.state.Load() == StateConnected {
		return nil
	}
	if !m.keepReconnecting.Load() {
		return &bridgeerrors.ConnectionError{
			Endpoint:  m.endpoint,
			Message:   "manager is disconnected",
			Retryable: false,
		}
	}
	if !m.Connect(ctx) {
		return &bridgeerrors.ConnectionError{
			Endpoint:  m.endpoint,
			Message:   "could not establish connection",
			Retryable: true,
		}
	}
	return nil
}

// InvokeRaw calls a hub method and returns the raw JSON result, connecting
// first if necessary. Callers that want typed results and are content with
// zero values on failure should use Invoke instead.
func (m *Manager) InvokeRaw(ctx context.Context, method string, payload any) (json.RawMessage, error) {
	if err := m.ensureConnection(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	handle := m.handle
	m.mu.Unlock()

	if handle == nil {
		return nil, &bridgeerrors.ConnectionError{
			Endpoint:  m.endpoint,
			Message:   "no transport available",
			Retryable: true,
		}
	}

	result, err := handle.Invoke(ctx, method, payload)
	if err != nil {
		return nil, &bridgeerrors.InvokeError{
			Method:  method,
			Message: "invocation failed",
			Cause:   err,
		}
	}
	return result, nil
}

// Invoke calls a hub method and decodes the result into T. Every failure
// mode, from a missing connection to a result that does not decode, yields
// the zero value of T; Invoke never panics. Use InvokeRaw when the error
// matters.
func Invoke[T any](ctx context.Context, m *Manager, method string, payload any) T {
	var zero T

	raw, err := m.InvokeRaw(ctx, method, payload)
	if err != nil {
		m.logger.Debug("invocation yielded no result", "method", method, "error", err)
		return zero
	}
	if len(raw) == 0 || string(raw) == "null" {
		return zero
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		m.logger.Warn("invocation result did not decode", "method", method, "error", err)
		return zero
	}
	return out
}
