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

package audit

import (
	"context"
	"log/slog"
	"time"
)

// Observer adapts a Store to the bridge's invocation observer. Write
// failures are logged, never surfaced: a broken audit log must not take
// down tool calls.
type Observer struct {
	store  *Store
	logger *slog.Logger
}

// NewObserver creates an observer writing to the given store.
func NewObserver(store *Store, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{store: store, logger: logger}
}

// ObserveInvocation records an invocation outcome in the audit log. The
// write uses its own timeout so a slow disk cannot stall the caller's
// context chain.
func (o *Observer) ObserveInvocation(ctx context.Context, method string, duration time.Duration, err error) {
	writeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if writeErr := o.store.WriteInvocation(writeCtx, method, duration, err); writeErr != nil {
		o.logger.Warn("audit write failed", "method", method, "error", writeErr)
	}
}
