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

package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInvocationLoggerSuccess(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	il := NewInvocationLogger(logger)
	il.ObserveInvocation(context.Background(), "orders.get", 120*time.Millisecond, nil)

	out := buf.String()
	assert.Contains(t, out, "invocation completed")
	assert.Contains(t, out, "method=orders.get")
	assert.Contains(t, out, "duration_ms=120")
	assert.NotContains(t, out, "error=")
}

func TestInvocationLoggerFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	il := NewInvocationLogger(logger)
	il.ObserveInvocation(context.Background(), "orders.get", 50*time.Millisecond, errors.New("hub unreachable"))

	out := buf.String()
	assert.Contains(t, out, "invocation failed")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "hub unreachable")
}

func TestInvocationLoggerSuccessBelowDebugIsSilent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	il := NewInvocationLogger(logger)
	il.ObserveInvocation(context.Background(), "orders.get", time.Millisecond, nil)

	assert.Empty(t, buf.String())
}
