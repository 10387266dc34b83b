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
	"context"
	"log/slog"
	"time"
)

// InvocationLogger logs completed hub invocations. It satisfies the
// bridge's observer contract so invocation logging composes with metrics
// and audit without the server knowing about any of them.
type InvocationLogger struct {
	logger *slog.Logger
}

// NewInvocationLogger creates an invocation logger.
func NewInvocationLogger(logger *slog.Logger) *InvocationLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvocationLogger{logger: logger}
}

// ObserveInvocation logs one completed invocation. Successes log at
// debug so routine traffic stays out of the way; failures log at warn
// with the error.
func (l *InvocationLogger) ObserveInvocation(ctx context.Context, method string, duration time.Duration, err error) {
	if err != nil {
		l.logger.Log(ctx, slog.LevelWarn, "invocation failed",
			"method", method,
			"duration_ms", duration.Milliseconds(),
			"error", err.Error(),
		)
		return
	}

	l.logger.Log(ctx, slog.LevelDebug, "invocation completed",
		"method", method,
		"duration_ms", duration.Milliseconds(),
	)
}
