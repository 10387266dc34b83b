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

package errors_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	bridgeerrors "github.com/hubbridge/hubbridge/pkg/errors"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *bridgeerrors.ValidationError
		wantMsg string
	}{
		{
			name: "with field",
			err: &bridgeerrors.ValidationError{
				Field:      "endpoint",
				Message:    "required field is missing",
				Suggestion: "Set the hub endpoint in config",
			},
			wantMsg: "validation failed on endpoint: required field is missing",
		},
		{
			name: "without field",
			err: &bridgeerrors.ValidationError{
				Message:    "invalid format",
				Suggestion: "Check the input format",
			},
			wantMsg: "validation failed: invalid format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("ValidationError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestNotFoundError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *bridgeerrors.NotFoundError
		wantMsg string
	}{
		{
			name: "tool not found",
			err: &bridgeerrors.NotFoundError{
				Resource: "tool",
				ID:       "orders_list",
			},
			wantMsg: "tool not found: orders_list",
		},
		{
			name: "secret not found",
			err: &bridgeerrors.NotFoundError{
				Resource: "secret",
				ID:       "hub-token",
			},
			wantMsg: "secret not found: hub-token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("NotFoundError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestConnectionError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *bridgeerrors.ConnectionError
		want []string
	}{
		{
			name: "with endpoint",
			err: &bridgeerrors.ConnectionError{
				Endpoint: "wss://hub.example.com/bridge",
				Message:  "dial refused",
			},
			want: []string{"wss://hub.example.com/bridge", "dial refused"},
		},
		{
			name: "without endpoint",
			err: &bridgeerrors.ConnectionError{
				Message: "handshake rejected",
			},
			want: []string{"connection failed", "handshake rejected"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("ConnectionError.Error() = %q, want substring %q", got, want)
				}
			}
		})
	}
}

func TestConnectionError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := &bridgeerrors.ConnectionError{
		Endpoint:  "wss://hub.example.com/bridge",
		Message:   "transport closed",
		Retryable: true,
		Cause:     cause,
	}

	if !errors.Is(err, cause) {
		t.Errorf("expected errors.Is to find the cause")
	}

	if !err.IsRetryable() {
		t.Errorf("expected connection error to be retryable")
	}

	if err.ErrorType() != "connection" {
		t.Errorf("expected error type 'connection', got %q", err.ErrorType())
	}
}

func TestInvokeError_Error(t *testing.T) {
	err := &bridgeerrors.InvokeError{
		Method:       "Orders.List",
		InvocationID: "inv-7",
		Message:      "remote handler panicked",
	}

	got := err.Error()
	for _, want := range []string{"Orders.List", "inv-7", "remote handler panicked"} {
		if !strings.Contains(got, want) {
			t.Errorf("InvokeError.Error() = %q, want substring %q", got, want)
		}
	}
}

func TestInvokeError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("completion error")
	err := &bridgeerrors.InvokeError{
		Method:  "Orders.List",
		Message: "remote failure",
		Cause:   cause,
	}

	if !errors.Is(err, cause) {
		t.Errorf("expected errors.Is to find the cause")
	}
}

func TestConfigError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *bridgeerrors.ConfigError
		wantMsg string
	}{
		{
			name: "with key",
			err: &bridgeerrors.ConfigError{
				Key:    "auth.mode",
				Reason: "unknown mode",
			},
			wantMsg: "config error at auth.mode: unknown mode",
		},
		{
			name: "without key",
			err: &bridgeerrors.ConfigError{
				Reason: "file unreadable",
			},
			wantMsg: "config error: file unreadable",
		},
		{
			name: "with cause",
			err: &bridgeerrors.ConfigError{
				Key:    "validation",
				Reason: "configuration validation failed",
				Cause:  fmt.Errorf("endpoint is required"),
			},
			wantMsg: "config error at validation: configuration validation failed: endpoint is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("ConfigError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestAuthError_Error(t *testing.T) {
	err := &bridgeerrors.AuthError{
		Mode:    "client_credentials",
		Message: "token endpoint returned 401",
	}

	got := err.Error()
	if !strings.Contains(got, "client_credentials") || !strings.Contains(got, "401") {
		t.Errorf("AuthError.Error() = %q, missing expected substrings", got)
	}
}

func TestTimeoutError_Error(t *testing.T) {
	err := &bridgeerrors.TimeoutError{
		Operation: "transport start",
		Duration:  30 * time.Second,
	}

	got := err.Error()
	if !strings.Contains(got, "transport start") || !strings.Contains(got, "30s") {
		t.Errorf("TimeoutError.Error() = %q, missing expected substrings", got)
	}

	if !err.IsRetryable() {
		t.Errorf("expected timeout to be retryable")
	}
}

func TestWrap(t *testing.T) {
	base := errors.New("boom")

	wrapped := bridgeerrors.Wrap(base, "doing work")
	if wrapped == nil {
		t.Fatalf("expected non-nil wrapped error")
	}
	if !errors.Is(wrapped, base) {
		t.Errorf("expected wrapped error to match base via errors.Is")
	}
	if !strings.Contains(wrapped.Error(), "doing work") {
		t.Errorf("expected wrapped message to contain context, got %q", wrapped.Error())
	}

	if bridgeerrors.Wrap(nil, "context") != nil {
		t.Errorf("expected Wrap(nil) to return nil")
	}
}

func TestWrapf(t *testing.T) {
	base := errors.New("boom")

	wrapped := bridgeerrors.Wrapf(base, "starting transport for %s", "wss://hub")
	if !strings.Contains(wrapped.Error(), "wss://hub") {
		t.Errorf("expected formatted context, got %q", wrapped.Error())
	}

	if bridgeerrors.Wrapf(nil, "context %d", 1) != nil {
		t.Errorf("expected Wrapf(nil) to return nil")
	}
}
