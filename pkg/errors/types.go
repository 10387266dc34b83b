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

package errors

import (
	"fmt"
	"time"
)

// ValidationError represents user input validation failures.
// Use this for invalid user input, malformed data, or constraint violations.
type ValidationError struct {
	// Field identifies which input field failed validation
	Field string

	// Message is the human-readable error description
	Message string

	// Suggestion provides actionable guidance for fixing the error
	Suggestion string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// NotFoundError represents a resource not found error.
// Use this when a requested resource does not exist.
type NotFoundError struct {
	// Resource is the type of resource (e.g., "tool", "secret", "method")
	Resource string

	// ID is the identifier that was not found
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ConnectionError represents failures establishing or maintaining the
// hub connection. Use this for dial failures, handshake rejections, and
// unexpected transport closure.
type ConnectionError struct {
	// Endpoint is the hub address the connection targets
	Endpoint string

	// Message is the human-readable error message
	Message string

	// Retryable indicates whether the failure is transient
	Retryable bool

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("connection to %s failed: %s", e.Endpoint, e.Message)
	}
	return fmt.Sprintf("connection failed: %s", e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// ErrorType returns the error category for classification.
func (e *ConnectionError) ErrorType() string {
	return "connection"
}

// IsRetryable reports whether the operation should be retried.
func (e *ConnectionError) IsRetryable() bool {
	return e.Retryable
}

// InvokeError represents a failed hub method invocation.
// Use this for remote errors, completion errors, and dispatch failures.
type InvokeError struct {
	// Method is the hub method name that was invoked
	Method string

	// InvocationID correlates this error with protocol frames and logs
	InvocationID string

	// Message is the human-readable error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *InvokeError) Error() string {
	msg := fmt.Sprintf("invoke %s failed", e.Method)

	msg = fmt.Sprintf("%s: %s", msg, e.Message)

	if e.InvocationID != "" {
		msg = fmt.Sprintf("%s (invocation-id: %s)", msg, e.InvocationID)
	}

	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *InvokeError) Unwrap() error {
	return e.Cause
}

// ConfigError represents configuration problems.
// Use this for configuration file errors, missing settings, or invalid config values.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "endpoint", "auth.mode")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config error: %s", e.Reason)
	if e.Key != "" {
		msg = fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// AuthError represents authentication failures against the hub.
// Use this for token acquisition failures and rejected credentials.
type AuthError struct {
	// Mode is the auth mode in use (e.g., "static", "client_credentials")
	Mode string

	// Message is the human-readable error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Mode != "" {
		return fmt.Sprintf("auth (%s) failed: %s", e.Mode, e.Message)
	}
	return fmt.Sprintf("auth failed: %s", e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *AuthError) Unwrap() error {
	return e.Cause
}

// TimeoutError represents operation timeouts.
// Use this when an operation exceeds its configured timeout.
type TimeoutError struct {
	// Operation describes what timed out (e.g., "transport start", "invoke")
	Operation string

	// Duration is how long the operation ran before timing out
	Duration time.Duration

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s operation timed out after %v", e.Operation, e.Duration)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// ErrorType returns the error category for classification.
func (e *TimeoutError) ErrorType() string {
	return "timeout"
}

// IsRetryable reports whether the operation should be retried.
// Timeouts are transient by definition.
func (e *TimeoutError) IsRetryable() bool {
	return true
}
