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

package shared

import (
	"errors"
	"fmt"
	"os"

	bridgeerrors "github.com/hubbridge/hubbridge/pkg/errors"
)

// Exit codes for hubbridge commands
const (
	ExitSuccess       = 0
	ExitFailure       = 1
	ExitInvalidConfig = 2
	ExitConnection    = 3
	ExitAuth          = 4
)

// ExitError is an error that carries an exit code
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates an error for invalid configuration
func NewConfigError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitInvalidConfig, Message: msg, Cause: cause}
}

// NewConnectionError creates an error for hub connection failures
func NewConnectionError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitConnection, Message: msg, Cause: cause}
}

// NewAuthError creates an error for authentication failures
func NewAuthError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitAuth, Message: msg, Cause: cause}
}

// ExitCodeFor maps an error to its exit code. ExitError wins; otherwise
// the typed error taxonomy decides, and anything unclassified is a plain
// failure.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	var (
		authErr       *bridgeerrors.AuthError
		connErr       *bridgeerrors.ConnectionError
		timeoutErr    *bridgeerrors.TimeoutError
		configErr     *bridgeerrors.ConfigError
		validationErr *bridgeerrors.ValidationError
	)
	switch {
	case errors.As(err, &authErr):
		return ExitAuth
	case errors.As(err, &connErr), errors.As(err, &timeoutErr):
		return ExitConnection
	case errors.As(err, &configErr), errors.As(err, &validationErr):
		return ExitInvalidConfig
	default:
		return ExitFailure
	}
}

// HandleExitError prints the error and exits with its mapped code.
func HandleExitError(err error) {
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "Error:", err.Error())
	printSuggestion(err)
	os.Exit(ExitCodeFor(err))
}

// printSuggestion walks the error chain for a validation error carrying an
// actionable suggestion.
func printSuggestion(err error) {
	for err != nil {
		var validationErr *bridgeerrors.ValidationError
		if errors.As(err, &validationErr) && validationErr.Suggestion != "" {
			fmt.Fprintf(os.Stderr, "\nSuggestion: %s\n", validationErr.Suggestion)
			return
		}
		err = errors.Unwrap(err)
	}
}
