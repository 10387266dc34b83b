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
	"testing"

	"github.com/stretchr/testify/assert"

	bridgeerrors "github.com/hubbridge/hubbridge/pkg/errors"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain error", errors.New("boom"), ExitFailure},
		{
			"explicit exit error",
			NewConnectionError("hub unreachable", nil),
			ExitConnection,
		},
		{
			"connection error",
			&bridgeerrors.ConnectionError{Endpoint: "wss://hub", Message: "refused"},
			ExitConnection,
		},
		{
			"timeout error",
			&bridgeerrors.TimeoutError{Operation: "connect"},
			ExitConnection,
		},
		{
			"auth error",
			&bridgeerrors.AuthError{Message: "token rejected"},
			ExitAuth,
		},
		{
			"config error",
			&bridgeerrors.ConfigError{Key: "endpoint", Reason: "missing"},
			ExitInvalidConfig,
		},
		{
			"validation error",
			&bridgeerrors.ValidationError{Field: "endpoint", Message: "bad scheme"},
			ExitInvalidConfig,
		},
		{
			"wrapped connection error",
			fmt.Errorf("serve: %w", &bridgeerrors.ConnectionError{Message: "lost"}),
			ExitConnection,
		},
		{
			"exit error wins over inner type",
			NewAuthError("denied", &bridgeerrors.ConnectionError{Message: "x"}),
			ExitAuth,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCodeFor(tt.err))
		})
	}
}

func TestExitErrorMessage(t *testing.T) {
	err := NewConfigError("bad config", errors.New("yaml: line 3"))
	assert.Equal(t, "bad config: yaml: line 3", err.Error())
	assert.EqualError(t, errors.Unwrap(err), "yaml: line 3")
}
