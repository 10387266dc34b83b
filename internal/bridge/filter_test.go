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

package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterAdmits(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		blocked []string
		tool    string
		want    bool
	}{
		{
			name: "empty filter admits everything",
			tool: "anything",
			want: true,
		},
		{
			name:    "allowed pattern admits match",
			allowed: []string{"orders.*"},
			tool:    "orders.get",
			want:    true,
		},
		{
			name:    "allowed pattern rejects non-match",
			allowed: []string{"orders.*"},
			tool:    "users.get",
			want:    false,
		},
		{
			name:    "blocked pattern rejects match",
			blocked: []string{"admin_*"},
			tool:    "admin_reset",
			want:    false,
		},
		{
			name:    "blocked wins over allowed",
			allowed: []string{"orders.*"},
			blocked: []string{"orders.delete"},
			tool:    "orders.delete",
			want:    false,
		},
		{
			name:    "exact name in allow list",
			allowed: []string{"get_status"},
			tool:    "get_status",
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFilter(tt.allowed, tt.blocked)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Admits(tt.tool))
		})
	}
}

func TestNewFilterRejectsInvalidPattern(t *testing.T) {
	_, err := NewFilter([]string{"[unclosed"}, nil)
	assert.Error(t, err)

	_, err = NewFilter(nil, []string{"[unclosed"})
	assert.Error(t, err)
}
