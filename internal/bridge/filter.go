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
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter decides which configured tools are published to clients based on
// allow and block glob patterns. Blocked patterns win over allowed ones,
// and an empty allow list admits everything not blocked.
type Filter struct {
	allowed []string
	blocked []string
}

// NewFilter creates a tool filter from allow and block patterns. Patterns
// use glob syntax ("orders.*", "admin_**"). Invalid patterns are rejected
// up front so a typo cannot silently expose blocked tools.
func NewFilter(allowed, blocked []string) (*Filter, error) {
	for _, pattern := range append(append([]string{}, allowed...), blocked...) {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid tool pattern %q", pattern)
		}
	}
	return &Filter{allowed: allowed, blocked: blocked}, nil
}

// Admits reports whether a tool name passes the filter.
func (f *Filter) Admits(name string) bool {
	for _, pattern := range f.blocked {
		if match, _ := doublestar.Match(pattern, name); match {
			return false
		}
	}

	if len(f.allowed) == 0 {
		return true
	}
	for _, pattern := range f.allowed {
		if match, _ := doublestar.Match(pattern, name); match {
			return true
		}
	}
	return false
}
