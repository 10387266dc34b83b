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

// Package secrets stores hub credentials outside the config file. Backends
// implement different storage mechanisms (system keyring, encrypted file,
// environment) and are queried in priority order by the Resolver.
package secrets

import (
	"context"
	"errors"
)

var (
	// ErrSecretNotFound is returned when a key does not exist in a backend.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrBackendUnavailable is returned when a backend cannot be used in
	// the current environment.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrReadOnlyBackend is returned when attempting to modify a read-only
	// backend.
	ErrReadOnlyBackend = errors.New("backend is read-only")
)

// Backend provides secure storage for sensitive values.
type Backend interface {
	// Name returns the backend identifier (e.g., "keyring", "file", "env").
	Name() string

	// Get retrieves a secret by key. Returns ErrSecretNotFound if not
	// present.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a secret. Returns ErrReadOnlyBackend if not supported.
	Set(ctx context.Context, key string, value string) error

	// Delete removes a secret. Returns ErrSecretNotFound if not present
	// and ErrReadOnlyBackend if not supported.
	Delete(ctx context.Context, key string) error

	// List returns all secret keys (not values) managed by this backend.
	List(ctx context.Context) ([]string, error)

	// Available reports whether this backend is usable right now. For
	// example, keyring returns false when no keyring service is running.
	Available() bool

	// Priority returns the resolution priority (higher = checked first).
	// Standard priorities: env (100), keyring (50), file (25).
	Priority() int
}

// Backend priorities.
const (
	EnvBackendPriority     = 100
	KeyringBackendPriority = 50
	FileBackendPriority    = 25
)
