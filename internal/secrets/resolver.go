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

package secrets

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Resolver queries secret backends in priority order.
type Resolver struct {
	backends []Backend
}

// NewResolver creates a resolver over the given backends, ordered by
// descending priority.
func NewResolver(backends ...Backend) *Resolver {
	sorted := make([]Backend, len(backends))
	copy(sorted, backends)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() > sorted[j].Priority()
	})
	return &Resolver{backends: sorted}
}

// DefaultResolver builds the standard backend stack: environment,
// system keyring, encrypted file. An empty filePath uses the default
// secrets file location.
func DefaultResolver(service, filePath string) (*Resolver, error) {
	fileBackend, err := NewFileBackend(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize file backend: %w", err)
	}

	return NewResolver(
		NewEnvBackend(),
		NewKeyringBackend(service),
		fileBackend,
	), nil
}

// Get returns the secret from the highest-priority available backend that
// has it. Returns ErrSecretNotFound when no backend holds the key.
func (r *Resolver) Get(ctx context.Context, key string) (string, error) {
	for _, backend := range r.backends {
		if !backend.Available() {
			continue
		}

		value, err := backend.Get(ctx, key)
		if err == nil {
			return value, nil
		}
		if errors.Is(err, ErrSecretNotFound) {
			continue
		}
		return "", fmt.Errorf("backend %s: %w", backend.Name(), err)
	}

	return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
}

// Set stores the secret in the highest-priority available writable
// backend and returns that backend's name.
func (r *Resolver) Set(ctx context.Context, key, value string) (string, error) {
	for _, backend := range r.backends {
		if !backend.Available() {
			continue
		}

		err := backend.Set(ctx, key, value)
		if err == nil {
			return backend.Name(), nil
		}
		if errors.Is(err, ErrReadOnlyBackend) {
			continue
		}
		return "", fmt.Errorf("backend %s: %w", backend.Name(), err)
	}

	return "", fmt.Errorf("%w: no writable backend", ErrBackendUnavailable)
}

// Delete removes the secret from every available backend that holds it.
// Returns ErrSecretNotFound when none did.
func (r *Resolver) Delete(ctx context.Context, key string) error {
	deleted := false

	for _, backend := range r.backends {
		if !backend.Available() {
			continue
		}

		err := backend.Delete(ctx, key)
		if err == nil {
			deleted = true
			continue
		}
		if errors.Is(err, ErrSecretNotFound) || errors.Is(err, ErrReadOnlyBackend) {
			continue
		}
		return fmt.Errorf("backend %s: %w", backend.Name(), err)
	}

	if !deleted {
		return fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	}
	return nil
}

// List returns the union of keys across available backends, annotated by
// backend name.
func (r *Resolver) List(ctx context.Context) (map[string][]string, error) {
	result := make(map[string][]string)

	for _, backend := range r.backends {
		if !backend.Available() {
			continue
		}

		keys, err := backend.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("backend %s: %w", backend.Name(), err)
		}
		if len(keys) > 0 {
			sort.Strings(keys)
			result[backend.Name()] = keys
		}
	}

	return result, nil
}

// Backends returns the resolver's backends in priority order.
func (r *Resolver) Backends() []Backend {
	return r.backends
}
