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
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

// keyIndexEntry is the keyring entry that tracks stored keys, since the
// keyring API has no native enumeration.
const keyIndexEntry = "__hubbridge_key_index__"

// availabilityProbe is the sentinel key used to test keyring access.
const availabilityProbe = "__hubbridge_availability_test__"

// KeyringBackend stores secrets in the system keyring.
//
// Supported platforms:
//   - macOS: Keychain Access
//   - Linux: Secret Service API (GNOME Keyring, KWallet)
//   - Windows: Credential Manager
type KeyringBackend struct {
	// service is the keyring service name used for all entries
	service string

	// available indicates if the keyring is accessible
	available bool

	// mu serializes index updates
	mu sync.Mutex
}

// NewKeyringBackend creates a keyring backend. The service parameter is
// the keyring service name (typically "hubbridge"). Availability is probed
// once with a sentinel key.
func NewKeyringBackend(service string) *KeyringBackend {
	b := &KeyringBackend{
		service:   service,
		available: true,
	}

	_, err := keyring.Get(service, availabilityProbe)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		b.available = false
	}

	return b
}

// Name returns the backend identifier.
func (b *KeyringBackend) Name() string {
	return "keyring"
}

// Get retrieves a secret from the system keyring.
func (b *KeyringBackend) Get(ctx context.Context, key string) (string, error) {
	if !b.available {
		return "", fmt.Errorf("%w: system keyring inaccessible", ErrBackendUnavailable)
	}

	value, err := keyring.Get(b.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
		}
		return "", fmt.Errorf("keyring access error: %w", err)
	}

	return value, nil
}

// Set stores a secret in the system keyring and records the key in the
// index entry.
func (b *KeyringBackend) Set(ctx context.Context, key string, value string) error {
	if !b.available {
		return fmt.Errorf("%w: system keyring inaccessible", ErrBackendUnavailable)
	}

	if err := keyring.Set(b.service, key, value); err != nil {
		return fmt.Errorf("keyring write error: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	index := b.readIndex()
	for _, existing := range index {
		if existing == key {
			return nil
		}
	}
	index = append(index, key)
	return b.writeIndex(index)
}

// Delete removes a secret from the system keyring.
func (b *KeyringBackend) Delete(ctx context.Context, key string) error {
	if !b.available {
		return fmt.Errorf("%w: system keyring inaccessible", ErrBackendUnavailable)
	}

	if err := keyring.Delete(b.service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrSecretNotFound, key)
		}
		return fmt.Errorf("keyring delete error: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	index := b.readIndex()
	kept := index[:0]
	for _, existing := range index {
		if existing != key {
			kept = append(kept, existing)
		}
	}
	return b.writeIndex(kept)
}

// List returns the keys recorded in the index entry.
func (b *KeyringBackend) List(ctx context.Context) ([]string, error) {
	if !b.available {
		return nil, fmt.Errorf("%w: system keyring inaccessible", ErrBackendUnavailable)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readIndex(), nil
}

// Available reports whether the keyring responded to the probe.
func (b *KeyringBackend) Available() bool {
	return b.available
}

// Priority returns the backend priority.
func (b *KeyringBackend) Priority() int {
	return KeyringBackendPriority
}

// readIndex loads the key index. A missing or unreadable index is treated
// as empty. Caller holds mu.
func (b *KeyringBackend) readIndex() []string {
	raw, err := keyring.Get(b.service, keyIndexEntry)
	if err != nil || raw == "" {
		return nil
	}
	return strings.Split(raw, "\n")
}

// writeIndex persists the key index. Caller holds mu.
func (b *KeyringBackend) writeIndex(keys []string) error {
	if len(keys) == 0 {
		err := keyring.Delete(b.service, keyIndexEntry)
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("keyring index delete error: %w", err)
		}
		return nil
	}
	if err := keyring.Set(b.service, keyIndexEntry, strings.Join(keys, "\n")); err != nil {
		return fmt.Errorf("keyring index write error: %w", err)
	}
	return nil
}
