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
	"fmt"
	"os"
	"strings"
)

// envSecretPrefix is the prefix for hubbridge secret environment variables.
const envSecretPrefix = "HUBBRIDGE_SECRET_"

// EnvBackend provides read-only access to secrets via environment
// variables of the form HUBBRIDGE_SECRET_<KEY>, where <KEY> is the secret
// key uppercased with dashes and dots replaced by underscores.
type EnvBackend struct{}

// NewEnvBackend creates an environment variable backend.
func NewEnvBackend() *EnvBackend {
	return &EnvBackend{}
}

// Name returns the backend identifier.
func (e *EnvBackend) Name() string {
	return "env"
}

// Get retrieves a secret from the environment.
func (e *EnvBackend) Get(ctx context.Context, key string) (string, error) {
	if value := os.Getenv(e.normalizeKey(key)); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("%w: environment variable not set", ErrSecretNotFound)
}

// Set returns ErrReadOnlyBackend; the environment backend is read-only.
func (e *EnvBackend) Set(ctx context.Context, key string, value string) error {
	return ErrReadOnlyBackend
}

// Delete returns ErrReadOnlyBackend; the environment backend is read-only.
func (e *EnvBackend) Delete(ctx context.Context, key string) error {
	return ErrReadOnlyBackend
}

// List returns the keys of all HUBBRIDGE_SECRET_* environment variables.
func (e *EnvBackend) List(ctx context.Context) ([]string, error) {
	var keys []string
	for _, entry := range os.Environ() {
		name, _, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(name, envSecretPrefix) {
			continue
		}
		keys = append(keys, strings.ToLower(strings.TrimPrefix(name, envSecretPrefix)))
	}
	return keys, nil
}

// Available always returns true; the environment is always readable.
func (e *EnvBackend) Available() bool {
	return true
}

// Priority returns the backend priority. Env is checked first so it can
// override stored values in CI and container environments.
func (e *EnvBackend) Priority() int {
	return EnvBackendPriority
}

// normalizeKey maps a secret key to its environment variable name.
func (e *EnvBackend) normalizeKey(key string) string {
	normalized := strings.ToUpper(key)
	normalized = strings.NewReplacer("-", "_", ".", "_", "/", "_").Replace(normalized)
	return envSecretPrefix + normalized
}
