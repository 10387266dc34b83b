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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestFileBackendRoundTrip(t *testing.T) {
	t.Setenv("HUBBRIDGE_MASTER_KEY", "test-master-key")

	path := filepath.Join(t.TempDir(), "secrets.enc")
	b, err := NewFileBackend(path)
	require.NoError(t, err)
	require.True(t, b.Available())

	ctx := context.Background()

	_, err = b.Get(ctx, "hub-token")
	assert.ErrorIs(t, err, ErrSecretNotFound)

	require.NoError(t, b.Set(ctx, "hub-token", "s3cret"))

	value, err := b.Get(ctx, "hub-token")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", value)

	keys, err := b.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"hub-token"}, keys)

	require.NoError(t, b.Delete(ctx, "hub-token"))
	_, err = b.Get(ctx, "hub-token")
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestFileBackendWrongMasterKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.enc")

	t.Setenv("HUBBRIDGE_MASTER_KEY", "first-key")
	b1, err := NewFileBackend(path)
	require.NoError(t, err)
	require.NoError(t, b1.Set(context.Background(), "hub-token", "value"))

	t.Setenv("HUBBRIDGE_MASTER_KEY", "different-key")
	b2, err := NewFileBackend(path)
	require.NoError(t, err)

	_, err = b2.Get(context.Background(), "hub-token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decryption failed")
}

func TestFileBackendUnavailableWithoutMasterKey(t *testing.T) {
	t.Setenv("HUBBRIDGE_MASTER_KEY", "")

	path := filepath.Join(t.TempDir(), "secrets.enc")
	b, err := NewFileBackend(path)
	require.NoError(t, err)
	assert.False(t, b.Available())

	_, err = b.Get(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestEnvBackend(t *testing.T) {
	t.Setenv("HUBBRIDGE_SECRET_HUB_TOKEN", "env-value")

	b := NewEnvBackend()
	ctx := context.Background()

	value, err := b.Get(ctx, "hub-token")
	require.NoError(t, err)
	assert.Equal(t, "env-value", value)

	// Dots normalize to underscores too.
	t.Setenv("HUBBRIDGE_SECRET_ORDERS_API", "other")
	value, err = b.Get(ctx, "orders.api")
	require.NoError(t, err)
	assert.Equal(t, "other", value)

	_, err = b.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrSecretNotFound)

	assert.ErrorIs(t, b.Set(ctx, "k", "v"), ErrReadOnlyBackend)
	assert.ErrorIs(t, b.Delete(ctx, "k"), ErrReadOnlyBackend)
}

func TestKeyringBackendRoundTrip(t *testing.T) {
	keyring.MockInit()

	b := NewKeyringBackend("hubbridge-test")
	require.True(t, b.Available())

	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "hub-token", "ring-value"))

	value, err := b.Get(ctx, "hub-token")
	require.NoError(t, err)
	assert.Equal(t, "ring-value", value)

	keys, err := b.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, keys, "hub-token")

	require.NoError(t, b.Delete(ctx, "hub-token"))
	_, err = b.Get(ctx, "hub-token")
	assert.ErrorIs(t, err, ErrSecretNotFound)

	keys, err = b.List(ctx)
	require.NoError(t, err)
	assert.NotContains(t, keys, "hub-token")
}

// fakeBackend is a scriptable in-memory backend for resolver tests.
type fakeBackend struct {
	name      string
	priority  int
	available bool
	readOnly  bool
	values    map[string]string
}

func newFakeBackend(name string, priority int) *fakeBackend {
	return &fakeBackend{
		name:      name,
		priority:  priority,
		available: true,
		values:    make(map[string]string),
	}
}

func (f *fakeBackend) Name() string   { return f.name }
func (f *fakeBackend) Priority() int  { return f.priority }
func (f *fakeBackend) Available() bool { return f.available }

func (f *fakeBackend) Get(ctx context.Context, key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	}
	return v, nil
}

func (f *fakeBackend) Set(ctx context.Context, key, value string) error {
	if f.readOnly {
		return ErrReadOnlyBackend
	}
	f.values[key] = value
	return nil
}

func (f *fakeBackend) Delete(ctx context.Context, key string) error {
	if f.readOnly {
		return ErrReadOnlyBackend
	}
	if _, ok := f.values[key]; !ok {
		return fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	}
	delete(f.values, key)
	return nil
}

func (f *fakeBackend) List(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, len(f.values))
	for k := range f.values {
		keys = append(keys, k)
	}
	return keys, nil
}

func TestResolverPriorityOrder(t *testing.T) {
	high := newFakeBackend("high", 100)
	low := newFakeBackend("low", 10)
	high.values["k"] = "from-high"
	low.values["k"] = "from-low"

	// Registration order must not matter.
	r := NewResolver(low, high)

	value, err := r.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "from-high", value)
}

func TestResolverFallsThroughUnavailableAndMissing(t *testing.T) {
	unavailable := newFakeBackend("unavailable", 100)
	unavailable.available = false
	unavailable.values["k"] = "hidden"

	missing := newFakeBackend("missing", 50)

	holder := newFakeBackend("holder", 10)
	holder.values["k"] = "found"

	r := NewResolver(unavailable, missing, holder)

	value, err := r.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "found", value)

	_, err = r.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestResolverSetSkipsReadOnly(t *testing.T) {
	ro := newFakeBackend("ro", 100)
	ro.readOnly = true
	rw := newFakeBackend("rw", 50)

	r := NewResolver(ro, rw)

	name, err := r.Set(context.Background(), "k", "v")
	require.NoError(t, err)
	assert.Equal(t, "rw", name)
	assert.Equal(t, "v", rw.values["k"])
}

func TestResolverDeleteAcrossBackends(t *testing.T) {
	a := newFakeBackend("a", 100)
	b := newFakeBackend("b", 50)
	a.values["k"] = "1"
	b.values["k"] = "2"

	r := NewResolver(a, b)

	require.NoError(t, r.Delete(context.Background(), "k"))
	assert.Empty(t, a.values)
	assert.Empty(t, b.values)

	assert.ErrorIs(t, r.Delete(context.Background(), "k"), ErrSecretNotFound)
}
