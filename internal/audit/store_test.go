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

package audit

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWriteAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteInvocation(ctx, "orders.get", 12*time.Millisecond, nil))
	require.NoError(t, s.WriteInvocation(ctx, "orders.create", 40*time.Millisecond, errors.New("validation failed")))

	records, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first.
	assert.Equal(t, "orders.create", records[0].Method)
	assert.Equal(t, "error", records[0].Outcome)
	assert.Equal(t, "validation failed", records[0].Error)
	assert.Equal(t, 40*time.Millisecond, records[0].Duration)

	assert.Equal(t, "orders.get", records[1].Method)
	assert.Equal(t, "ok", records[1].Outcome)
	assert.Empty(t, records[1].Error)
}

func TestRecentLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.WriteInvocation(ctx, "ping", time.Millisecond, nil))
	}

	records, err := s.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestPrune(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour).UnixMilli()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invocations (ts, method, duration_ms, outcome, error) VALUES (?, 'stale.call', 1, 'ok', '')`,
		old)
	require.NoError(t, err)
	require.NoError(t, s.WriteInvocation(ctx, "fresh.call", time.Millisecond, nil))

	removed, err := s.Prune(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	records, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "fresh.call", records[0].Method)
}

func TestPruneZeroMaxAgeKeepsEverything(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteInvocation(ctx, "ping", time.Millisecond, nil))

	removed, err := s.Prune(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "audit.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.WriteInvocation(context.Background(), "ping", time.Millisecond, nil))
}

func TestObserverSwallowsWriteFailures(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Close())

	o := NewObserver(s, nil)
	// Store is closed; the observer must log and move on, not panic.
	o.ObserveInvocation(context.Background(), "ping", time.Millisecond, nil)
}
