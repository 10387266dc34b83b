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

// Package audit persists a local log of hub invocations to SQLite.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one audited hub invocation.
type Record struct {
	ID       int64
	Time     time.Time
	Method   string
	Duration time.Duration
	Outcome  string
	Error    string
}

// Store is a SQLite-backed invocation log.
type Store struct {
	db *sql.DB
}

// Open creates or opens the audit database at path. The special value
// ":memory:" creates an in-memory database for tests.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("audit: database path is required")
	}

	// WAL mode lets the metrics listener read while the bridge writes.
	connStr := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("audit: failed to create database directory: %w", err)
		}
		connStr += "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: failed to connect to database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: failed to run migrations: %w", err)
	}

	return s, nil
}

// migrate creates the schema.
func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS invocations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			method TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_invocations_ts ON invocations(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_invocations_method ON invocations(method)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return err
		}
	}
	return nil
}

// WriteInvocation appends one invocation record.
func (s *Store) WriteInvocation(ctx context.Context, method string, duration time.Duration, invokeErr error) error {
	outcome := "ok"
	errText := ""
	if invokeErr != nil {
		outcome = "error"
		errText = invokeErr.Error()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invocations (ts, method, duration_ms, outcome, error) VALUES (?, ?, ?, ?, ?)`,
		time.Now().UnixMilli(), method, duration.Milliseconds(), outcome, errText,
	)
	if err != nil {
		return fmt.Errorf("audit: failed to write invocation: %w", err)
	}
	return nil
}

// Recent returns up to n invocation records, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ts, method, duration_ms, outcome, error
		 FROM invocations ORDER BY ts DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to query invocations: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r          Record
			ts         int64
			durationMS int64
		)
		if err := rows.Scan(&r.ID, &ts, &r.Method, &durationMS, &r.Outcome, &r.Error); err != nil {
			return nil, fmt.Errorf("audit: failed to scan invocation: %w", err)
		}
		r.Time = time.UnixMilli(ts)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, r)
	}
	return records, rows.Err()
}

// Prune deletes records older than maxAge and returns the number removed.
// A zero maxAge keeps everything.
func (s *Store) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		return 0, nil
	}

	cutoff := time.Now().Add(-maxAge).UnixMilli()
	result, err := s.db.ExecContext(ctx, `DELETE FROM invocations WHERE ts < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("audit: failed to prune invocations: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
