// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	_ "modernc.org/sqlite"
)

// Run status values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Run records one transcoder invocation.
type Run struct {
	ID          int64         `json:"id"`
	Op          string        `json:"op"`
	Inputs      []string      `json:"inputs"`
	Output      string        `json:"output"`
	Status      string        `json:"status"`
	ErrorMsg    string        `json:"error_msg"`
	InputBytes  int64         `json:"input_bytes"`
	OutputBytes int64         `json:"output_bytes"`
	Duration    time.Duration `json:"duration"`
	CacheHit    bool          `json:"cache_hit"`
	Timestamp   time.Time     `json:"timestamp"`
}

// Store handles database operations
type Store struct {
	db *sql.DB
}

// DefaultPath is ~/.abcmerge/history.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home dir: %w", err)
	}
	return filepath.Join(home, ".abcmerge", "history.db"), nil
}

// Open opens (creating if needed) the history database at path. An empty
// path selects DefaultPath.
func Open(path string) (*Store, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		op TEXT NOT NULL,
		inputs TEXT,
		output TEXT,
		status TEXT NOT NULL,
		error_msg TEXT,
		input_bytes INTEGER,
		output_bytes INTEGER,
		duration_ns INTEGER,
		cache_hit INTEGER,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_runs_op ON runs(op);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	`
	_, err := db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}

// SaveRun persists a run and sets its ID. A zero Timestamp is filled with
// the current time.
func (s *Store) SaveRun(run *Run) error {
	inputsJSON, _ := json.Marshal(run.Inputs)
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now()
	}

	query := `
	INSERT INTO runs (op, inputs, output, status, error_msg, input_bytes, output_bytes, duration_ns, cache_hit, timestamp)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.Exec(query, run.Op, string(inputsJSON), run.Output, run.Status, run.ErrorMsg,
		run.InputBytes, run.OutputBytes, int64(run.Duration), run.CacheHit, run.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		run.ID = id
	}
	return nil
}

// SearchParams defines the criteria for searching runs
type SearchParams struct {
	Op         string
	Status     string
	ErrorRegex string
	InputRegex string
	Limit      int
}

// SearchRuns returns matching runs, newest first.
func (s *Store) SearchRuns(params SearchParams) ([]Run, error) {
	query := "SELECT id, op, inputs, output, status, error_msg, input_bytes, output_bytes, duration_ns, cache_hit, timestamp FROM runs WHERE 1=1"
	args := []interface{}{}

	if params.Op != "" {
		query += " AND op = ?"
		args = append(args, params.Op)
	}
	if params.Status != "" {
		query += " AND status = ?"
		args = append(args, params.Status)
	}

	query += " ORDER BY timestamp DESC, id DESC"

	var errorRe, inputRe *regexp.Regexp
	var err error
	if params.ErrorRegex != "" {
		errorRe, err = regexp.Compile(params.ErrorRegex)
		if err != nil {
			return nil, fmt.Errorf("invalid error regex: %w", err)
		}
	}
	if params.InputRegex != "" {
		inputRe, err = regexp.Compile(params.InputRegex)
		if err != nil {
			return nil, fmt.Errorf("invalid input regex: %w", err)
		}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var results []Run
	for rows.Next() {
		if params.Limit > 0 && len(results) >= params.Limit {
			break
		}

		var run Run
		var inputsRaw string
		var durationNS int64
		var ts time.Time

		if err := rows.Scan(&run.ID, &run.Op, &inputsRaw, &run.Output, &run.Status, &run.ErrorMsg,
			&run.InputBytes, &run.OutputBytes, &durationNS, &run.CacheHit, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Duration = time.Duration(durationNS)
		run.Timestamp = ts
		_ = json.Unmarshal([]byte(inputsRaw), &run.Inputs)

		if errorRe != nil && !errorRe.MatchString(run.ErrorMsg) {
			continue
		}
		if inputRe != nil {
			found := false
			for _, in := range run.Inputs {
				if inputRe.MatchString(in) {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}

		results = append(results, run)
	}

	return results, rows.Err()
}
