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

// Package persist stores workflow executions in SQLite. The store
// implements workflow.Sink, so wiring it into the engine records every
// execution and step as it finishes. Persistence is write-through and
// optional; the engine's in-memory store stays authoritative.
package persist

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is the canonical timestamp encoding for stored records.
const timeLayout = time.RFC3339Nano

// Config contains SQLite store configuration.
type Config struct {
	// Path is the filesystem path to the SQLite database file.
	// Special value ":memory:" creates an in-memory database.
	Path string

	// MaxOpenConns sets the maximum number of open connections.
	// Defaults to 5; WAL mode handles multiple concurrent readers.
	MaxOpenConns int
}

// Store provides SQLite-backed persistence for workflow executions.
type Store struct {
	db *sql.DB
}

// Open creates the store, connecting to the database and running
// migrations.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// SQLite connection string with WAL mode for better concurrency
	connStr := cfg.Path
	if cfg.Path != ":memory:" {
		connStr += "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxConns := cfg.MaxOpenConns
	if maxConns == 0 {
		maxConns = 5
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// migrate creates the database schema.
func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS workflows (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			completed_at TEXT,
			error_message TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS workflow_steps (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			step_order INTEGER NOT NULL,
			operation TEXT NOT NULL,
			parameters TEXT,
			status TEXT NOT NULL,
			result TEXT,
			error TEXT,
			started_at TEXT,
			completed_at TEXT,
			FOREIGN KEY (workflow_id) REFERENCES workflows (id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_workflows_status ON workflows (status)`,
		`CREATE INDEX IF NOT EXISTS idx_workflow_steps_workflow_id ON workflow_steps (workflow_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
// This is exported for testing and advanced use cases.
func (s *Store) DB() *sql.DB {
	return s.db
}

// WorkflowRecord is a persisted workflow row.
type WorkflowRecord struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// StepRecord is a persisted workflow step row. The row id is
// "workflowID:stepID" so re-recording a step overwrites its previous row.
type StepRecord struct {
	ID          string     `json:"id"`
	WorkflowID  string     `json:"workflow_id"`
	StepOrder   int        `json:"step_order"`
	Operation   string     `json:"operation"`
	Parameters  string     `json:"parameters,omitempty"`
	Status      string     `json:"status"`
	Result      string     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// GetWorkflow retrieves a persisted workflow by id. Returns sql.ErrNoRows
// wrapped when no row exists.
func (s *Store) GetWorkflow(ctx context.Context, id string) (*WorkflowRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, status, created_at, updated_at, completed_at, error_message
		FROM workflows WHERE id = ?
	`, id)

	record, err := scanWorkflow(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow %s: %w", id, err)
	}
	return record, nil
}

// ListWorkflows retrieves persisted workflows, optionally filtered by
// status, newest first.
func (s *Store) ListWorkflows(ctx context.Context, status string, limit int) ([]*WorkflowRecord, error) {
	query := `
		SELECT id, name, status, created_at, updated_at, completed_at, error_message
		FROM workflows
	`
	var args []interface{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var records []*WorkflowRecord
	for rows.Next() {
		record, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// GetWorkflowSteps retrieves the persisted steps of a workflow in execution
// order.
func (s *Store) GetWorkflowSteps(ctx context.Context, workflowID string) ([]*StepRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workflow_id, step_order, operation, parameters, status, result, error, started_at, completed_at
		FROM workflow_steps
		WHERE workflow_id = ?
		ORDER BY step_order ASC
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to get steps for workflow %s: %w", workflowID, err)
	}
	defer rows.Close()

	var records []*StepRecord
	for rows.Next() {
		var record StepRecord
		var parameters, result, errMsg, startedAt, completedAt sql.NullString
		if err := rows.Scan(
			&record.ID, &record.WorkflowID, &record.StepOrder, &record.Operation,
			&parameters, &record.Status, &result, &errMsg, &startedAt, &completedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}

		record.Parameters = parameters.String
		record.Result = result.String
		record.Error = errMsg.String
		if record.StartedAt, err = parseNullTime(startedAt); err != nil {
			return nil, err
		}
		if record.CompletedAt, err = parseNullTime(completedAt); err != nil {
			return nil, err
		}

		records = append(records, &record)
	}
	return records, rows.Err()
}

// Health reports persistence status for the daemon's health endpoint.
type Health struct {
	Status        string `json:"status"`
	Database      string `json:"database"`
	WorkflowCount int64  `json:"workflow_count"`
	StepCount     int64  `json:"step_count"`
}

// HealthCheck verifies connectivity and reports row counts.
func (s *Store) HealthCheck(ctx context.Context) (*Health, error) {
	if err := s.db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database health check failed: %w", err)
	}

	health := &Health{
		Status:   "healthy",
		Database: "SQLite",
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM workflows").Scan(&health.WorkflowCount); err != nil {
		return nil, fmt.Errorf("failed to count workflows: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM workflow_steps").Scan(&health.StepCount); err != nil {
		return nil, fmt.Errorf("failed to count steps: %w", err)
	}

	return health, nil
}

// Cleanup prunes terminal workflows last updated before the retention
// window, along with their steps. Returns the number of workflows removed.
func (s *Store) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).UTC().Format(timeLayout)

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM workflow_steps
		WHERE workflow_id IN (
			SELECT id FROM workflows
			WHERE updated_at < ? AND status IN ('completed', 'failed', 'cancelled')
		)
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up old steps: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM workflows
		WHERE updated_at < ? AND status IN ('completed', 'failed', 'cancelled')
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up old workflows: %w", err)
	}

	count, _ := result.RowsAffected()
	return count, nil
}

// scanner matches *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanWorkflow(row scanner) (*WorkflowRecord, error) {
	var record WorkflowRecord
	var createdAt, updatedAt string
	var completedAt, errorMessage sql.NullString

	if err := row.Scan(
		&record.ID, &record.Name, &record.Status,
		&createdAt, &updatedAt, &completedAt, &errorMessage,
	); err != nil {
		return nil, err
	}

	var err error
	if record.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at: %w", err)
	}
	if record.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("invalid updated_at: %w", err)
	}
	if record.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, err
	}
	record.ErrorMessage = errorMessage.String

	return &record, nil
}

func parseNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, v.String)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp: %w", err)
	}
	return &t, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
