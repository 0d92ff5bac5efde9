package watchfeed

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// RunStore keeps a history of batch runs in SQLite, so successive cron
// invocations can be inspected after the fact.
type RunStore struct {
	db *sql.DB
}

// RunRecord is one persisted batch run.
type RunRecord struct {
	RunID          uuid.UUID  `json:"run_id"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     time.Time  `json:"finished_at"`
	UsersProcessed int        `json:"users_processed"`
	UsersFailed    int        `json:"users_failed"`
	TotalEntries   int        `json:"total_entries"`
	Errors         []RunError `json:"errors,omitempty"`
}

// RunError is one failed user within a run.
type RunError struct {
	Username string `json:"username"`
	Error    string `json:"error"`
}

// NewRunStore opens (or creates) the run-history database at dbPath.
func NewRunStore(dbPath string) (*RunStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &RunStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the runs table if it doesn't exist.
func (s *RunStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		users_processed INTEGER NOT NULL,
		users_failed INTEGER NOT NULL,
		total_entries INTEGER NOT NULL,
		errors TEXT
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *RunStore) Close() error {
	return s.db.Close()
}

// RecordRun persists the outcome of one batch and returns the stored record.
func (s *RunStore) RecordRun(stats *RunStats) (*RunRecord, error) {
	record := &RunRecord{
		RunID:          uuid.New(),
		StartedAt:      stats.StartedAt,
		FinishedAt:     stats.FinishedAt,
		UsersProcessed: stats.UsersProcessed,
		UsersFailed:    stats.UsersFailed,
		TotalEntries:   stats.TotalEntries,
	}
	for _, result := range stats.Results {
		if result.Err != nil {
			record.Errors = append(record.Errors, RunError{
				Username: result.Username,
				Error:    result.Err.Error(),
			})
		}
	}

	var errorsJSON *string
	if len(record.Errors) > 0 {
		data, err := json.Marshal(record.Errors)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal run errors: %w", err)
		}
		jsonStr := string(data)
		errorsJSON = &jsonStr
	}

	query := `
		INSERT INTO runs (
			run_id, started_at, finished_at,
			users_processed, users_failed, total_entries, errors
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		record.RunID.String(),
		record.StartedAt.UTC().Format(time.RFC3339),
		record.FinishedAt.UTC().Format(time.RFC3339),
		record.UsersProcessed,
		record.UsersFailed,
		record.TotalEntries,
		errorsJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	return record, nil
}

// LastRun returns the most recent run, or nil when no run has been recorded.
func (s *RunStore) LastRun() (*RunRecord, error) {
	query := `
		SELECT run_id, started_at, finished_at,
			users_processed, users_failed, total_entries, errors
		FROM runs ORDER BY started_at DESC LIMIT 1
	`

	var (
		record     RunRecord
		runID      string
		startedAt  string
		finishedAt string
		errorsJSON sql.NullString
	)
	err := s.db.QueryRow(query).Scan(
		&runID, &startedAt, &finishedAt,
		&record.UsersProcessed, &record.UsersFailed, &record.TotalEntries,
		&errorsJSON,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last run: %w", err)
	}

	if record.RunID, err = uuid.Parse(runID); err != nil {
		return nil, fmt.Errorf("failed to parse run ID: %w", err)
	}
	if record.StartedAt, err = time.Parse(time.RFC3339, startedAt); err != nil {
		return nil, fmt.Errorf("failed to parse started_at: %w", err)
	}
	if record.FinishedAt, err = time.Parse(time.RFC3339, finishedAt); err != nil {
		return nil, fmt.Errorf("failed to parse finished_at: %w", err)
	}
	if errorsJSON.Valid {
		if err := json.Unmarshal([]byte(errorsJSON.String), &record.Errors); err != nil {
			return nil, fmt.Errorf("failed to parse run errors: %w", err)
		}
	}

	return &record, nil
}
