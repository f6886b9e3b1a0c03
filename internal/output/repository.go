package output

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// HistoryEntry is one recorded state change.
type HistoryEntry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// OutputID is the output that changed.
	OutputID string `json:"output_id"`

	// State is the state after the change.
	State State `json:"state"`

	// Source identifies who made the change (mqtt, api, restore, all_off).
	Source string `json:"source"`

	// CreatedAt is the timestamp of the change (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// SQLiteStateStore implements StateStore using SQLite.
//
// The last state of each output lives in output_state; every save is also
// appended to output_state_history.
type SQLiteStateStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStateStore creates a state store on an open database whose
// migrations have been applied.
//
// Parameters:
//   - db: Open SQLite connection used for queries
//
// Returns:
//   - *SQLiteStateStore: Store instance ready for use
func NewSQLiteStateStore(db *sql.DB) *SQLiteStateStore {
	return &SQLiteStateStore{db: db, now: time.Now}
}

// Load returns the last saved state of an output.
//
// Returns:
//   - State: Last state (zero when not found)
//   - bool: false when nothing has been saved for outputID
//   - error: nil on success, otherwise the underlying query error
func (s *SQLiteStateStore) Load(ctx context.Context, outputID string) (State, bool, error) {
	if outputID == "" {
		return State{}, false, fmt.Errorf("output id is required")
	}

	var stateJSON string
	err := s.db.QueryRowContext(ctx,
		"SELECT state FROM output_state WHERE output_id = ?",
		outputID,
	).Scan(&stateJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("querying output state: %w", err)
	}

	var st State
	if err := json.Unmarshal([]byte(stateJSON), &st); err != nil {
		return State{}, false, fmt.Errorf("unmarshalling state: %w", err)
	}
	return st, true, nil
}

// Save upserts the last state and appends a history row in one
// transaction.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - outputID: Output identifier
//   - state: State snapshot to persist
//   - source: Origin of the change (mqtt, api, restore, all_off)
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (s *SQLiteStateStore) Save(ctx context.Context, outputID string, state State, source string) error {
	if outputID == "" {
		return fmt.Errorf("output id is required")
	}
	if source == "" {
		source = SourceAPI
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}
	now := s.now().UTC().Format(time.RFC3339)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx,
		`INSERT INTO output_state (output_id, state, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(output_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		outputID, string(stateJSON), now,
	)
	if err != nil {
		return fmt.Errorf("upserting output state: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO output_state_history (output_id, state, source, created_at) VALUES (?, ?, ?, ?)",
		outputID, string(stateJSON), source, now,
	)
	if err != nil {
		return fmt.Errorf("inserting state history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing state: %w", err)
	}
	return nil
}

// GetHistory returns recent state changes of an output, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - outputID: Output identifier
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []HistoryEntry: Entries ordered by created_at DESC
//   - error: nil on success, otherwise the underlying query error
func (s *SQLiteStateStore) GetHistory(ctx context.Context, outputID string, limit int) ([]HistoryEntry, error) {
	if outputID == "" {
		return nil, fmt.Errorf("output id is required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, output_id, state, source, created_at
		 FROM output_state_history
		 WHERE output_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		outputID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying state history: %w", err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0, limit)
	for rows.Next() {
		var entry HistoryEntry
		var stateJSON, createdAt string

		if err := rows.Scan(&entry.ID, &entry.OutputID, &stateJSON, &entry.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning state history: %w", err)
		}
		if err := json.Unmarshal([]byte(stateJSON), &entry.State); err != nil {
			return nil, fmt.Errorf("unmarshalling state: %w", err)
		}
		ts, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		entry.CreatedAt = ts

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating state history: %w", err)
	}
	return entries, nil
}

// PruneHistory deletes history entries older than olderThan.
//
// Returns:
//   - int64: Number of rows deleted
//   - error: nil on success, otherwise the underlying database error
func (s *SQLiteStateStore) PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := s.now().UTC().Add(-olderThan).Format(time.RFC3339)
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM output_state_history WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting state history: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}
