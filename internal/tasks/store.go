package tasks

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/risklens/risklens/internal/database"
)

// ErrTaskNotFound is returned when a task id does not exist.
var ErrTaskNotFound = errors.New("task not found")

// Schema creates the tasks table. The full task is stored as a msgpack
// blob; status and timestamps are mirrored into columns for querying.
const Schema = `
CREATE TABLE IF NOT EXISTS tasks (
    id         TEXT PRIMARY KEY,
    status     TEXT NOT NULL,
    payload    BLOB NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_updated_at ON tasks(updated_at);
`

// Store persists tasks so results survive restarts and can be polled.
type Store struct {
	db  *database.DB
	log zerolog.Logger
}

func NewStore(db *database.DB, logger zerolog.Logger) (*Store, error) {
	if err := db.Migrate(Schema); err != nil {
		return nil, err
	}
	return &Store{
		db:  db,
		log: logger.With().Str("component", "task_store").Logger(),
	}, nil
}

// Save upserts a task, bumping its updated_at.
func (s *Store) Save(task *Task) error {
	task.UpdatedAt = time.Now().UTC()
	payload, err := msgpack.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO tasks (id, status, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, task.ID, string(task.Status), payload, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

// Get fetches one task by id.
func (s *Store) Get(id string) (*Task, error) {
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM tasks WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task: %w", err)
	}

	var task Task
	if err := msgpack.Unmarshal(payload, &task); err != nil {
		return nil, fmt.Errorf("failed to decode task: %w", err)
	}
	return &task, nil
}

// DeleteOlderThan removes tasks last touched before the cutoff,
// returning the number removed. Used by scheduled maintenance.
func (s *Store) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM tasks WHERE updated_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale tasks: %w", err)
	}
	n, _ := result.RowsAffected()
	if n > 0 {
		s.log.Info().Int64("deleted", n).Msg("stale tasks removed")
	}
	return n, nil
}
