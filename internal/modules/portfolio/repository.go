// Package portfolio persists named portfolios so analyses can be rerun
// without resubmitting positions.
package portfolio

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/risklens/risklens/internal/database"
	"github.com/risklens/risklens/internal/modules/risk"
)

// ErrNotFound is returned when a portfolio id does not exist.
var ErrNotFound = errors.New("portfolio not found")

// Schema creates the portfolios table.
const Schema = `
CREATE TABLE IF NOT EXISTS portfolios (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    positions  TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_portfolios_name ON portfolios(name);
`

// Saved is a stored portfolio.
type Saved struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Positions   []risk.Position `json:"positions"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Repository handles database operations for saved portfolios.
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

func NewRepository(db *database.DB, logger zerolog.Logger) (*Repository, error) {
	if err := db.Migrate(Schema); err != nil {
		return nil, err
	}
	return &Repository{
		db:  db,
		log: logger.With().Str("component", "portfolio_repository").Logger(),
	}, nil
}

// Create stores a new portfolio and returns it with its generated id.
func (r *Repository) Create(name, description string, positions []risk.Position) (*Saved, error) {
	if name == "" {
		return nil, errors.New("portfolio name is required")
	}
	if len(positions) == 0 {
		return nil, errors.New("portfolio needs at least one position")
	}

	encoded, err := json.Marshal(positions)
	if err != nil {
		return nil, fmt.Errorf("failed to encode positions: %w", err)
	}

	now := time.Now().UTC()
	saved := &Saved{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Positions:   positions,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = r.db.Exec(`
		INSERT INTO portfolios (id, name, description, positions, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, saved.ID, saved.Name, saved.Description, string(encoded), saved.CreatedAt, saved.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert portfolio: %w", err)
	}

	r.log.Info().Str("id", saved.ID).Str("name", saved.Name).Msg("portfolio created")
	return saved, nil
}

// Get fetches one portfolio by id.
func (r *Repository) Get(id string) (*Saved, error) {
	row := r.db.QueryRow(`
		SELECT id, name, description, positions, created_at, updated_at
		FROM portfolios WHERE id = ?
	`, id)
	return scanPortfolio(row)
}

// List returns all portfolios, most recently updated first.
func (r *Repository) List() ([]*Saved, error) {
	rows, err := r.db.Query(`
		SELECT id, name, description, positions, created_at, updated_at
		FROM portfolios ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}
	defer rows.Close()

	var out []*Saved
	for rows.Next() {
		saved, err := scanPortfolio(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, saved)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolio rows: %w", err)
	}
	return out, nil
}

// Update replaces a portfolio's name, description and positions.
func (r *Repository) Update(id, name, description string, positions []risk.Position) (*Saved, error) {
	if len(positions) == 0 {
		return nil, errors.New("portfolio needs at least one position")
	}
	encoded, err := json.Marshal(positions)
	if err != nil {
		return nil, fmt.Errorf("failed to encode positions: %w", err)
	}

	result, err := r.db.Exec(`
		UPDATE portfolios
		SET name = ?, description = ?, positions = ?, updated_at = ?
		WHERE id = ?
	`, name, description, string(encoded), time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update portfolio: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return r.Get(id)
}

// Delete removes a portfolio by id.
func (r *Repository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM portfolios WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete portfolio: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	r.log.Info().Str("id", id).Msg("portfolio deleted")
	return nil
}

// PurgeOlderThan deletes portfolios not updated since the cutoff,
// returning the number removed. Used by scheduled maintenance.
func (r *Repository) PurgeOlderThan(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM portfolios WHERE updated_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge portfolios: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPortfolio(row rowScanner) (*Saved, error) {
	var saved Saved
	var encoded string
	err := row.Scan(&saved.ID, &saved.Name, &saved.Description, &encoded, &saved.CreatedAt, &saved.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan portfolio row: %w", err)
	}
	if err := json.Unmarshal([]byte(encoded), &saved.Positions); err != nil {
		return nil, fmt.Errorf("failed to decode positions: %w", err)
	}
	return &saved, nil
}
