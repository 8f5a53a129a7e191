package portfolio

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/risklens/risklens/internal/database"
	"github.com/risklens/risklens/internal/modules/risk"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "portfolios.db"),
		Name: "portfolios",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo, err := NewRepository(db, zerolog.Nop())
	require.NoError(t, err)
	return repo
}

func testPositions() []risk.Position {
	return []risk.Position{
		{Ticker: "AAPL", Quantity: 100},
		{Ticker: "MSFT", Quantity: 50, AssetClass: "Equity"},
	}
}

func TestCreateAndGet(t *testing.T) {
	repo := newTestRepository(t)

	saved, err := repo.Create("Retirement", "long-term holdings", testPositions())
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)

	got, err := repo.Get(saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Retirement", got.Name)
	assert.Equal(t, "long-term holdings", got.Description)
	require.Len(t, got.Positions, 2)
	assert.Equal(t, "AAPL", got.Positions[0].Ticker)
	assert.Equal(t, 100.0, got.Positions[0].Quantity)
	assert.Equal(t, "Equity", got.Positions[1].AssetClass)
}

func TestCreateValidation(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.Create("", "", testPositions())
	assert.Error(t, err)

	_, err = repo.Create("Empty", "", nil)
	assert.Error(t, err)
}

func TestGetNotFound(t *testing.T) {
	repo := newTestRepository(t)
	_, err := repo.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListOrdersByUpdatedAt(t *testing.T) {
	repo := newTestRepository(t)

	first, err := repo.Create("First", "", testPositions())
	require.NoError(t, err)
	_, err = repo.Create("Second", "", testPositions())
	require.NoError(t, err)

	// Touching the older one moves it to the front.
	time.Sleep(10 * time.Millisecond)
	_, err = repo.Update(first.ID, "First v2", "", testPositions())
	require.NoError(t, err)

	list, err := repo.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "First v2", list[0].Name)
}

func TestUpdateNotFound(t *testing.T) {
	repo := newTestRepository(t)
	_, err := repo.Update("nope", "x", "", testPositions())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	repo := newTestRepository(t)

	saved, err := repo.Create("Doomed", "", testPositions())
	require.NoError(t, err)

	require.NoError(t, repo.Delete(saved.ID))
	_, err = repo.Get(saved.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, repo.Delete(saved.ID), ErrNotFound)
}

func TestPurgeOlderThan(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.Create("Fresh", "", testPositions())
	require.NoError(t, err)

	n, err := repo.PurgeOlderThan(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = repo.PurgeOlderThan(time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
