package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tchan1002/apache/internal/entity"
	"github.com/tchan1002/apache/internal/repository"
)

// setupTestRepo connects to POSTGRES_TEST_URL, skipping when it is unset.
func setupTestRepo(t *testing.T) *StateRepoImpl {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_URL")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	repo := NewStateRepo(pool)
	require.NoError(t, repo.EnsureSchema(ctx))
	return repo
}

func TestStateRepo(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)

	url := "https://example.com/" + t.Name()
	t.Cleanup(func() { _ = repo.Delete(ctx, url) })

	_, err := repo.Get(ctx, url)
	assert.ErrorIs(t, err, repository.ErrStateNotFound)

	require.NoError(t, repo.Save(ctx, entity.NewSiteState(url, "example.com", "s1", true)))
	got, err := repo.Get(ctx, url)
	require.NoError(t, err)
	assert.True(t, got.Ready())

	// Upsert replaces the verdict.
	require.NoError(t, repo.Save(ctx, entity.NewSiteState(url, "example.com", "", false)))
	got, err = repo.Get(ctx, url)
	require.NoError(t, err)
	assert.False(t, got.Ready())

	require.NoError(t, repo.Delete(ctx, url))
	_, err = repo.Get(ctx, url)
	assert.ErrorIs(t, err, repository.ErrStateNotFound)
}
