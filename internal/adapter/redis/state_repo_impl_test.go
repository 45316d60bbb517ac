package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tchan1002/apache/internal/entity"
	"github.com/tchan1002/apache/internal/repository"
)

// setupTestRepo connects to the Redis named by REDIS_TEST_ADDR, skipping otherwise.
func setupTestRepo(t *testing.T, ttl time.Duration) *StateRepoImpl {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	return NewStateRepo(client, "sherpa:test:"+t.Name()+":", ttl)
}

func TestGenerateKeyHashesURL(t *testing.T) {
	repo := NewStateRepo(nil, "", 0)
	key := repo.generateKey("https://example.com/docs?q=a b")
	assert.Contains(t, key, DefaultPrefix)
	assert.NotContains(t, key, "example.com")
	assert.Equal(t, key, repo.generateKey("https://example.com/docs?q=a b"))
	assert.NotEqual(t, key, repo.generateKey("https://example.com/blog"))
}

func TestStateRepoRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t, 0)

	url := "https://example.com/docs"
	t.Cleanup(func() { _ = repo.Delete(ctx, url) })

	_, err := repo.Get(ctx, url)
	assert.ErrorIs(t, err, repository.ErrStateNotFound)

	state := entity.NewSiteState(url, "example.com", "s1", true)
	require.NoError(t, repo.Save(ctx, state))

	got, err := repo.Get(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, state, got)

	require.NoError(t, repo.Delete(ctx, url))
	_, err = repo.Get(ctx, url)
	assert.ErrorIs(t, err, repository.ErrStateNotFound)
}

func TestStateRepoTTL(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t, time.Minute)

	url := "https://example.com/ttl"
	t.Cleanup(func() { _ = repo.Delete(ctx, url) })
	require.NoError(t, repo.Save(ctx, entity.NewSiteState(url, "example.com", "", false)))

	ttl, err := repo.client.TTL(ctx, repo.generateKey(url)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
