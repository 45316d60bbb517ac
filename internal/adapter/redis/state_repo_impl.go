package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tchan1002/apache/internal/entity"
	"github.com/tchan1002/apache/internal/repository"
	"github.com/tchan1002/apache/pkg/utils"
)

const DefaultPrefix = "sherpa:site:"

// StateRepoImpl stores SiteState records as JSON values in Redis.
type StateRepoImpl struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewStateRepo creates a Redis backed store. A zero ttl keeps records until
// they are overwritten or deleted.
func NewStateRepo(client *redis.Client, prefix string, ttl time.Duration) *StateRepoImpl {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &StateRepoImpl{client: client, prefix: prefix, ttl: ttl}
}

var _ repository.SiteStateRepository = (*StateRepoImpl)(nil)

// generateKey hashes the URL so arbitrary query strings stay out of key names.
func (r *StateRepoImpl) generateKey(url string) string {
	return fmt.Sprintf("%s%s", r.prefix, utils.HashURL(url))
}

func (r *StateRepoImpl) Get(ctx context.Context, url string) (*entity.SiteState, error) {
	raw, err := r.client.Get(ctx, r.generateKey(url)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repository.ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get site state: %w", err)
	}

	var state entity.SiteState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode site state: %w", err)
	}
	return &state, nil
}

func (r *StateRepoImpl) Save(ctx context.Context, state *entity.SiteState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode site state: %w", err)
	}
	// SET with a zero expiration keeps the key forever; otherwise it behaves like SETEX.
	return r.client.Set(ctx, r.generateKey(state.URL), raw, r.ttl).Err()
}

func (r *StateRepoImpl) Delete(ctx context.Context, url string) error {
	return r.client.Del(ctx, r.generateKey(url)).Err()
}
