package memory

import (
	"context"
	"sync"

	"github.com/tchan1002/apache/internal/entity"
	"github.com/tchan1002/apache/internal/repository"
)

// StateRepoImpl keeps SiteState records in process memory.
type StateRepoImpl struct {
	mu     sync.RWMutex
	states map[string]entity.SiteState
}

// NewStateRepo creates an empty in-memory store.
func NewStateRepo() *StateRepoImpl {
	return &StateRepoImpl{states: make(map[string]entity.SiteState)}
}

var _ repository.SiteStateRepository = (*StateRepoImpl)(nil)

func (r *StateRepoImpl) Get(ctx context.Context, url string) (*entity.SiteState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.states[url]
	if !ok {
		return nil, repository.ErrStateNotFound
	}
	return &state, nil
}

func (r *StateRepoImpl) Save(ctx context.Context, state *entity.SiteState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[state.URL] = *state
	return nil
}

func (r *StateRepoImpl) Delete(ctx context.Context, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, url)
	return nil
}

// Len returns the number of stored records.
func (r *StateRepoImpl) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.states)
}
