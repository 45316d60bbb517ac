package repository

import (
	"context"

	"github.com/tchan1002/apache/internal/entity"
)

// SiteStateRepository is the local key-value storage holding SiteState records keyed by page URL.
// Records are never authoritative; callers always revalidate against the backend.
type SiteStateRepository interface {
	// Get returns the stored state for url, or ErrStateNotFound.
	Get(ctx context.Context, url string) (*entity.SiteState, error)
	// Save stores the state, overwriting any previous record for the same URL.
	Save(ctx context.Context, state *entity.SiteState) error
	// Delete removes the record for url. Deleting a missing record is not an error.
	Delete(ctx context.Context, url string) error
}
