package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tchan1002/apache/internal/entity"
	"github.com/tchan1002/apache/internal/repository"
)

// StateRepoImpl provides a concrete implementation of SiteStateRepository using PostgreSQL.
// It lets several clients on one machine or team share verdicts.
type StateRepoImpl struct {
	db *pgxpool.Pool
}

// NewStateRepo creates a new instance of StateRepoImpl.
func NewStateRepo(db *pgxpool.Pool) *StateRepoImpl {
	return &StateRepoImpl{db: db}
}

var _ repository.SiteStateRepository = (*StateRepoImpl)(nil)

// EnsureSchema creates the site_states table when it does not exist yet.
func (r *StateRepoImpl) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS site_states (
			url        TEXT PRIMARY KEY,
			domain     TEXT NOT NULL,
			site_id    TEXT NOT NULL DEFAULT '',
			scouted    BOOLEAN NOT NULL DEFAULT FALSE,
			computed_at BIGINT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("create site_states: %w", err)
	}
	return nil
}

// Save stores or updates the state for a URL.
func (r *StateRepoImpl) Save(ctx context.Context, state *entity.SiteState) error {
	query := `
		INSERT INTO site_states (url, domain, site_id, scouted, computed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (url) DO UPDATE SET
			domain = EXCLUDED.domain,
			site_id = EXCLUDED.site_id,
			scouted = EXCLUDED.scouted,
			computed_at = EXCLUDED.computed_at;
	`
	_, err := r.db.Exec(ctx, query, state.URL, state.Domain, state.SiteID, state.Scouted, state.Timestamp)
	return err
}

// Get retrieves the state for a specific URL.
func (r *StateRepoImpl) Get(ctx context.Context, url string) (*entity.SiteState, error) {
	query := `
		SELECT url, domain, site_id, scouted, computed_at
		FROM site_states
		WHERE url = $1;
	`
	var state entity.SiteState
	err := r.db.QueryRow(ctx, query, url).Scan(
		&state.URL,
		&state.Domain,
		&state.SiteID,
		&state.Scouted,
		&state.Timestamp,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrStateNotFound
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// Delete removes the state for a URL.
func (r *StateRepoImpl) Delete(ctx context.Context, url string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM site_states WHERE url = $1;`, url)
	return err
}
