// Package sqlite persists SiteState records in a local SQLite file so the
// verdict survives the client being closed and reopened.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/tchan1002/apache/internal/entity"
	"github.com/tchan1002/apache/internal/repository"
)

const schema = `
CREATE TABLE IF NOT EXISTS site_states (
	url        TEXT PRIMARY KEY,
	domain     TEXT NOT NULL,
	site_id    TEXT NOT NULL DEFAULT '',
	scouted    INTEGER NOT NULL DEFAULT 0,
	timestamp  INTEGER NOT NULL
);`

// StateRepoImpl implements repository.SiteStateRepository on SQLite.
type StateRepoImpl struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema exists.
// Use ":memory:" for a throwaway store.
func Open(path string) (*StateRepoImpl, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &StateRepoImpl{db: db}, nil
}

var _ repository.SiteStateRepository = (*StateRepoImpl)(nil)

// Get retrieves the state stored for url.
func (r *StateRepoImpl) Get(ctx context.Context, url string) (*entity.SiteState, error) {
	var state entity.SiteState
	err := r.db.QueryRowContext(ctx,
		`SELECT url, domain, site_id, scouted, timestamp FROM site_states WHERE url = ?`, url,
	).Scan(&state.URL, &state.Domain, &state.SiteID, &state.Scouted, &state.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get site state: %w", err)
	}
	return &state, nil
}

// Save stores or overwrites the state for its URL.
func (r *StateRepoImpl) Save(ctx context.Context, state *entity.SiteState) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO site_states (url, domain, site_id, scouted, timestamp)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (url) DO UPDATE SET
			domain = excluded.domain,
			site_id = excluded.site_id,
			scouted = excluded.scouted,
			timestamp = excluded.timestamp`,
		state.URL, state.Domain, state.SiteID, state.Scouted, state.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("save site state: %w", err)
	}
	return nil
}

// Delete removes the state for url.
func (r *StateRepoImpl) Delete(ctx context.Context, url string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM site_states WHERE url = ?`, url); err != nil {
		return fmt.Errorf("delete site state: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (r *StateRepoImpl) Close() error {
	return r.db.Close()
}
