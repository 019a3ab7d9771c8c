package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	locations "github.com/p-vbordei/solar-forecast-sub001/internal/locations/domain"
)

const defaultLocationTable = "locations"

// LocationRepository is a read-only Postgres directory of locations.
type LocationRepository struct {
	db    *sqlx.DB
	table string
}

// NewLocationRepository constructs a repository with default table name.
func NewLocationRepository(db *sqlx.DB, opts ...RepositoryOption) *LocationRepository {
	repo := &LocationRepository{db: db, table: defaultLocationTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RepositoryOption configures the repository.
type RepositoryOption func(*LocationRepository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(repo *LocationRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// FindLocation returns the location for the given id.
func (r *LocationRepository) FindLocation(ctx context.Context, id string) (locations.Location, error) {
	if r == nil || r.db == nil {
		return locations.Location{}, errors.New("location repo: nil db")
	}
	if id == "" {
		return locations.Location{}, locations.ErrLocationNotFound
	}

	query := fmt.Sprintf(`
SELECT id, name, latitude, longitude, capacity_mw, status
FROM %s
WHERE id = $1`, r.table)

	var location locations.Location
	if err := r.db.GetContext(ctx, &location, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return locations.Location{}, locations.ErrLocationNotFound
		}
		return locations.Location{}, err
	}
	return location, nil
}
