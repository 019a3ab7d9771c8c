package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	ingestion "github.com/p-vbordei/solar-forecast-sub001/internal/ingestion/domain"
)

const defaultMeasurementTable = "production_measurements"

// MeasurementRepository bulk-writes production samples into the
// time-partitioned store (a TimescaleDB hypertable chunked on ts).
type MeasurementRepository struct {
	db    *sql.DB
	table string
}

// NewMeasurementRepository constructs a repository with default table name.
func NewMeasurementRepository(db *sql.DB, opts ...RepositoryOption) *MeasurementRepository {
	repo := &MeasurementRepository{db: db, table: defaultMeasurementTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RepositoryOption configures the repository.
type RepositoryOption func(*MeasurementRepository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(repo *MeasurementRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// BulkInsert writes one batch in a single multi-row statement. The returned
// count reflects only rows the store accepted: under ConflictSkip, duplicate
// rows are left untouched and excluded from the count.
func (r *MeasurementRepository) BulkInsert(ctx context.Context, measurements []ingestion.Measurement, policy ingestion.ConflictPolicy) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("measurement repo: nil db")
	}
	if !policy.IsValid() {
		return 0, fmt.Errorf("%w: %q", ingestion.ErrInvalidPolicy, policy)
	}
	if len(measurements) == 0 {
		return 0, nil
	}

	const columns = 7
	placeholders := make([]string, 0, len(measurements))
	args := make([]any, 0, len(measurements)*columns)
	for i, m := range measurements {
		if m.ID == "" || m.LocationID == "" || m.TS.IsZero() {
			return 0, errors.New("measurement repo: invalid measurement")
		}
		base := i * columns
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7))

		energy := sql.NullFloat64{}
		if m.EnergyMWh != nil {
			energy = sql.NullFloat64{Float64: *m.EnergyMWh, Valid: true}
		}
		args = append(args, m.ID, m.LocationID, m.TS, m.PowerMW, energy, m.CapacityFactor, m.Availability)
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	location_id,
	ts,
	power_mw,
	energy_mwh,
	capacity_factor,
	availability
) VALUES %s
%s`, r.table, strings.Join(placeholders, ", "), conflictClause(policy))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func conflictClause(policy ingestion.ConflictPolicy) string {
	if policy == ingestion.ConflictUpdate {
		return `ON CONFLICT (location_id, ts)
DO UPDATE SET
	power_mw = EXCLUDED.power_mw,
	energy_mwh = EXCLUDED.energy_mwh,
	capacity_factor = EXCLUDED.capacity_factor,
	availability = EXCLUDED.availability,
	updated_at = NOW()`
	}
	return "ON CONFLICT (location_id, ts) DO NOTHING"
}
