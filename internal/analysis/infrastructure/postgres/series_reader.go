package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	analysis "github.com/p-vbordei/solar-forecast-sub001/internal/analysis/domain"
)

const (
	defaultProductionTable = "production_measurements"
	defaultForecastTable   = "forecasts"
	defaultWeatherTable    = "weather_observations"

	defaultBucketLimit = 10000
)

// SeriesReader loads forecast, measured, and weather series from the
// time-partitioned store.
type SeriesReader struct {
	db              *sql.DB
	productionTable string
	forecastTable   string
	weatherTable    string
	bucketLimit     int
}

// NewSeriesReader constructs a reader with default table names.
func NewSeriesReader(db *sql.DB, opts ...ReaderOption) *SeriesReader {
	reader := &SeriesReader{
		db:              db,
		productionTable: defaultProductionTable,
		forecastTable:   defaultForecastTable,
		weatherTable:    defaultWeatherTable,
		bucketLimit:     defaultBucketLimit,
	}
	for _, opt := range opts {
		opt(reader)
	}
	return reader
}

// ReaderOption configures the series reader.
type ReaderOption func(*SeriesReader)

// WithProductionTable overrides the production table name.
func WithProductionTable(table string) ReaderOption {
	return func(reader *SeriesReader) {
		if table != "" {
			reader.productionTable = table
		}
	}
}

// WithForecastTable overrides the forecast table name.
func WithForecastTable(table string) ReaderOption {
	return func(reader *SeriesReader) {
		if table != "" {
			reader.forecastTable = table
		}
	}
}

// WithBucketLimit overrides the cap on buckets returned per aggregated query.
func WithBucketLimit(limit int) ReaderOption {
	return func(reader *SeriesReader) {
		if limit > 0 {
			reader.bucketLimit = limit
		}
	}
}

// WithWeatherTable overrides the weather table name.
func WithWeatherTable(table string) ReaderOption {
	return func(reader *SeriesReader) {
		if table != "" {
			reader.weatherTable = table
		}
	}
}

// ProductionRange scans measured production samples within [start, end),
// ordered ascending by ts, with raw-mode pagination.
func (r *SeriesReader) ProductionRange(ctx context.Context, locationID string, start, end time.Time, limit, offset int) ([]analysis.Sample, error) {
	columns := []string{"power_mw", "energy_mwh", "capacity_factor", "availability"}
	return r.rangeScan(ctx, r.productionTable, columns, locationID, start, end, limit, offset)
}

// ForecastRange scans forecast samples within [start, end).
func (r *SeriesReader) ForecastRange(ctx context.Context, locationID string, start, end time.Time) ([]analysis.Sample, error) {
	columns := []string{"power_mw", "energy_mwh", "power_mw_q10", "power_mw_q90"}
	return r.rangeScan(ctx, r.forecastTable, columns, locationID, start, end, 0, 0)
}

// WeatherRange scans weather observations within [start, end).
func (r *SeriesReader) WeatherRange(ctx context.Context, locationID string, start, end time.Time) ([]analysis.Sample, error) {
	columns := []string{"temperature", "ghi", "cloud_cover", "wind_speed"}
	return r.rangeScan(ctx, r.weatherTable, columns, locationID, start, end, 0, 0)
}

func (r *SeriesReader) rangeScan(ctx context.Context, table string, metrics []string, locationID string, start, end time.Time, limit, offset int) ([]analysis.Sample, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("series reader: nil db")
	}
	if locationID == "" {
		return nil, errors.New("series reader: missing location id")
	}

	query := "SELECT ts"
	for _, metric := range metrics {
		query += ", " + metric
	}
	query += fmt.Sprintf(" FROM %s WHERE location_id = $1", table)
	args := []any{locationID}
	if !start.IsZero() {
		args = append(args, start)
		query += fmt.Sprintf(" AND ts >= $%d", len(args))
	}
	if !end.IsZero() {
		args = append(args, end)
		query += fmt.Sprintf(" AND ts < $%d", len(args))
	}
	query += " ORDER BY ts ASC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []analysis.Sample
	for rows.Next() {
		var ts time.Time
		values := make([]sql.NullFloat64, len(metrics))
		dest := make([]any, 0, len(metrics)+1)
		dest = append(dest, &ts)
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		sample := analysis.Sample{TS: ts.UTC(), LocationID: locationID, Metrics: make(map[string]*float64, len(metrics))}
		for i, metric := range metrics {
			if values[i].Valid {
				value := values[i].Float64
				sample.Metrics[metric] = &value
			} else {
				sample.Metrics[metric] = nil
			}
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}

// LatestForecast returns the most recent forecast sample for a location.
func (r *SeriesReader) LatestForecast(ctx context.Context, locationID string) (analysis.Sample, error) {
	if r == nil || r.db == nil {
		return analysis.Sample{}, errors.New("series reader: nil db")
	}
	if locationID == "" {
		return analysis.Sample{}, errors.New("series reader: missing location id")
	}

	query := fmt.Sprintf(`
SELECT ts, power_mw, energy_mwh, power_mw_q10, power_mw_q90
FROM %s
WHERE location_id = $1
ORDER BY ts DESC
LIMIT 1`, r.forecastTable)

	var ts time.Time
	var power, energy, q10, q90 sql.NullFloat64
	err := r.db.QueryRowContext(ctx, query, locationID).Scan(&ts, &power, &energy, &q10, &q90)
	if errors.Is(err, sql.ErrNoRows) {
		return analysis.Sample{}, analysis.ErrNoForecast
	}
	if err != nil {
		return analysis.Sample{}, err
	}

	sample := analysis.Sample{TS: ts.UTC(), LocationID: locationID, Metrics: make(map[string]*float64, 4)}
	for metric, value := range map[string]sql.NullFloat64{
		"power_mw":     power,
		"energy_mwh":   energy,
		"power_mw_q10": q10,
		"power_mw_q90": q90,
	} {
		if value.Valid {
			v := value.Float64
			sample.Metrics[metric] = &v
		} else {
			sample.Metrics[metric] = nil
		}
	}
	return sample, nil
}

// BucketedProduction pushes the aggregation into the store's time-bucketed
// query so multi-year ranges never re-scan raw rows client-side.
func (r *SeriesReader) BucketedProduction(ctx context.Context, locationID string, interval analysis.Interval, start, end time.Time, limit int) ([]analysis.Bucket, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("series reader: nil db")
	}
	if !interval.IsValid() || interval == analysis.IntervalRaw {
		return nil, fmt.Errorf("%w: %q", analysis.ErrUnknownInterval, interval)
	}
	if limit <= 0 {
		limit = r.bucketLimit
	}

	query := fmt.Sprintf(`
SELECT
	time_bucket($1::interval, ts) AS bucket_start,
	AVG(power_mw),
	SUM(energy_mwh),
	AVG(capacity_factor),
	AVG(availability),
	COUNT(*)
FROM %s
WHERE location_id = $2`, r.productionTable)
	args := []any{interval.BucketLiteral(), locationID}
	if !start.IsZero() {
		args = append(args, start)
		query += fmt.Sprintf(" AND ts >= $%d", len(args))
	}
	if !end.IsZero() {
		args = append(args, end)
		query += fmt.Sprintf(" AND ts < $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" GROUP BY bucket_start ORDER BY bucket_start ASC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buckets []analysis.Bucket
	for rows.Next() {
		var bucketStart time.Time
		var power, energy, capacity, availability sql.NullFloat64
		var count int
		if err := rows.Scan(&bucketStart, &power, &energy, &capacity, &availability, &count); err != nil {
			return nil, err
		}
		bucket := analysis.Bucket{
			BucketStart: bucketStart.UTC(),
			LocationID:  locationID,
			Aggregates:  make(map[string]analysis.AggregateValue, 4),
			SampleCount: count,
		}
		if power.Valid {
			bucket.Aggregates["power_mw"] = analysis.NewObservedValue(power.Float64)
		}
		if energy.Valid {
			bucket.Aggregates["energy_mwh"] = analysis.NewObservedValue(energy.Float64)
		}
		if capacity.Valid {
			bucket.Aggregates["capacity_factor"] = analysis.NewObservedValue(capacity.Float64)
		}
		if availability.Valid {
			bucket.Aggregates["availability"] = analysis.NewObservedValue(availability.Float64)
		}
		buckets = append(buckets, bucket)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return buckets, nil
}
