package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	analysis "github.com/p-vbordei/solar-forecast-sub001/internal/analysis/domain"
	locations "github.com/p-vbordei/solar-forecast-sub001/internal/locations/domain"
	"github.com/p-vbordei/solar-forecast-sub001/internal/observability/metrics"
)

// SeriesReader loads the three analysis series from the store.
type SeriesReader interface {
	ForecastRange(ctx context.Context, locationID string, start, end time.Time) ([]analysis.Sample, error)
	ProductionRange(ctx context.Context, locationID string, start, end time.Time, limit, offset int) ([]analysis.Sample, error)
	WeatherRange(ctx context.Context, locationID string, start, end time.Time) ([]analysis.Sample, error)
	BucketedProduction(ctx context.Context, locationID string, interval analysis.Interval, start, end time.Time, limit int) ([]analysis.Bucket, error)
	LatestForecast(ctx context.Context, locationID string) (analysis.Sample, error)
}

// LocationDirectory resolves the location precondition before any read.
type LocationDirectory interface {
	FindLocation(ctx context.Context, id string) (locations.Location, error)
}

// Query is the validated, closed set of analysis query parameters.
type Query struct {
	LocationID string
	Start      time.Time
	End        time.Time
	Interval   analysis.Interval
	Limit      int
	Offset     int
}

var queryDateLayouts = []string{"2006-01-02", time.RFC3339}

// NewQuery validates raw query parameters at construction. An absent interval
// is selected from the span; an unrecognized interval literal is a hard
// error.
func NewQuery(locationID, startDate, endDate, interval string, limit, offset int) (Query, error) {
	if locationID == "" {
		return Query{}, errors.New("analysis query: missing location id")
	}
	query := Query{LocationID: locationID, Limit: limit, Offset: offset}

	var err error
	if startDate != "" {
		if query.Start, err = parseQueryDate(startDate); err != nil {
			return Query{}, fmt.Errorf("analysis query: start date: %w", err)
		}
	}
	if endDate != "" {
		if query.End, err = parseQueryDate(endDate); err != nil {
			return Query{}, fmt.Errorf("analysis query: end date: %w", err)
		}
	}
	if !query.Start.IsZero() && !query.End.IsZero() && query.End.Before(query.Start) {
		return Query{}, analysis.ErrInvalidRange
	}

	if interval == "" {
		query.Interval = analysis.SelectInterval(query.Start, query.End)
	} else {
		if query.Interval, err = analysis.ParseInterval(interval); err != nil {
			return Query{}, err
		}
	}
	return query, nil
}

func parseQueryDate(value string) (time.Time, error) {
	for _, layout := range queryDateLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

// Service answers analytical queries by fetching series concurrently,
// bucketing each at the selected interval, and merging them on exact
// timestamps.
type Service struct {
	directory LocationDirectory
	reader    SeriesReader
	logger    *log.Logger
}

// NewService constructs the analysis service.
func NewService(directory LocationDirectory, reader SeriesReader, logger *log.Logger) (*Service, error) {
	if directory == nil {
		return nil, errors.New("analysis service: nil location directory")
	}
	if reader == nil {
		return nil, errors.New("analysis service: nil series reader")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{directory: directory, reader: reader, logger: logger}, nil
}

// Compare returns one merged point per forecast bucket, with measured and
// weather buckets attached where their timestamps match exactly. All three
// series are aggregated at the same interval before merging.
func (s *Service) Compare(ctx context.Context, query Query) ([]analysis.MergedPoint, error) {
	if err := s.checkLocation(ctx, query.LocationID); err != nil {
		metrics.ObserveQuery(metrics.ResultError)
		return nil, err
	}

	var forecast, actual, weather []analysis.Sample
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		forecast, err = s.fetchSeries(groupCtx, "forecast", query, s.reader.ForecastRange)
		return err
	})
	group.Go(func() error {
		var err error
		actual, err = s.fetchSeries(groupCtx, "actual", query, func(ctx context.Context, locationID string, start, end time.Time) ([]analysis.Sample, error) {
			return s.reader.ProductionRange(ctx, locationID, start, end, 0, 0)
		})
		return err
	})
	group.Go(func() error {
		var err error
		weather, err = s.fetchSeries(groupCtx, "weather", query, s.reader.WeatherRange)
		return err
	})
	if err := group.Wait(); err != nil {
		metrics.ObserveQuery(metrics.ResultError)
		return nil, err
	}

	forecastBuckets, err := s.bucketize(forecast, query.Interval, analysis.DefaultForecastSpecs())
	if err != nil {
		metrics.ObserveQuery(metrics.ResultError)
		return nil, err
	}
	actualBuckets, err := s.bucketize(actual, query.Interval, analysis.DefaultProductionSpecs())
	if err != nil {
		metrics.ObserveQuery(metrics.ResultError)
		return nil, err
	}
	weatherBuckets, err := s.bucketize(weather, query.Interval, analysis.DefaultWeatherSpecs())
	if err != nil {
		metrics.ObserveQuery(metrics.ResultError)
		return nil, err
	}

	points := analysis.Merge(forecastBuckets, map[string][]analysis.Bucket{
		"actual":  actualBuckets,
		"weather": weatherBuckets,
	})
	metrics.ObserveQuery(metrics.ResultSuccess)
	return points, nil
}

// ProductionResult is the outcome of a production query: bucketed for
// aggregated intervals, raw samples otherwise.
type ProductionResult struct {
	Interval analysis.Interval
	Buckets  []analysis.Bucket
	Samples  []analysis.Sample
}

// Production returns the measured series at the query's interval. Raw-mode
// queries range-scan with pagination; aggregated intervals push the bucketing
// into the store.
func (s *Service) Production(ctx context.Context, query Query) (ProductionResult, error) {
	if err := s.checkLocation(ctx, query.LocationID); err != nil {
		metrics.ObserveQuery(metrics.ResultError)
		return ProductionResult{}, err
	}

	result := ProductionResult{Interval: query.Interval}
	start := time.Now()
	if query.Interval == analysis.IntervalRaw {
		samples, err := s.reader.ProductionRange(ctx, query.LocationID, query.Start, query.End, query.Limit, query.Offset)
		if err != nil {
			metrics.ObserveQuery(metrics.ResultError)
			return ProductionResult{}, err
		}
		result.Samples = samples
	} else {
		buckets, err := s.reader.BucketedProduction(ctx, query.LocationID, query.Interval, query.Start, query.End, query.Limit)
		if err != nil {
			metrics.ObserveQuery(metrics.ResultError)
			return ProductionResult{}, err
		}
		result.Buckets = buckets
	}
	metrics.ObserveSeriesFetch("production", time.Since(start))
	metrics.ObserveQuery(metrics.ResultSuccess)
	return result, nil
}

// LatestForecast returns the most recent forecast sample for an active
// location.
func (s *Service) LatestForecast(ctx context.Context, locationID string) (analysis.Sample, error) {
	if locationID == "" {
		return analysis.Sample{}, errors.New("analysis query: missing location id")
	}
	if err := s.checkLocation(ctx, locationID); err != nil {
		metrics.ObserveQuery(metrics.ResultError)
		return analysis.Sample{}, err
	}
	sample, err := s.reader.LatestForecast(ctx, locationID)
	if err != nil {
		metrics.ObserveQuery(metrics.ResultError)
		return analysis.Sample{}, err
	}
	metrics.ObserveQuery(metrics.ResultSuccess)
	return sample, nil
}

type rangeFetch func(ctx context.Context, locationID string, start, end time.Time) ([]analysis.Sample, error)

func (s *Service) fetchSeries(ctx context.Context, name string, query Query, fetch rangeFetch) ([]analysis.Sample, error) {
	start := time.Now()
	samples, err := fetch(ctx, query.LocationID, query.Start, query.End)
	metrics.ObserveSeriesFetch(name, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("fetch %s series: %w", name, err)
	}
	return samples, nil
}

func (s *Service) bucketize(samples []analysis.Sample, interval analysis.Interval, specs []analysis.MetricSpec) ([]analysis.Bucket, error) {
	if interval == analysis.IntervalRaw {
		return analysis.RawBuckets(samples), nil
	}
	return analysis.Aggregate(samples, interval, specs)
}

func (s *Service) checkLocation(ctx context.Context, locationID string) error {
	location, err := s.directory.FindLocation(ctx, locationID)
	if err != nil {
		return err
	}
	if !location.IsActive() {
		return fmt.Errorf("%w: %s is %s", locations.ErrLocationInactive, location.ID, location.Status)
	}
	return nil
}
