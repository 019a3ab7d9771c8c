package application

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	analysis "github.com/p-vbordei/solar-forecast-sub001/internal/analysis/domain"
	locations "github.com/p-vbordei/solar-forecast-sub001/internal/locations/domain"
)

type stubDirectory struct {
	location locations.Location
	err      error
}

func (s *stubDirectory) FindLocation(ctx context.Context, id string) (locations.Location, error) {
	if s.err != nil {
		return locations.Location{}, s.err
	}
	return s.location, nil
}

type stubReader struct {
	forecast   []analysis.Sample
	production []analysis.Sample
	weather    []analysis.Sample
	buckets    []analysis.Bucket

	productionCalls int
	bucketedCalls   int
	lastLimit       int
	lastOffset      int
	err             error
}

func (s *stubReader) ForecastRange(ctx context.Context, locationID string, start, end time.Time) ([]analysis.Sample, error) {
	return s.forecast, s.err
}

func (s *stubReader) ProductionRange(ctx context.Context, locationID string, start, end time.Time, limit, offset int) ([]analysis.Sample, error) {
	s.productionCalls++
	s.lastLimit = limit
	s.lastOffset = offset
	return s.production, s.err
}

func (s *stubReader) WeatherRange(ctx context.Context, locationID string, start, end time.Time) ([]analysis.Sample, error) {
	return s.weather, s.err
}

func (s *stubReader) BucketedProduction(ctx context.Context, locationID string, interval analysis.Interval, start, end time.Time, limit int) ([]analysis.Bucket, error) {
	s.bucketedCalls++
	return s.buckets, s.err
}

func (s *stubReader) LatestForecast(ctx context.Context, locationID string) (analysis.Sample, error) {
	if s.err != nil {
		return analysis.Sample{}, s.err
	}
	if len(s.forecast) == 0 {
		return analysis.Sample{}, analysis.ErrNoForecast
	}
	return s.forecast[len(s.forecast)-1], nil
}

func testLogger() *log.Logger {
	return log.New(os.Stderr, "test: ", log.LstdFlags)
}

func activeDirectory() *stubDirectory {
	return &stubDirectory{location: locations.Location{ID: "loc-1", Status: locations.StatusActive}}
}

func ptr(v float64) *float64 { return &v }

func sampleAt(ts time.Time, power float64) analysis.Sample {
	return analysis.Sample{
		TS:         ts,
		LocationID: "loc-1",
		Metrics:    map[string]*float64{"power_mw": ptr(power)},
	}
}

func TestNewQueryDefaultsInterval(t *testing.T) {
	query, err := NewQuery("loc-1", "2025-06-01", "2025-06-06", "", 0, 0)
	if err != nil {
		t.Fatalf("build query: %v", err)
	}
	if query.Interval != analysis.Interval15Min {
		t.Fatalf("interval = %s, want %s", query.Interval, analysis.Interval15Min)
	}
}

func TestNewQueryRejectsUnknownInterval(t *testing.T) {
	_, err := NewQuery("loc-1", "2025-06-01", "2025-06-10", "fortnightly", 0, 0)
	if !errors.Is(err, analysis.ErrUnknownInterval) {
		t.Fatalf("err = %v, want ErrUnknownInterval", err)
	}
}

func TestNewQueryRejectsInvertedRange(t *testing.T) {
	_, err := NewQuery("loc-1", "2025-06-10", "2025-06-01", "", 0, 0)
	if !errors.Is(err, analysis.ErrInvalidRange) {
		t.Fatalf("err = %v, want ErrInvalidRange", err)
	}
}

func TestNewQueryRejectsBadDate(t *testing.T) {
	if _, err := NewQuery("loc-1", "June 1st", "", "", 0, 0); err == nil {
		t.Fatal("expected error for unparseable date")
	}
}

func TestCompareMergesSeries(t *testing.T) {
	hour := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	reader := &stubReader{
		forecast: []analysis.Sample{
			sampleAt(hour.Add(5*time.Minute), 10),
			sampleAt(hour.Add(35*time.Minute), 20),
		},
		production: []analysis.Sample{
			sampleAt(hour.Add(10*time.Minute), 12),
		},
		weather: []analysis.Sample{
			{
				TS:         hour.Add(15 * time.Minute),
				LocationID: "loc-1",
				Metrics:    map[string]*float64{"temperature": ptr(21.5)},
			},
		},
	}
	service, err := NewService(activeDirectory(), reader, testLogger())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	query := Query{LocationID: "loc-1", Interval: analysis.IntervalHourly}
	points, err := service.Compare(context.Background(), query)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("points = %d, want 1", len(points))
	}
	point := points[0]
	if got := point.Primary.Aggregates["power_mw"].Value; got != 15 {
		t.Fatalf("forecast avg = %v, want 15", got)
	}
	actual, ok := point.Series["actual"]
	if !ok {
		t.Fatal("missing actual series on merged point")
	}
	if got := actual.Aggregates["power_mw"].Value; got != 12 {
		t.Fatalf("actual avg = %v, want 12", got)
	}
	weather, ok := point.Series["weather"]
	if !ok {
		t.Fatal("missing weather series on merged point")
	}
	if got := weather.Aggregates["temperature"].Value; got != 21.5 {
		t.Fatalf("weather temperature = %v, want 21.5", got)
	}
}

func TestCompareGatesOnLocation(t *testing.T) {
	reader := &stubReader{}
	directory := &stubDirectory{err: locations.ErrLocationNotFound}
	service, err := NewService(directory, reader, testLogger())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = service.Compare(context.Background(), Query{LocationID: "ghost", Interval: analysis.IntervalHourly})
	if !errors.Is(err, locations.ErrLocationNotFound) {
		t.Fatalf("err = %v, want ErrLocationNotFound", err)
	}

	directory.err = nil
	directory.location = locations.Location{ID: "loc-1", Status: locations.StatusMaintenance}
	_, err = service.Compare(context.Background(), Query{LocationID: "loc-1", Interval: analysis.IntervalHourly})
	if !errors.Is(err, locations.ErrLocationInactive) {
		t.Fatalf("err = %v, want ErrLocationInactive", err)
	}
	if reader.productionCalls != 0 {
		t.Fatalf("reader touched %d times for gated location", reader.productionCalls)
	}
}

func TestCompareSurfacesFetchError(t *testing.T) {
	reader := &stubReader{err: errors.New("connection reset")}
	service, err := NewService(activeDirectory(), reader, testLogger())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = service.Compare(context.Background(), Query{LocationID: "loc-1", Interval: analysis.IntervalHourly})
	if err == nil {
		t.Fatal("expected fetch error to surface")
	}
}

func TestProductionRawUsesRangeScan(t *testing.T) {
	hour := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	reader := &stubReader{production: []analysis.Sample{sampleAt(hour, 10)}}
	service, err := NewService(activeDirectory(), reader, testLogger())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	query := Query{LocationID: "loc-1", Interval: analysis.IntervalRaw, Limit: 500, Offset: 1000}
	result, err := service.Production(context.Background(), query)
	if err != nil {
		t.Fatalf("production: %v", err)
	}
	if len(result.Samples) != 1 || result.Buckets != nil {
		t.Fatalf("raw query returned %d samples, %d buckets", len(result.Samples), len(result.Buckets))
	}
	if reader.lastLimit != 500 || reader.lastOffset != 1000 {
		t.Fatalf("pagination not forwarded: limit=%d offset=%d", reader.lastLimit, reader.lastOffset)
	}
	if reader.bucketedCalls != 0 {
		t.Fatal("raw query must not hit the bucketed path")
	}
}

func TestLatestForecast(t *testing.T) {
	hour := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	reader := &stubReader{forecast: []analysis.Sample{sampleAt(hour, 10), sampleAt(hour.Add(time.Hour), 14)}}
	service, err := NewService(activeDirectory(), reader, testLogger())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	sample, err := service.LatestForecast(context.Background(), "loc-1")
	if err != nil {
		t.Fatalf("latest forecast: %v", err)
	}
	if !sample.TS.Equal(hour.Add(time.Hour)) {
		t.Fatalf("latest ts = %v", sample.TS)
	}

	empty := &stubReader{}
	service, err = NewService(activeDirectory(), empty, testLogger())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := service.LatestForecast(context.Background(), "loc-1"); !errors.Is(err, analysis.ErrNoForecast) {
		t.Fatalf("err = %v, want ErrNoForecast", err)
	}
}

func TestProductionAggregatedUsesStoreBuckets(t *testing.T) {
	hour := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	reader := &stubReader{buckets: []analysis.Bucket{{BucketStart: hour, LocationID: "loc-1"}}}
	service, err := NewService(activeDirectory(), reader, testLogger())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	result, err := service.Production(context.Background(), Query{LocationID: "loc-1", Interval: analysis.IntervalDaily})
	if err != nil {
		t.Fatalf("production: %v", err)
	}
	if len(result.Buckets) != 1 || result.Samples != nil {
		t.Fatalf("aggregated query returned %d buckets, %d samples", len(result.Buckets), len(result.Samples))
	}
	if reader.productionCalls != 0 {
		t.Fatal("aggregated query must not range scan")
	}
}
