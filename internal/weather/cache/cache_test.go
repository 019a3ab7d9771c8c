package cache

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	analysis "github.com/p-vbordei/solar-forecast-sub001/internal/analysis/domain"
)

type countingReader struct {
	samples []analysis.Sample
	err     error
	calls   int
}

func (r *countingReader) WeatherRange(ctx context.Context, locationID string, start, end time.Time) ([]analysis.Sample, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.samples, nil
}

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(v float64) *float64 { return &v }

func testSamples() []analysis.Sample {
	return []analysis.Sample{
		{
			TS:         time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
			LocationID: "loc-1",
			Metrics:    map[string]*float64{"temperature": ptr(21.5), "ghi": ptr(640)},
		},
	}
}

func TestWeatherRangeCachesUpstream(t *testing.T) {
	upstream := &countingReader{samples: testSamples()}
	logger := log.New(os.Stderr, "test: ", log.LstdFlags)
	cached, err := NewCachedReader(upstream, openTestDB(t), logger)
	if err != nil {
		t.Fatalf("new cached reader: %v", err)
	}

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	ctx := context.Background()

	first, err := cached.WeatherRange(ctx, "loc-1", start, end)
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	second, err := cached.WeatherRange(ctx, "loc-1", start, end)
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if upstream.calls != 1 {
		t.Fatalf("upstream calls = %d, want 1", upstream.calls)
	}
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("sample counts = %d, %d, want 1, 1", len(first), len(second))
	}
	if got := *second[0].Metrics["temperature"]; got != 21.5 {
		t.Fatalf("cached temperature = %v, want 21.5", got)
	}
	if !second[0].TS.Equal(first[0].TS) {
		t.Fatalf("cached timestamp %v differs from %v", second[0].TS, first[0].TS)
	}
}

func TestWeatherRangeDistinctKeys(t *testing.T) {
	upstream := &countingReader{samples: testSamples()}
	logger := log.New(os.Stderr, "test: ", log.LstdFlags)
	cached, err := NewCachedReader(upstream, openTestDB(t), logger)
	if err != nil {
		t.Fatalf("new cached reader: %v", err)
	}

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	if _, err := cached.WeatherRange(ctx, "loc-1", start, start.Add(24*time.Hour)); err != nil {
		t.Fatalf("first range: %v", err)
	}
	if _, err := cached.WeatherRange(ctx, "loc-1", start, start.Add(48*time.Hour)); err != nil {
		t.Fatalf("second range: %v", err)
	}
	if _, err := cached.WeatherRange(ctx, "loc-2", start, start.Add(24*time.Hour)); err != nil {
		t.Fatalf("third range: %v", err)
	}
	if upstream.calls != 3 {
		t.Fatalf("upstream calls = %d, want 3 distinct fetches", upstream.calls)
	}
}

func TestWeatherRangeExpiry(t *testing.T) {
	upstream := &countingReader{samples: testSamples()}
	logger := log.New(os.Stderr, "test: ", log.LstdFlags)
	cached, err := NewCachedReader(upstream, openTestDB(t), logger, WithTTL(time.Millisecond))
	if err != nil {
		t.Fatalf("new cached reader: %v", err)
	}

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	ctx := context.Background()

	if _, err := cached.WeatherRange(ctx, "loc-1", start, end); err != nil {
		t.Fatalf("first read: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := cached.WeatherRange(ctx, "loc-1", start, end); err != nil {
		t.Fatalf("expired read: %v", err)
	}
	if upstream.calls != 2 {
		t.Fatalf("upstream calls = %d, want refetch after expiry", upstream.calls)
	}
}

func TestWeatherRangeUpstreamError(t *testing.T) {
	upstream := &countingReader{err: errors.New("provider down")}
	logger := log.New(os.Stderr, "test: ", log.LstdFlags)
	cached, err := NewCachedReader(upstream, openTestDB(t), logger)
	if err != nil {
		t.Fatalf("new cached reader: %v", err)
	}

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if _, err := cached.WeatherRange(context.Background(), "loc-1", start, start.Add(time.Hour)); err == nil {
		t.Fatal("expected upstream error to surface")
	}
}
