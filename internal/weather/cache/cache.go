// Package cache provides a TTL read-through cache for weather series.
// Weather observations arrive on a provider schedule, so re-reading the
// store for every analysis query within the refresh window is wasted work.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	badger "github.com/dgraph-io/badger/v4"

	analysis "github.com/p-vbordei/solar-forecast-sub001/internal/analysis/domain"
	"github.com/p-vbordei/solar-forecast-sub001/internal/observability/metrics"
)

// WeatherReader is the upstream series source the cache decorates.
type WeatherReader interface {
	WeatherRange(ctx context.Context, locationID string, start, end time.Time) ([]analysis.Sample, error)
}

const defaultTTL = 15 * time.Minute

// CachedReader serves weather ranges from a badger store before falling back
// to the upstream reader. Entries expire after the configured TTL.
type CachedReader struct {
	upstream WeatherReader
	db       *badger.DB
	ttl      time.Duration
	logger   *log.Logger
}

// Option configures the cached reader.
type Option func(*CachedReader)

// WithTTL overrides the default entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *CachedReader) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// NewCachedReader wraps the upstream reader with a badger-backed TTL cache.
func NewCachedReader(upstream WeatherReader, db *badger.DB, logger *log.Logger, opts ...Option) (*CachedReader, error) {
	if upstream == nil {
		return nil, errors.New("weather cache: nil upstream reader")
	}
	if db == nil {
		return nil, errors.New("weather cache: nil badger db")
	}
	if logger == nil {
		logger = log.Default()
	}
	cached := &CachedReader{upstream: upstream, db: db, ttl: defaultTTL, logger: logger}
	for _, opt := range opts {
		opt(cached)
	}
	return cached, nil
}

// WeatherRange returns the cached series when present, otherwise reads
// upstream and stores the result. Cache failures degrade to upstream reads
// rather than failing the query.
func (c *CachedReader) WeatherRange(ctx context.Context, locationID string, start, end time.Time) ([]analysis.Sample, error) {
	key := cacheKey(locationID, start, end)

	if samples, ok := c.get(key); ok {
		metrics.IncCacheEvent(metrics.CacheHit)
		return samples, nil
	}
	metrics.IncCacheEvent(metrics.CacheMiss)

	samples, err := c.upstream.WeatherRange(ctx, locationID, start, end)
	if err != nil {
		return nil, err
	}
	if err := c.put(key, samples); err != nil {
		c.logger.Printf("weather cache: store %s: %v", locationID, err)
	}
	return samples, nil
}

func (c *CachedReader) get(key []byte) ([]analysis.Sample, bool) {
	var payload []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			c.logger.Printf("weather cache: read: %v", err)
		}
		return nil, false
	}

	var samples []analysis.Sample
	if err := json.Unmarshal(payload, &samples); err != nil {
		c.logger.Printf("weather cache: decode: %v", err)
		return nil, false
	}
	return samples, true
}

func (c *CachedReader) put(key []byte, samples []analysis.Sample) error {
	payload, err := json.Marshal(samples)
	if err != nil {
		return fmt.Errorf("encode samples: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, payload).WithTTL(c.ttl)
		return txn.SetEntry(entry)
	})
}

func cacheKey(locationID string, start, end time.Time) []byte {
	digest := xxhash.New()
	digest.WriteString(locationID)
	digest.WriteString("|")
	digest.WriteString(strconv.FormatInt(start.UTC().UnixNano(), 10))
	digest.WriteString("|")
	digest.WriteString(strconv.FormatInt(end.UTC().UnixNano(), 10))
	return []byte("weather:" + strconv.FormatUint(digest.Sum64(), 16))
}
