package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "solar_"

	resultSuccess = "success"
	resultError   = "error"

	rowOutcomeInserted = "inserted"
	rowOutcomeSkipped  = "skipped"

	cacheEventHit  = "hit"
	cacheEventMiss = "miss"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestErrors   *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec
	ingestRows     *prometheus.CounterVec

	queryRequests *prometheus.CounterVec
	seriesLatency *prometheus.HistogramVec

	cacheEvents *prometheus.CounterVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total ingest requests by result",
			},
			[]string{"result"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total ingest errors by reason",
			},
			[]string{"reason"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Bulk ingestion latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		ingestRows = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_rows_total",
				Help: "Total ingested rows by outcome",
			},
			[]string{"outcome"},
		)

		queryRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "query_requests_total",
				Help: "Total analysis queries by result",
			},
			[]string{"result"},
		)
		seriesLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "series_fetch_latency_seconds",
				Help:    "Per-series fetch latency on the query path in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"series"},
		)

		cacheEvents = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "weather_cache_events_total",
				Help: "Weather cache hits and misses",
			},
			[]string{"event"},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestErrors,
			ingestLatency,
			ingestRows,
			queryRequests,
			seriesLatency,
			cacheEvents,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveIngest records ingest request duration and result.
func ObserveIngest(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if ingestRequests != nil {
		ingestRequests.WithLabelValues(result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncIngestError increments ingest error counter.
func IncIngestError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(reason).Inc()
	}
}

// AddIngestRows adds row outcomes for one ingestion call.
func AddIngestRows(outcome string, count int) {
	if count <= 0 {
		return
	}
	if ingestRows != nil {
		ingestRows.WithLabelValues(outcome).Add(float64(count))
	}
}

// ObserveQuery records analysis query results.
func ObserveQuery(result string) {
	if result == "" {
		result = resultSuccess
	}
	if queryRequests != nil {
		queryRequests.WithLabelValues(result).Inc()
	}
}

// ObserveSeriesFetch records one per-series fetch duration.
func ObserveSeriesFetch(series string, duration time.Duration) {
	if series == "" {
		series = "unknown"
	}
	if seriesLatency != nil {
		seriesLatency.WithLabelValues(series).Observe(duration.Seconds())
	}
}

// IncCacheEvent increments weather cache hit/miss counters.
func IncCacheEvent(event string) {
	if event == "" {
		event = "unknown"
	}
	if cacheEvents != nil {
		cacheEvents.WithLabelValues(event).Inc()
	}
}

// Exported constants for callers.
const (
	IngestResultSuccess = resultSuccess
	IngestResultError   = resultError

	ResultSuccess = resultSuccess
	ResultError   = resultError

	RowsInserted = rowOutcomeInserted
	RowsSkipped  = rowOutcomeSkipped

	CacheHit  = cacheEventHit
	CacheMiss = cacheEventMiss
)
