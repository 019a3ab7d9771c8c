package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/jackc/pgx/v5/stdlib"

	analysisapp "github.com/p-vbordei/solar-forecast-sub001/internal/analysis/application"
	analysis "github.com/p-vbordei/solar-forecast-sub001/internal/analysis/domain"
	analysisstore "github.com/p-vbordei/solar-forecast-sub001/internal/analysis/infrastructure/postgres"
	analysishttp "github.com/p-vbordei/solar-forecast-sub001/internal/analysis/interfaces/http"
	"github.com/p-vbordei/solar-forecast-sub001/internal/config"
	ingestapp "github.com/p-vbordei/solar-forecast-sub001/internal/ingestion/application"
	ingestion "github.com/p-vbordei/solar-forecast-sub001/internal/ingestion/domain"
	ingeststore "github.com/p-vbordei/solar-forecast-sub001/internal/ingestion/infrastructure/postgres"
	ingesthttp "github.com/p-vbordei/solar-forecast-sub001/internal/ingestion/interfaces/http"
	locationstore "github.com/p-vbordei/solar-forecast-sub001/internal/locations/infrastructure/postgres"
	"github.com/p-vbordei/solar-forecast-sub001/internal/observability/metrics"
	weathercache "github.com/p-vbordei/solar-forecast-sub001/internal/weather/cache"
)

func main() {
	_ = godotenv.Load()

	logger := log.New(os.Stdout, "", log.LstdFlags)
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}
	sqlxDB := sqlx.NewDb(db, "pgx")

	cacheDB, err := badger.Open(badger.DefaultOptions(cfg.CacheDir).WithLoggingLevel(badger.WARNING))
	if err != nil {
		logger.Fatalf("cache open error: %v", err)
	}
	defer cacheDB.Close()

	// Badger drops expired entries lazily; periodic value-log GC reclaims
	// the space.
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			for {
				if err := cacheDB.RunValueLogGC(0.5); err != nil {
					break
				}
			}
		}
	}()

	metrics.Init(db, logger)

	locationRepo := locationstore.NewLocationRepository(sqlxDB)
	measurementRepo := ingeststore.NewMeasurementRepository(db)
	seriesReader := analysisstore.NewSeriesReader(db, analysisstore.WithBucketLimit(cfg.QueryLimit))

	weatherReader, err := weathercache.NewCachedReader(seriesReader, cacheDB, logger, weathercache.WithTTL(cfg.WeatherCacheTTL.Std()))
	if err != nil {
		logger.Fatalf("weather cache error: %v", err)
	}

	ingestService, err := ingestapp.NewService(locationRepo, measurementRepo, logger,
		ingestapp.WithBatchSize(cfg.IngestBatchSize),
		ingestapp.WithConflictPolicy(ingestion.ConflictPolicy(cfg.ConflictPolicy)),
	)
	if err != nil {
		logger.Fatalf("ingestion service error: %v", err)
	}
	ingestHandler, err := ingesthttp.NewIngestHandler(ingestService, logger)
	if err != nil {
		logger.Fatalf("ingest handler error: %v", err)
	}

	analysisService, err := analysisapp.NewService(locationRepo, cachedSeriesReader{seriesReader, weatherReader}, logger)
	if err != nil {
		logger.Fatalf("analysis service error: %v", err)
	}
	analysisHandler, err := analysishttp.NewAnalysisHandler(analysisService, logger)
	if err != nil {
		logger.Fatalf("analysis handler error: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/v1/locations/{id}/production", ingestHandler)
	mux.HandleFunc("GET /api/v1/analysis", analysisHandler.Compare)
	mux.HandleFunc("GET /api/v1/production", analysisHandler.Production)
	mux.HandleFunc("GET /api/v1/forecast/latest", analysisHandler.LatestForecast)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(mux, logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

// cachedSeriesReader delegates weather reads through the TTL cache while the
// other series go straight to the store.
type cachedSeriesReader struct {
	*analysisstore.SeriesReader
	weather *weathercache.CachedReader
}

func (r cachedSeriesReader) WeatherRange(ctx context.Context, locationID string, start, end time.Time) ([]analysis.Sample, error) {
	return r.weather.WeatherRange(ctx, locationID, start, end)
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
