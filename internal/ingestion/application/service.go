package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	ingestion "github.com/p-vbordei/solar-forecast-sub001/internal/ingestion/domain"
	"github.com/p-vbordei/solar-forecast-sub001/internal/ingestion/parser"
	locations "github.com/p-vbordei/solar-forecast-sub001/internal/locations/domain"
	"github.com/p-vbordei/solar-forecast-sub001/internal/observability/metrics"
)

const defaultBatchSize = 1000

// LocationDirectory resolves the location precondition before any write.
type LocationDirectory interface {
	FindLocation(ctx context.Context, id string) (locations.Location, error)
}

// Service is the bulk ingestion pipeline: location gate, per-row validation,
// time-ordered batching, and bulk writes into the time-partitioned store.
type Service struct {
	directory LocationDirectory
	store     ingestion.MeasurementStore
	batchSize int
	policy    ingestion.ConflictPolicy
	logger    *log.Logger
}

// Option configures the ingestion service.
type Option func(*Service)

// WithBatchSize overrides the default bulk write batch size.
func WithBatchSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithConflictPolicy overrides the default skip-duplicates policy.
func WithConflictPolicy(policy ingestion.ConflictPolicy) Option {
	return func(s *Service) {
		s.policy = policy
	}
}

// NewService constructs the ingestion pipeline.
func NewService(directory LocationDirectory, store ingestion.MeasurementStore, logger *log.Logger, opts ...Option) (*Service, error) {
	if directory == nil {
		return nil, errors.New("ingestion service: nil location directory")
	}
	if store == nil {
		return nil, errors.New("ingestion service: nil measurement store")
	}
	if logger == nil {
		logger = log.Default()
	}
	service := &Service{
		directory: directory,
		store:     store,
		batchSize: defaultBatchSize,
		policy:    ingestion.ConflictSkip,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(service)
	}
	if !service.policy.IsValid() {
		return nil, fmt.Errorf("%w: %q", ingestion.ErrInvalidPolicy, service.policy)
	}
	return service, nil
}

// IngestCSV parses a delimited payload and runs the ingestion pipeline for
// the given location. Structural and precondition failures return an error
// with nothing ingested; row-level problems are accumulated into the result.
func (s *Service) IngestCSV(ctx context.Context, locationID, payload string) (ingestion.Result, error) {
	parsed, err := parser.Parse(payload)
	if err != nil {
		return ingestion.Result{}, err
	}
	return s.Ingest(ctx, locationID, parsed)
}

// Ingest validates, sorts, batches, and writes parsed rows.
//
// A batch-write failure returns the partially filled result alongside the
// error: InsertedRows reflects only batches the store committed, so callers
// see an accurate partial count instead of a bare failure.
func (s *Service) Ingest(ctx context.Context, locationID string, payload parser.Payload) (ingestion.Result, error) {
	start := time.Now()

	if err := s.checkLocation(ctx, locationID); err != nil {
		return ingestion.Result{}, err
	}

	decoder, err := parser.NewRowDecoder(payload.Headers)
	if err != nil {
		return ingestion.Result{}, err
	}

	result := ingestion.Result{
		TotalRows:   len(payload.Rows) + len(payload.Errors),
		SkippedRows: len(payload.Errors),
		Errors:      append([]string(nil), payload.Errors...),
	}

	// Row validation accumulates; it never aborts the call.
	accepted := make([]ingestion.Measurement, 0, len(payload.Rows))
	for i, row := range payload.Rows {
		rowNum := i + 1
		if i < len(payload.RowNums) {
			rowNum = payload.RowNums[i]
		}
		measurement, rowErrs := decoder.Decode(rowNum, row)
		if len(rowErrs) > 0 {
			result.SkippedRows++
			result.Errors = append(result.Errors, rowErrs...)
			continue
		}
		measurement.ID = uuid.NewString()
		measurement.LocationID = locationID
		accepted = append(accepted, measurement)
	}

	// The store performs far better on time-ordered bulk loads; unsorted
	// batches must never reach it.
	sort.Slice(accepted, func(i, j int) bool { return accepted[i].TS.Before(accepted[j].TS) })

	for offset := 0; offset < len(accepted); offset += s.batchSize {
		end := offset + s.batchSize
		if end > len(accepted) {
			end = len(accepted)
		}
		inserted, err := s.store.BulkInsert(ctx, accepted[offset:end], s.policy)
		if err != nil {
			result.ElapsedMs = time.Since(start).Milliseconds()
			s.logger.Printf("ingest: batch write failed for location %s after %d rows: %v", locationID, result.InsertedRows, err)
			metrics.ObserveIngest(metrics.IngestResultError, time.Since(start))
			metrics.IncIngestError("batch_write")
			return result, fmt.Errorf("%w: rows %d-%d: %w", ingestion.ErrBatchWrite, offset, end-1, err)
		}
		result.InsertedRows += inserted
	}

	result.ElapsedMs = time.Since(start).Milliseconds()
	metrics.ObserveIngest(metrics.IngestResultSuccess, time.Since(start))
	metrics.AddIngestRows(metrics.RowsInserted, result.InsertedRows)
	metrics.AddIngestRows(metrics.RowsSkipped, result.SkippedRows)
	s.logger.Printf("ingest: location=%s total=%d inserted=%d skipped=%d elapsed=%dms",
		locationID, result.TotalRows, result.InsertedRows, result.SkippedRows, result.ElapsedMs)
	return result, nil
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
