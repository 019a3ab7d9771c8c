package ingestion

import (
	"context"
	"time"
)

// Measurement is one validated production sample ready for storage.
type Measurement struct {
	ID         string
	LocationID string
	TS         time.Time

	PowerMW        float64
	EnergyMWh      *float64
	CapacityFactor float64
	Availability   float64
}

// ConflictPolicy governs what happens when an inserted sample collides with
// an existing one on (location, timestamp).
type ConflictPolicy string

const (
	// ConflictSkip leaves the existing row untouched; re-ingesting an
	// identical payload is idempotent and skipped rows are not counted as
	// inserted.
	ConflictSkip ConflictPolicy = "skip"
	// ConflictUpdate overwrites the existing row with the new values.
	ConflictUpdate ConflictPolicy = "update"
)

// IsValid checks if the policy is one of the supported values.
func (p ConflictPolicy) IsValid() bool {
	return p == ConflictSkip || p == ConflictUpdate
}

// Result reports the outcome of one bulk ingestion call. It is returned to
// the caller and never persisted.
type Result struct {
	TotalRows    int      `json:"totalRows"`
	InsertedRows int      `json:"insertedRows"`
	SkippedRows  int      `json:"skippedRows"`
	Errors       []string `json:"errors"`
	ElapsedMs    int64    `json:"elapsedMs"`
}

// MeasurementStore bulk-writes production samples into the time-partitioned
// store. Inserted counts reflect only rows the store actually accepted:
// duplicates skipped under ConflictSkip do not count.
type MeasurementStore interface {
	BulkInsert(ctx context.Context, measurements []Measurement, policy ConflictPolicy) (int, error)
}
