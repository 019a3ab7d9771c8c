package analysis

import (
	"math"
	"time"
)

// Provenance tells whether an aggregate value was computed from samples or
// synthesized from a related metric.
type Provenance string

const (
	ProvenanceObserved  Provenance = "observed"
	ProvenanceEstimated Provenance = "estimated"
)

// AggregateValue is one statistic for one metric within a bucket. Estimated
// values carry the metric they were derived from so consumers can tell a
// synthesized number from a measured one.
type AggregateValue struct {
	Value      float64    `json:"value"`
	Provenance Provenance `json:"provenance"`
	Basis      string     `json:"basis,omitempty"`
}

// Bucket is the aggregated summary of all samples whose timestamp falls
// within one fixed-width time window. Buckets are derived on every query and
// never mutated after creation.
type Bucket struct {
	BucketStart time.Time                 `json:"bucketStart"`
	LocationID  string                    `json:"locationId"`
	Aggregates  map[string]AggregateValue `json:"aggregates"`
	SampleCount int                       `json:"sampleCount"`
}

// Sample is a single point of a time series read from storage. Metric values
// are nullable: a nil entry means the column was present but empty.
type Sample struct {
	TS         time.Time           `json:"ts"`
	LocationID string              `json:"locationId"`
	Metrics    map[string]*float64 `json:"metrics"`
}

// Statistic is an aggregate function applied to one metric per bucket.
type Statistic string

const (
	StatAvg   Statistic = "avg"
	StatSum   Statistic = "sum"
	StatMin   Statistic = "min"
	StatMax   Statistic = "max"
	StatCount Statistic = "count"
	StatP10   Statistic = "p10"
	StatP90   Statistic = "p90"
)

// IsValid checks if the statistic is one of the supported values.
func (s Statistic) IsValid() bool {
	switch s {
	case StatAvg, StatSum, StatMin, StatMax, StatCount, StatP10, StatP90:
		return true
	default:
		return false
	}
}

// MetricSpec declares how one metric is aggregated. Power-like metrics
// average, energy-like metrics sum; the statistic is declared per metric, the
// aggregator never applies one rule uniformly.
//
// When FallbackBasis is set and a bucket holds no samples for Metric, the
// aggregator synthesizes FallbackFactor times the average of the basis metric
// and marks the value as estimated.
type MetricSpec struct {
	Metric         string
	Statistic      Statistic
	FallbackBasis  string
	FallbackFactor float64
}

// DefaultProductionSpecs covers the measured production series: power is
// instantaneous and averages, energy accumulates and sums.
func DefaultProductionSpecs() []MetricSpec {
	return []MetricSpec{
		{Metric: "power_mw", Statistic: StatAvg},
		{Metric: "energy_mwh", Statistic: StatSum},
		{Metric: "capacity_factor", Statistic: StatAvg},
		{Metric: "availability", Statistic: StatAvg},
	}
}

// DefaultForecastSpecs covers the forecast series. Confidence bounds fall
// back to a band around average power when no quantile samples exist.
func DefaultForecastSpecs() []MetricSpec {
	return []MetricSpec{
		{Metric: "power_mw", Statistic: StatAvg},
		{Metric: "energy_mwh", Statistic: StatSum},
		{Metric: "power_mw_q10", Statistic: StatAvg, FallbackBasis: "power_mw", FallbackFactor: 0.8},
		{Metric: "power_mw_q90", Statistic: StatAvg, FallbackBasis: "power_mw", FallbackFactor: 1.2},
	}
}

// DefaultWeatherSpecs covers the weather companion series.
func DefaultWeatherSpecs() []MetricSpec {
	return []MetricSpec{
		{Metric: "temperature", Statistic: StatAvg},
		{Metric: "ghi", Statistic: StatAvg},
		{Metric: "cloud_cover", Statistic: StatAvg},
		{Metric: "wind_speed", Statistic: StatAvg},
	}
}

// NewObservedValue wraps a directly computed statistic, rounding once at the
// boundary.
func NewObservedValue(value float64) AggregateValue {
	return AggregateValue{Value: round2(value), Provenance: ProvenanceObserved}
}

// round2 fixes physical quantities to two decimals. Rounding happens once, at
// the aggregate boundary.
func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
