package analysis

import (
	"fmt"
	"sort"
	"time"

	"github.com/montanaflynn/stats"
)

// Aggregate groups samples into fixed-width buckets and applies the declared
// statistic per metric. The bucket key is the sample timestamp floored to the
// interval width. Output is sorted ascending by bucket start; callers rely on
// that ordering.
func Aggregate(samples []Sample, interval Interval, specs []MetricSpec) ([]Bucket, error) {
	if !interval.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInterval, interval)
	}
	if interval == IntervalRaw {
		return nil, ErrRawInterval
	}
	for _, spec := range specs {
		if !spec.Statistic.IsValid() {
			return nil, fmt.Errorf("%w: %q for metric %q", ErrUnknownStatistic, spec.Statistic, spec.Metric)
		}
	}

	width := interval.Duration()
	accums := make(map[int64]*bucketAccum)
	for _, sample := range samples {
		start := sample.TS.UTC().Truncate(width)
		key := start.UnixNano()
		acc := accums[key]
		if acc == nil {
			acc = &bucketAccum{start: start, locationID: sample.LocationID, values: make(map[string][]float64)}
			accums[key] = acc
		}
		acc.count++
		for metric, value := range sample.Metrics {
			if value == nil {
				continue
			}
			acc.values[metric] = append(acc.values[metric], *value)
		}
	}

	buckets := make([]Bucket, 0, len(accums))
	for _, acc := range accums {
		bucket := Bucket{
			BucketStart: acc.start,
			LocationID:  acc.locationID,
			Aggregates:  make(map[string]AggregateValue, len(specs)),
			SampleCount: acc.count,
		}
		for _, spec := range specs {
			values := acc.values[spec.Metric]
			if len(values) == 0 {
				if estimate, ok := estimateFromBasis(spec, acc.values); ok {
					bucket.Aggregates[spec.Metric] = estimate
				}
				continue
			}
			value, err := applyStatistic(spec.Statistic, values)
			if err != nil {
				return nil, fmt.Errorf("aggregate %s(%s): %w", spec.Statistic, spec.Metric, err)
			}
			bucket.Aggregates[spec.Metric] = AggregateValue{
				Value:      round2(value),
				Provenance: ProvenanceObserved,
			}
		}
		buckets = append(buckets, bucket)
	}

	sort.Slice(buckets, func(i, j int) bool { return buckets[i].BucketStart.Before(buckets[j].BucketStart) })
	return buckets, nil
}

// RawBuckets adapts unaggregated samples for merging: each sample becomes a
// single-sample bucket keyed at its own timestamp. Used for the raw interval,
// where no bucket width exists.
func RawBuckets(samples []Sample) []Bucket {
	buckets := make([]Bucket, 0, len(samples))
	for _, sample := range samples {
		bucket := Bucket{
			BucketStart: sample.TS.UTC(),
			LocationID:  sample.LocationID,
			Aggregates:  make(map[string]AggregateValue, len(sample.Metrics)),
			SampleCount: 1,
		}
		for metric, value := range sample.Metrics {
			if value == nil {
				continue
			}
			bucket.Aggregates[metric] = NewObservedValue(*value)
		}
		buckets = append(buckets, bucket)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].BucketStart.Before(buckets[j].BucketStart) })
	return buckets
}

type bucketAccum struct {
	start      time.Time
	locationID string
	count      int
	values     map[string][]float64
}

// estimateFromBasis synthesizes a missing derived metric from a related one,
// e.g. a lower confidence bound as 0.8 times average power when the bucket
// holds no quantile samples. The result is explicitly tagged as estimated.
func estimateFromBasis(spec MetricSpec, values map[string][]float64) (AggregateValue, bool) {
	if spec.FallbackBasis == "" {
		return AggregateValue{}, false
	}
	basis := values[spec.FallbackBasis]
	if len(basis) == 0 {
		return AggregateValue{}, false
	}
	mean, err := stats.Mean(basis)
	if err != nil {
		return AggregateValue{}, false
	}
	return AggregateValue{
		Value:      round2(spec.FallbackFactor * mean),
		Provenance: ProvenanceEstimated,
		Basis:      spec.FallbackBasis,
	}, true
}

func applyStatistic(statistic Statistic, values []float64) (float64, error) {
	switch statistic {
	case StatAvg:
		return stats.Mean(values)
	case StatSum:
		return stats.Sum(values)
	case StatMin:
		return stats.Min(values)
	case StatMax:
		return stats.Max(values)
	case StatCount:
		return float64(len(values)), nil
	case StatP10:
		return stats.Percentile(values, 10)
	case StatP90:
		return stats.Percentile(values, 90)
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStatistic, statistic)
	}
}
