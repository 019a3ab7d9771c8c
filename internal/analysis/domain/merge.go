package analysis

import "time"

// MergedPoint joins one primary-series bucket with companion buckets sharing
// the identical timestamp. Companions that have no exact key match contribute
// nothing; there is no interpolation or nearest-neighbor matching.
type MergedPoint struct {
	Timestamp time.Time         `json:"timestamp"`
	Primary   Bucket            `json:"primary"`
	Series    map[string]Bucket `json:"series,omitempty"`
}

// Merge produces one MergedPoint per primary bucket, attaching each companion
// series' bucket only when its start matches the primary key exactly.
//
// Series aggregated at different intervals will therefore mostly fail to
// match and leave the companion empty; callers must aggregate all series at
// the same interval before merging.
func Merge(primary []Bucket, companions map[string][]Bucket) []MergedPoint {
	lookups := make(map[string]map[string]Bucket, len(companions))
	for name, series := range companions {
		lookup := make(map[string]Bucket, len(series))
		for _, bucket := range series {
			lookup[mergeKey(bucket.BucketStart)] = bucket
		}
		lookups[name] = lookup
	}

	points := make([]MergedPoint, 0, len(primary))
	for _, bucket := range primary {
		point := MergedPoint{Timestamp: bucket.BucketStart, Primary: bucket}
		key := mergeKey(bucket.BucketStart)
		for name, lookup := range lookups {
			match, ok := lookup[key]
			if !ok {
				continue
			}
			if point.Series == nil {
				point.Series = make(map[string]Bucket, len(lookups))
			}
			point.Series[name] = match
		}
		points = append(points, point)
	}
	return points
}

// mergeKey is the exact-match join key: the bucket start rendered as an
// instant string.
func mergeKey(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339Nano)
}
