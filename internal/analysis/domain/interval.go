package analysis

import (
	"fmt"
	"time"
)

// Interval is the aggregation resolution of an analysis query.
type Interval string

const (
	// IntervalRaw returns samples as stored, without bucketing.
	IntervalRaw     Interval = "raw"
	Interval15Min   Interval = "15min"
	IntervalHourly  Interval = "hourly"
	IntervalSixHour Interval = "6hour"
	IntervalDaily   Interval = "daily"
	IntervalWeekly  Interval = "weekly"
)

// IsValid checks if the interval is one of the supported values.
func (i Interval) IsValid() bool {
	switch i {
	case IntervalRaw, Interval15Min, IntervalHourly, IntervalSixHour, IntervalDaily, IntervalWeekly:
		return true
	default:
		return false
	}
}

// Duration returns the bucket width. Raw has no bucket and returns zero.
func (i Interval) Duration() time.Duration {
	switch i {
	case Interval15Min:
		return 15 * time.Minute
	case IntervalHourly:
		return time.Hour
	case IntervalSixHour:
		return 6 * time.Hour
	case IntervalDaily:
		return 24 * time.Hour
	case IntervalWeekly:
		return 7 * 24 * time.Hour
	default:
		return 0
	}
}

// BucketLiteral returns the interval literal accepted by the store's
// time-bucketed aggregation query. Raw has no literal.
func (i Interval) BucketLiteral() string {
	switch i {
	case Interval15Min:
		return "15 minutes"
	case IntervalHourly:
		return "1 hour"
	case IntervalSixHour:
		return "6 hours"
	case IntervalDaily:
		return "1 day"
	case IntervalWeekly:
		return "1 week"
	default:
		return ""
	}
}

// ParseInterval parses an interval literal. Unrecognized literals are a hard
// error, never a silent default.
func ParseInterval(value string) (Interval, error) {
	interval := Interval(value)
	if !interval.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownInterval, value)
	}
	return interval, nil
}

// SelectInterval maps a query time span to an aggregation resolution so that
// large ranges stay bounded in bucket count while short ranges keep full
// resolution. A missing bound defaults to hourly.
func SelectInterval(start, end time.Time) Interval {
	if start.IsZero() || end.IsZero() {
		return IntervalHourly
	}
	days := end.Sub(start).Hours() / 24
	switch {
	case days <= 2:
		return IntervalRaw
	case days <= 7:
		return Interval15Min
	case days <= 30:
		return IntervalHourly
	case days <= 90:
		return IntervalSixHour
	case days <= 365:
		return IntervalDaily
	default:
		return IntervalWeekly
	}
}
