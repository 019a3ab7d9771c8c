package analysis

import (
	"errors"
	"testing"
	"time"
)

func TestSelectIntervalBands(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		days int
		want Interval
	}{
		{"one day", 1, IntervalRaw},
		{"exactly two days", 2, IntervalRaw},
		{"three days", 3, Interval15Min},
		{"exactly seven days", 7, Interval15Min},
		{"ten days", 10, IntervalHourly},
		{"exactly thirty days", 30, IntervalHourly},
		{"sixty days", 60, IntervalSixHour},
		{"exactly ninety days", 90, IntervalSixHour},
		{"half year", 180, IntervalDaily},
		{"exactly a year", 365, IntervalDaily},
		{"two years", 730, IntervalWeekly},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			end := start.AddDate(0, 0, tc.days)
			got := SelectInterval(start, end)
			if got != tc.want {
				t.Fatalf("SelectInterval(%d days) = %q, want %q", tc.days, got, tc.want)
			}
		})
	}
}

func TestSelectIntervalUndefinedRange(t *testing.T) {
	if got := SelectInterval(time.Time{}, time.Time{}); got != IntervalHourly {
		t.Fatalf("undefined range = %q, want hourly", got)
	}
	if got := SelectInterval(time.Now(), time.Time{}); got != IntervalHourly {
		t.Fatalf("missing end = %q, want hourly", got)
	}
}

func TestParseIntervalRejectsUnknownLiteral(t *testing.T) {
	if _, err := ParseInterval("fortnightly"); !errors.Is(err, ErrUnknownInterval) {
		t.Fatalf("ParseInterval error = %v, want ErrUnknownInterval", err)
	}

	interval, err := ParseInterval("6hour")
	if err != nil {
		t.Fatalf("ParseInterval(6hour): %v", err)
	}
	if interval != IntervalSixHour {
		t.Fatalf("ParseInterval(6hour) = %q", interval)
	}
}

func TestIntervalBucketLiteral(t *testing.T) {
	cases := map[Interval]string{
		Interval15Min:   "15 minutes",
		IntervalHourly:  "1 hour",
		IntervalSixHour: "6 hours",
		IntervalDaily:   "1 day",
		IntervalWeekly:  "1 week",
		IntervalRaw:     "",
	}
	for interval, want := range cases {
		if got := interval.BucketLiteral(); got != want {
			t.Fatalf("BucketLiteral(%q) = %q, want %q", interval, got, want)
		}
	}
}
