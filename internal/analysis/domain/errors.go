package analysis

import "errors"

var (
	// ErrUnknownInterval reports an interval literal outside the closed set.
	ErrUnknownInterval = errors.New("analysis: unknown interval")

	// ErrUnknownStatistic reports an aggregate function outside the closed set.
	ErrUnknownStatistic = errors.New("analysis: unknown statistic")

	// ErrRawInterval reports an attempt to bucket-aggregate at raw resolution.
	ErrRawInterval = errors.New("analysis: raw interval has no bucket width")

	// ErrInvalidRange reports a query range whose end precedes its start.
	ErrInvalidRange = errors.New("analysis: end date precedes start date")

	// ErrNoForecast reports that a location has no forecast rows at all.
	ErrNoForecast = errors.New("analysis: no forecast available")
)
