package ingestion

import "errors"

var (
	// ErrMalformedInput reports a payload missing the minimum structure of
	// metadata block, header row, and at least one data row.
	ErrMalformedInput = errors.New("ingestion: malformed input")

	// ErrMissingColumns reports required columns absent from the header.
	ErrMissingColumns = errors.New("ingestion: missing required columns")

	// ErrBatchWrite reports a bulk write that failed mid-pipeline. Batches
	// written before the failure stay committed.
	ErrBatchWrite = errors.New("ingestion: batch write failed")

	// ErrInvalidPolicy reports a conflict policy outside the closed set.
	ErrInvalidPolicy = errors.New("ingestion: invalid conflict policy")
)
