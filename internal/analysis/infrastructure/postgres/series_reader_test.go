package postgres

import "testing"

func TestNewSeriesReaderOptions(t *testing.T) {
	reader := NewSeriesReader(nil)
	if reader.bucketLimit != defaultBucketLimit {
		t.Fatalf("bucket limit = %d, want default %d", reader.bucketLimit, defaultBucketLimit)
	}

	reader = NewSeriesReader(nil,
		WithBucketLimit(500),
		WithProductionTable("production_v2"),
	)
	if reader.bucketLimit != 500 {
		t.Fatalf("bucket limit = %d, want 500", reader.bucketLimit)
	}
	if reader.productionTable != "production_v2" {
		t.Fatalf("production table = %s", reader.productionTable)
	}

	// Non-positive limits keep the default cap.
	reader = NewSeriesReader(nil, WithBucketLimit(0))
	if reader.bucketLimit != defaultBucketLimit {
		t.Fatalf("bucket limit = %d, want default %d", reader.bucketLimit, defaultBucketLimit)
	}
}
