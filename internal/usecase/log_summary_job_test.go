package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	xlogger "PredPull/pkg/logger"
)

func TestLogSummaryJobHandlesCollectorBatch(t *testing.T) {
	job := NewLogSummaryJob(testLogger(t))

	batch := []xlogger.AggregatedLogEntry{
		{
			Level:     "error",
			Message:   "storage write failed",
			Caller:    "usecase/pipeline.go:120",
			Count:     7,
			FirstSeen: time.Unix(1700000000, 0).UTC(),
			LastSeen:  time.Unix(1700000060, 0).UTC(),
		},
	}

	// direct in-process delivery
	if err := job.Handle(context.Background(), batch); err != nil {
		t.Fatalf("direct payload: %v", err)
	}

	// delivery after a redis round-trip arrives as decoded JSON
	raw, err := json.Marshal(batch)
	if err != nil {
		t.Fatal(err)
	}
	var decoded []interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if err := job.Handle(context.Background(), decoded); err != nil {
		t.Fatalf("decoded payload: %v", err)
	}

	if err := job.Handle(context.Background(), "garbage"); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestLogSummaryJobTypeMatchesCollectorTopic(t *testing.T) {
	job := NewLogSummaryJob(testLogger(t))
	if job.Type() != LogSummaryTopic {
		t.Fatalf("job type %q does not match collector topic %q", job.Type(), LogSummaryTopic)
	}
}
