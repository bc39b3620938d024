package usecase

import (
	"context"
	"fmt"

	xlogger "PredPull/pkg/logger"
	"PredPull/pkg/queue"
)

// LogSummaryTopic is the queue topic the log collector publishes to.
const LogSummaryTopic = "logs.aggregated"

// LogSummaryJob consumes aggregated error batches from the collector and
// re-emits one summary line per distinct error with its repeat count.
// Summaries go out at warn level so they do not feed the collector again.
type LogSummaryJob struct {
	logger *xlogger.Logger
}

func NewLogSummaryJob(logger *xlogger.Logger) *LogSummaryJob {
	return &LogSummaryJob{logger: logger}
}

func (j *LogSummaryJob) Name() string { return "log_summary" }

func (j *LogSummaryJob) Type() string { return LogSummaryTopic }

func (j *LogSummaryJob) Handle(_ context.Context, payload interface{}) error {
	entries, err := queue.ParsePayload[[]xlogger.AggregatedLogEntry](payload)
	if err != nil {
		return fmt.Errorf("parse log summary: %w", err)
	}
	for _, e := range *entries {
		j.logger.Warn("error summary",
			xlogger.String("message", e.Message),
			xlogger.String("caller", e.Caller),
			xlogger.Int("count", e.Count),
			xlogger.String("firstSeen", e.FirstSeen.UTC().Format("2006-01-02T15:04:05Z07:00")),
			xlogger.String("lastSeen", e.LastSeen.UTC().Format("2006-01-02T15:04:05Z07:00")),
		)
	}
	return nil
}
