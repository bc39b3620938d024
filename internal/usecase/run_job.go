package usecase

import (
	"context"
	"fmt"

	"PredPull/internal/domain/models"
	xlogger "PredPull/pkg/logger"
	"PredPull/pkg/queue"
)

// PipelineRunJob starts queued pipeline runs. A run rejected because one
// is already active for the protocol returns the error, so the queue
// retries it with backoff instead of dropping the request.
type PipelineRunJob struct {
	pipe   *Pipeline
	logger *xlogger.Logger
}

func NewPipelineRunJob(pipe *Pipeline, logger *xlogger.Logger) *PipelineRunJob {
	return &PipelineRunJob{pipe: pipe, logger: logger}
}

func (j *PipelineRunJob) Name() string { return "pipeline_run" }

func (j *PipelineRunJob) Type() string { return "pipeline.run" }

func (j *PipelineRunJob) Handle(ctx context.Context, payload interface{}) error {
	req, err := queue.ParsePayload[models.StartPipelineRequest](payload)
	if err != nil {
		return fmt.Errorf("parse run request: %w", err)
	}
	runID, err := j.pipe.Start(req.Protocol, req.Config())
	if err != nil {
		return err
	}
	j.logger.Info("queued pipeline run started",
		xlogger.String("protocol", req.Protocol),
		xlogger.String("runId", runID))
	return nil
}
