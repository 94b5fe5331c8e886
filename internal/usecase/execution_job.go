package usecase

import (
	"context"

	"ScanRunner/internal/domain/models"
	"ScanRunner/pkg/config"
	"ScanRunner/pkg/logger"
	"ScanRunner/pkg/queue"
)

// ExecutionMessageType routes async execution requests on the queue.
const ExecutionMessageType = "execution.request"

// ExecutionJob runs queued executions on the redis queue workers. The
// payload schema matches the HTTP ExecuteRequest body.
type ExecutionJob struct {
	pipeline *Pipeline
	cfg      *config.Config
	log      *logger.Logger
}

func NewExecutionJob(pipeline *Pipeline, cfg *config.Config, log *logger.Logger) *ExecutionJob {
	return &ExecutionJob{pipeline: pipeline, cfg: cfg, log: log}
}

func (j *ExecutionJob) Name() string { return "execution_job" }

func (j *ExecutionJob) Type() string { return ExecutionMessageType }

func (j *ExecutionJob) Handle(ctx context.Context, payload interface{}) error {
	req, err := queue.ParsePayload[models.ExecuteRequest](payload)
	if err != nil {
		return err
	}

	execCfg, err := ConfigFromRequest(req, j.cfg.Scanners, j.cfg.Execution.Symbols, j.cfg.Execution.Lookback)
	if err != nil {
		if j.log != nil {
			j.log.Warn("async execution rejected", logger.Error(err))
		}
		return err
	}
	execCfg.Overrides = MergeOverrides(CatalogParams(j.cfg.Scanners), req.Overrides)

	_, report, err := j.pipeline.Run(ctx, execCfg)
	if err != nil {
		return err
	}
	if j.log != nil {
		j.log.Info("async execution finished",
			logger.Bool("success", report.Success),
			logger.Int("signals", report.Signals.Total),
			logger.Duration("elapsed", report.Elapsed))
	}
	return nil
}

var _ queue.Job = (*ExecutionJob)(nil)
