package usecase

import (
	"context"
	"encoding/json"
	"time"

	"ScanRunner/internal/domain/models"
	"ScanRunner/internal/domain/repository"
	"ScanRunner/pkg/config"
	pkgkafka "ScanRunner/pkg/kafka"
	"ScanRunner/pkg/logger"
)

// ExecutionRequestsHandler consumes execution requests from Kafka and
// runs them through the pipeline. The message schema matches the HTTP
// ExecuteRequest body.
type ExecutionRequestsHandler struct {
	topic    string
	pipeline *Pipeline
	cfg      *config.Config
	log      *logger.Logger
	metrics  repository.Metrics
}

func NewExecutionRequestsHandler(topic string, pipeline *Pipeline, cfg *config.Config, log *logger.Logger, m repository.Metrics) *ExecutionRequestsHandler {
	return &ExecutionRequestsHandler{topic: topic, pipeline: pipeline, cfg: cfg, log: log, metrics: m}
}

func (h *ExecutionRequestsHandler) Topic() string { return h.topic }

func (h *ExecutionRequestsHandler) Handle(ctx context.Context, b []byte) error {
	start := time.Now()

	var req models.ExecuteRequest
	if err := json.Unmarshal(b, &req); err != nil {
		if h.log != nil {
			h.log.Warn("execution request unmarshal failed", logger.Error(err))
		}
		// poison message, let the consumer's DLQ policy take it
		return err
	}

	execCfg, err := ConfigFromRequest(&req, h.cfg.Scanners, h.cfg.Execution.Symbols, h.cfg.Execution.Lookback)
	if err != nil {
		if h.log != nil {
			h.log.Warn("execution request rejected", logger.Error(err))
		}
		return err
	}
	execCfg.Overrides = MergeOverrides(CatalogParams(h.cfg.Scanners), req.Overrides)

	_, report, err := h.pipeline.Run(ctx, execCfg)
	if h.metrics != nil {
		h.metrics.RecordLatency("kafka_execution_seconds", time.Since(start).Seconds())
	}
	if err != nil {
		return err
	}
	if h.log != nil {
		h.log.Info("queued execution finished",
			logger.Bool("success", report.Success),
			logger.Int("signals", report.Signals.Total),
			logger.Duration("elapsed", report.Elapsed))
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*ExecutionRequestsHandler)(nil)
