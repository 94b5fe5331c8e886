package usecase

import (
	"context"

	"ScanRunner/internal/domain/models"
	"ScanRunner/internal/domain/repository"
	"ScanRunner/pkg/logger"
)

// Pipeline wraps the execute use case with post-run delivery: aggregated
// signals go to the message bus and the signal store after the run.
// Delivery is best-effort; a sink failure never fails the execution.
type Pipeline struct {
	exec      *ExecuteUseCase
	publisher repository.SignalPublisher
	store     repository.SignalStore
	log       *logger.Logger
}

func NewPipeline(exec *ExecuteUseCase, publisher repository.SignalPublisher, store repository.SignalStore, log *logger.Logger) *Pipeline {
	return &Pipeline{exec: exec, publisher: publisher, store: store, log: log}
}

func (p *Pipeline) Run(ctx context.Context, cfg models.ExecutionConfig) (*models.AggregatedSignals, *models.ExecutionReport, error) {
	result, report, err := p.exec.Execute(ctx, cfg)
	if err != nil {
		return result, report, err
	}

	if p.publisher != nil && len(result.Signals) > 0 {
		if perr := p.publisher.PublishBatch(ctx, result.Signals); perr != nil && p.log != nil {
			p.log.Error("signal publish failed", logger.Error(perr))
		}
	}
	if p.store != nil {
		if serr := p.store.StoreSignals(ctx, result.Signals); serr != nil && p.log != nil {
			p.log.Error("signal store failed", logger.Error(serr))
		}
		if serr := p.store.StoreReport(ctx, report); serr != nil && p.log != nil {
			p.log.Error("report store failed", logger.Error(serr))
		}
	}
	return result, report, nil
}
