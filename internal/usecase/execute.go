package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ScanRunner/internal/aggregate"
	"ScanRunner/internal/domain/models"
	"ScanRunner/internal/domain/repository"
	"ScanRunner/internal/engine"
	"ScanRunner/internal/loader"
	"ScanRunner/pkg/logger"
)

// ErrNoScannersLoaded is one of the two fatal execution conditions; the
// other is an unknown aggregation method. Everything else is reported,
// not raised.
var ErrNoScannersLoaded = errors.New("no scanners could be loaded")

// ExecuteUseCase is the public execution boundary: load isolated scanner
// instances, run each over the universe, and merge their signal streams
// into one attributed result set plus a diagnostic report.
type ExecuteUseCase struct {
	loader  *loader.Loader
	engine  *engine.Engine
	log     *logger.Logger
	metrics repository.Metrics
}

func NewExecuteUseCase(l *loader.Loader, e *engine.Engine, log *logger.Logger, m repository.Metrics) *ExecuteUseCase {
	return &ExecuteUseCase{loader: l, engine: e, log: log, metrics: m}
}

// Execute runs one project execution. It always returns a report, even on
// overall failure; callers must read the report's per-scanner error list
// rather than relying on the error return for partial failures.
func (uc *ExecuteUseCase) Execute(ctx context.Context, cfg models.ExecutionConfig) (*models.AggregatedSignals, *models.ExecutionReport, error) {
	started := time.Now()
	applyDefaults(&cfg)

	report := &models.ExecutionReport{
		Scanners: models.ScannerStats{Errors: map[string]string{}},
		Signals:  models.SignalStats{PerScannerContributed: map[string]int{}},
	}
	for _, ref := range cfg.References {
		if ref.Enabled {
			report.Scanners.TotalEnabled++
		}
	}

	instances, loadFailures := uc.loader.LoadAll(cfg.References, cfg.Overrides, cfg.Symbols, cfg.Range)
	defer uc.loader.CleanupAll(instances)

	for id, f := range loadFailures {
		report.Scanners.Failed++
		report.Scanners.FailedIDs = append(report.Scanners.FailedIDs, id)
		report.Scanners.Errors[id] = f.Error()
	}
	if len(instances) == 0 {
		report.Elapsed = time.Since(started)
		if uc.metrics != nil {
			uc.metrics.RecordExecution(cfg.Method, false)
		}
		return nil, report, fmt.Errorf("%w: %d references, %d load failures",
			ErrNoScannersLoaded, len(cfg.References), len(loadFailures))
	}

	// Scanners run one after another in reference order so that the
	// aggregator's contributing order is reproducible; units within one
	// scanner run concurrently per its model.
	inputs := make([]aggregate.Input, 0, len(instances))
	for _, inst := range instances {
		outcome := uc.engine.Run(ctx, engine.Task{
			ScannerID: inst.Ref.ID,
			Invoke:    inst.Invoke,
			Model:     inst.Model,
			Weight:    weightOf(inst.Ref),
		}, cfg.Symbols, cfg)

		if outcome.Success {
			report.Scanners.Succeeded++
		} else {
			report.Scanners.Failed++
			report.Scanners.FailedIDs = append(report.Scanners.FailedIDs, inst.Ref.ID)
		}
		if len(outcome.Failures) > 0 {
			report.Scanners.Errors[inst.Ref.ID] = outcome.Failures[0].Error()
		}
		report.Signals.PerScannerContributed[inst.Ref.ID] = len(outcome.Signals)

		inputs = append(inputs, aggregate.Input{
			ScannerID: inst.Ref.ID,
			Weight:    weightOf(inst.Ref),
			Signals:   outcome.Signals,
		})
	}

	merged, err := aggregate.Aggregate(inputs, aggregate.Options{
		Method:      cfg.Method,
		Weights:     cfg.Weights,
		MinScanners: cfg.MinScanners,
		Custom:      cfg.Custom,
	})
	if err != nil {
		report.Elapsed = time.Since(started)
		if uc.metrics != nil {
			uc.metrics.RecordExecution(cfg.Method, false)
		}
		return nil, report, err
	}

	fillSignalStats(&report.Signals, merged)
	report.Success = report.Scanners.Succeeded > 0
	report.Elapsed = time.Since(started)
	if uc.metrics != nil {
		uc.metrics.RecordExecution(cfg.Method, report.Success)
	}
	if uc.log != nil {
		uc.log.Info("execution complete",
			logger.Bool("success", report.Success),
			logger.String("method", cfg.Method),
			logger.Int("scanners_succeeded", report.Scanners.Succeeded),
			logger.Int("scanners_failed", report.Scanners.Failed),
			logger.Int("signals", len(merged)),
			logger.Duration("elapsed", report.Elapsed))
	}

	result := &models.AggregatedSignals{
		Signals: merged,
		Summary: models.ExecutionSummary{
			Method:         cfg.Method,
			Total:          report.Signals.Total,
			UniqueTickers:  report.Signals.UniqueTickers,
			DateStart:      report.Signals.DateStart,
			DateEnd:        report.Signals.DateEnd,
			PerScanner:     report.Signals.PerScannerContributed,
			MeanConfidence: report.Signals.MeanConfidence,
			Elapsed:        report.Elapsed,
		},
	}
	return result, report, nil
}

func applyDefaults(cfg *models.ExecutionConfig) {
	if cfg.Method == "" {
		cfg.Method = aggregate.MethodUnion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 8
	}
}

func weightOf(ref models.ScannerReference) float64 {
	if ref.Weight <= 0 {
		return 1
	}
	return ref.Weight
}

func fillSignalStats(stats *models.SignalStats, merged []models.AggregatedSignal) {
	stats.Total = len(merged)
	tickers := map[string]struct{}{}
	var confSum float64
	for _, s := range merged {
		tickers[s.Ticker] = struct{}{}
		confSum += s.Confidence
		if stats.DateStart == "" || s.Date < stats.DateStart {
			stats.DateStart = s.Date
		}
		if s.Date > stats.DateEnd {
			stats.DateEnd = s.Date
		}
	}
	stats.UniqueTickers = len(tickers)
	if len(merged) > 0 {
		stats.MeanConfidence = confSum / float64(len(merged))
	}
}
