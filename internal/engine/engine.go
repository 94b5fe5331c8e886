package engine

import (
	"context"
	"time"

	"ScanRunner/internal/domain/models"
	"ScanRunner/internal/domain/repository"
	"ScanRunner/internal/normalize"
	"ScanRunner/pkg/logger"
)

// Task is one adapted scanner ready to run: the uniform invoke plus the
// execution model its contract implies. The engine treats the invoke as
// opaque; it only ever observes completion or timeout, never the callee's
// internal suspension points.
type Task struct {
	ScannerID string
	Invoke    func(ctx context.Context, symbol string) (interface{}, *models.Failure)
	Model     models.ExecModel
	Weight    float64
}

// Outcome is the full result set for one scanner over the universe. The
// engine always completes and returns an outcome; per-unit failures are
// collected, never raised.
type Outcome struct {
	ScannerID string
	Signals   []models.ScannerSignal
	Failures  []*models.Failure
	Units     int
	Succeeded int
	// Success is false only when zero units completed successfully.
	Success bool
	Elapsed time.Duration
}

const (
	defaultTimeout    = 2 * time.Minute
	defaultMaxWorkers = 8
	// drainGrace is how long the engine waits after the deadline for a
	// cooperative unit to hand over partial output.
	drainGrace = 200 * time.Millisecond
)

// Engine runs adapted scanner callables across the ticker universe under
// bounded concurrency and a whole-run timeout. The timeout bounds the
// engine's wait only: a hung unit may keep occupying a worker slot past
// logical timeout; it is marked failed and its slot is abandoned.
type Engine struct {
	log     *logger.Logger
	metrics repository.Metrics
}

func New(log *logger.Logger, metrics repository.Metrics) *Engine {
	return &Engine{log: log, metrics: metrics}
}

type unitResult struct {
	unit string
	raw  interface{}
	fail *models.Failure
}

// Run executes one task over the universe using its model and returns the
// complete outcome set. Already-completed results are always kept, even
// when the run times out.
func (e *Engine) Run(ctx context.Context, t Task, universe []string, cfg models.ExecutionConfig) *Outcome {
	started := time.Now()
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var out *Outcome
	if t.Model == models.ModelParallel {
		out = e.runParallel(rctx, t, universe, cfg)
	} else {
		out = e.runSingleCall(rctx, t, cfg)
	}

	out.Elapsed = time.Since(started)
	out.Signals = normalize.Dedupe(out.Signals)
	out.Success = out.Succeeded > 0
	if e.metrics != nil {
		e.metrics.RecordSignals(t.ScannerID, len(out.Signals))
		e.metrics.RecordLatency("scanner_run", out.Elapsed.Seconds())
	}
	if e.log != nil {
		e.log.Info("scanner run complete",
			logger.String("scanner", t.ScannerID),
			logger.String("model", string(t.Model)),
			logger.Int("units", out.Units),
			logger.Int("succeeded", out.Succeeded),
			logger.Int("signals", len(out.Signals)),
			logger.Int("failures", len(out.Failures)))
	}
	return out
}

// runParallel fans the universe out over a bounded worker pool, one invoke
// call per ticker, collecting results as they complete with no ordering
// guarantee.
func (e *Engine) runParallel(ctx context.Context, t Task, universe []string, cfg models.ExecutionConfig) *Outcome {
	out := &Outcome{ScannerID: t.ScannerID, Units: len(universe)}
	if len(universe) == 0 {
		return out
	}

	workers := cfg.MaxWorkers
	if workers <= 0 {
		workers = defaultMaxWorkers
	}
	if !cfg.Parallel {
		workers = 1
	}
	if workers > len(universe) {
		workers = len(universe)
	}

	jobs := make(chan string)
	// Buffered to the universe size so abandoned workers finishing after
	// timeout never block on delivery.
	results := make(chan unitResult, len(universe))

	for w := 0; w < workers; w++ {
		go func() {
			for symbol := range jobs {
				raw, fail := t.Invoke(ctx, symbol)
				results <- unitResult{unit: symbol, raw: raw, fail: fail}
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, symbol := range universe {
			select {
			case jobs <- symbol:
			case <-ctx.Done():
				return
			}
		}
	}()

	done := make(map[string]bool, len(universe))
	for n := 0; n < len(universe); n++ {
		select {
		case r := <-results:
			done[r.unit] = true
			e.absorb(out, t, r, cfg)
		case <-ctx.Done():
			for _, symbol := range universe {
				if !done[symbol] {
					e.absorb(out, t, unitResult{
						unit: symbol,
						fail: models.NewFailure(models.FailExecutionTimeout, t.ScannerID, symbol, ctx.Err().Error()),
					}, cfg)
				}
			}
			return out
		}
	}
	return out
}

// runSingleCall runs batch, optimal and async-fanout models: exactly one
// invoke covering the whole universe internally.
func (e *Engine) runSingleCall(ctx context.Context, t Task, cfg models.ExecutionConfig) *Outcome {
	out := &Outcome{ScannerID: t.ScannerID, Units: 1}
	unit := "batch"
	if t.Model == models.ModelAsyncFanout {
		unit = "market"
	}

	resCh := make(chan unitResult, 1)
	go func() {
		raw, fail := t.Invoke(ctx, "")
		resCh <- unitResult{unit: unit, raw: raw, fail: fail}
	}()

	select {
	case r := <-resCh:
		e.absorb(out, t, r, cfg)
	case <-ctx.Done():
		// Grace window: a cooperative callee may still hand over the
		// partial output it drained before the deadline.
		select {
		case r := <-resCh:
			e.absorb(out, t, r, cfg)
		case <-time.After(drainGrace):
			e.absorb(out, t, unitResult{
				unit: unit,
				fail: models.NewFailure(models.FailExecutionTimeout, t.ScannerID, unit, ctx.Err().Error()),
			}, cfg)
		}
	}
	return out
}

// absorb folds one unit result into the outcome: classify and record the
// failure if any, normalize whatever raw output exists, and fall back to
// an opaque record when the shape cannot be converted.
func (e *Engine) absorb(out *Outcome, t Task, r unitResult, cfg models.ExecutionConfig) {
	if r.fail != nil {
		out.Failures = append(out.Failures, r.fail)
		if e.metrics != nil {
			e.metrics.RecordUnitOutcome(t.ScannerID, string(r.fail.Kind))
		}
	} else {
		out.Succeeded++
		if e.metrics != nil {
			e.metrics.RecordUnitOutcome(t.ScannerID, "ok")
		}
	}
	if r.raw == nil {
		return
	}

	nctx := normalize.Context{
		ScannerID: t.ScannerID,
		Date:      cfg.Range.End.Format(models.DateLayout),
		Weight:    t.Weight,
	}
	if t.Model == models.ModelParallel {
		nctx.Symbol = r.unit
	}

	sigs, err := normalize.Normalize(r.raw, nctx)
	if err != nil {
		out.Failures = append(out.Failures, models.NewFailure(models.FailFormatConversion, t.ScannerID, r.unit, err.Error()))
		octx := nctx
		if octx.Symbol == "" {
			octx.Symbol = r.unit
		}
		sigs = []models.ScannerSignal{normalize.Opaque(r.raw, octx)}
		if e.metrics != nil {
			e.metrics.RecordUnitOutcome(t.ScannerID, string(models.FailFormatConversion))
		}
	}
	for _, s := range sigs {
		if s.Ticker == "" {
			continue
		}
		out.Signals = append(out.Signals, s)
	}
}
