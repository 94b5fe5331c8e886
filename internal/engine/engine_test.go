package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ScanRunner/internal/domain/models"
)

var testCfg = models.ExecutionConfig{
	Range: models.DateRange{
		Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
	},
	Parallel:   true,
	MaxWorkers: 4,
	Timeout:    2 * time.Second,
}

func recordFor(symbol string) interface{} {
	return map[string]interface{}{"ticker": symbol, "score": 1.0}
}

func TestRunParallelCollectsAllUnits(t *testing.T) {
	task := Task{
		ScannerID: "s1",
		Model:     models.ModelParallel,
		Weight:    1,
		Invoke: func(ctx context.Context, symbol string) (interface{}, *models.Failure) {
			return recordFor(symbol), nil
		},
	}
	universe := []string{"A", "B", "C", "D", "E"}
	out := New(nil, nil).Run(context.Background(), task, universe, testCfg)
	if !out.Success {
		t.Fatalf("expected success")
	}
	if out.Succeeded != len(universe) {
		t.Fatalf("expected %d succeeded units, got %d", len(universe), out.Succeeded)
	}
	if len(out.Signals) != len(universe) {
		t.Fatalf("expected %d signals, got %d", len(universe), len(out.Signals))
	}
	seen := map[string]bool{}
	for _, s := range out.Signals {
		seen[s.Ticker] = true
		if s.Date != "2025-01-31" {
			t.Fatalf("date must default to range end, got %q", s.Date)
		}
	}
	for _, sym := range universe {
		if !seen[sym] {
			t.Fatalf("missing signal for %s", sym)
		}
	}
}

func TestRunParallelBoundsWorkers(t *testing.T) {
	var active, peak int64
	var mu sync.Mutex
	task := Task{
		ScannerID: "s1",
		Model:     models.ModelParallel,
		Invoke: func(ctx context.Context, symbol string) (interface{}, *models.Failure) {
			n := atomic.AddInt64(&active, 1)
			mu.Lock()
			if n > peak {
				peak = n
			}
			mu.Unlock()
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt64(&active, -1)
			return recordFor(symbol), nil
		},
	}
	cfg := testCfg
	cfg.MaxWorkers = 2
	universe := []string{"A", "B", "C", "D", "E", "F"}
	New(nil, nil).Run(context.Background(), task, universe, cfg)
	mu.Lock()
	defer mu.Unlock()
	if peak > 2 {
		t.Fatalf("worker bound violated: peak %d", peak)
	}
}

func TestRunTimeoutKeepsCompletedSiblings(t *testing.T) {
	task := Task{
		ScannerID: "s1",
		Model:     models.ModelParallel,
		Invoke: func(ctx context.Context, symbol string) (interface{}, *models.Failure) {
			if symbol == "HANG" {
				// Ignores cancellation entirely; occupies its worker slot
				// past logical timeout.
				time.Sleep(3 * time.Second)
			}
			return recordFor(symbol), nil
		},
	}
	cfg := testCfg
	cfg.Timeout = 300 * time.Millisecond
	cfg.MaxWorkers = 4

	start := time.Now()
	out := New(nil, nil).Run(context.Background(), task, []string{"A", "B", "HANG", "C"}, cfg)
	if elapsed := time.Since(start); elapsed > cfg.Timeout+time.Second {
		t.Fatalf("run blocked past timeout: %v", elapsed)
	}
	if out.Succeeded != 3 {
		t.Fatalf("completed siblings must be kept, got %d", out.Succeeded)
	}
	var timedOut bool
	for _, f := range out.Failures {
		if f.Unit == "HANG" && f.Kind == models.FailExecutionTimeout {
			timedOut = true
		}
	}
	if !timedOut {
		t.Fatalf("hung unit must be marked failed(timeout): %v", out.Failures)
	}
	if !out.Success {
		t.Fatalf("run with some successful units must succeed")
	}
}

func TestRunAllUnitsFailed(t *testing.T) {
	task := Task{
		ScannerID: "s1",
		Model:     models.ModelParallel,
		Invoke: func(ctx context.Context, symbol string) (interface{}, *models.Failure) {
			return nil, models.NewFailure(models.FailExecutionRuntime, "s1", symbol, "boom")
		},
	}
	out := New(nil, nil).Run(context.Background(), task, []string{"A", "B"}, testCfg)
	if out.Success {
		t.Fatalf("zero successful units must mark the run unsuccessful")
	}
	if len(out.Failures) != 2 {
		t.Fatalf("expected 2 recorded failures, got %d", len(out.Failures))
	}
}

func TestRunSingleCallInvokedOnce(t *testing.T) {
	var calls int64
	task := Task{
		ScannerID: "s1",
		Model:     models.ModelBatch,
		Invoke: func(ctx context.Context, symbol string) (interface{}, *models.Failure) {
			atomic.AddInt64(&calls, 1)
			return []map[string]interface{}{
				{"ticker": "A", "score": 1.0},
				{"ticker": "B", "score": 2.0},
			}, nil
		},
	}
	out := New(nil, nil).Run(context.Background(), task, []string{"A", "B", "C"}, testCfg)
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("batch model must call invoke exactly once, got %d", got)
	}
	if len(out.Signals) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(out.Signals))
	}
}

func TestRunSingleCallTimeout(t *testing.T) {
	task := Task{
		ScannerID: "s1",
		Model:     models.ModelBatch,
		Invoke: func(ctx context.Context, symbol string) (interface{}, *models.Failure) {
			time.Sleep(2 * time.Second)
			return nil, nil
		},
	}
	cfg := testCfg
	cfg.Timeout = 100 * time.Millisecond
	out := New(nil, nil).Run(context.Background(), task, nil, cfg)
	if out.Success {
		t.Fatalf("timed-out single call must not succeed")
	}
	if len(out.Failures) != 1 || out.Failures[0].Kind != models.FailExecutionTimeout {
		t.Fatalf("expected one timeout failure, got %v", out.Failures)
	}
}

func TestRunFormatConversionFallsBackToOpaque(t *testing.T) {
	task := Task{
		ScannerID: "s1",
		Model:     models.ModelParallel,
		Invoke: func(ctx context.Context, symbol string) (interface{}, *models.Failure) {
			return 42, nil // unsupported shape
		},
	}
	out := New(nil, nil).Run(context.Background(), task, []string{"A"}, testCfg)
	if len(out.Failures) != 1 || out.Failures[0].Kind != models.FailFormatConversion {
		t.Fatalf("expected format_conversion_failure, got %v", out.Failures)
	}
	if len(out.Signals) != 1 {
		t.Fatalf("raw value must be wrapped, not discarded: %v", out.Signals)
	}
	if out.Signals[0].Data["raw"] != "42" {
		t.Fatalf("opaque record must keep the raw value: %v", out.Signals[0].Data)
	}
}

func TestRunDeduplicatesPerScannerKeys(t *testing.T) {
	task := Task{
		ScannerID: "s1",
		Model:     models.ModelBatch,
		Invoke: func(ctx context.Context, symbol string) (interface{}, *models.Failure) {
			return []map[string]interface{}{
				{"ticker": "A", "n": 1.0},
				{"ticker": "A", "n": 2.0},
			}, nil
		},
	}
	out := New(nil, nil).Run(context.Background(), task, nil, testCfg)
	if len(out.Signals) != 1 {
		t.Fatalf("(ticker,date) must be unique pre-aggregation, got %d", len(out.Signals))
	}
}

func TestRunPartialFailureWithRawKept(t *testing.T) {
	partialErr := errors.New("stream cut short")
	task := Task{
		ScannerID: "s1",
		Model:     models.ModelAsyncFanout,
		Invoke: func(ctx context.Context, symbol string) (interface{}, *models.Failure) {
			raw := []interface{}{map[string]interface{}{"ticker": "A"}}
			return raw, models.NewFailure(models.FailExecutionTimeout, "s1", "market", partialErr.Error())
		},
	}
	out := New(nil, nil).Run(context.Background(), task, nil, testCfg)
	if len(out.Signals) != 1 {
		t.Fatalf("partial output must be normalized, got %d signals", len(out.Signals))
	}
	if out.Success {
		t.Fatalf("the only unit failed; run must be unsuccessful")
	}
}
