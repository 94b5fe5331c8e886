package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ScanRunner/internal/domain/models"
	"ScanRunner/internal/domain/service"
	"ScanRunner/internal/engine"
	"ScanRunner/internal/loader"
)

const tickerSrc = `package s
import ("context"; "time")
func (x *X) ScanTicker(ctx context.Context, symbol string, start, end time.Time) (interface{}, error) { return nil, nil }
`

type goodScanner struct{}

func (goodScanner) ScanTicker(ctx context.Context, symbol string, start, end time.Time) (interface{}, error) {
	return map[string]interface{}{"ticker": symbol, "score": 5.0}, nil
}

type flakyScanner struct{}

func (flakyScanner) ScanTicker(ctx context.Context, symbol string, start, end time.Time) (interface{}, error) {
	return nil, errors.New("data source down")
}

type testRegistry struct {
	sources map[string]string
	makers  map[string]service.Factory
}

func (r *testRegistry) Resolve(id string) (service.Factory, error) {
	f, ok := r.makers[id]
	if !ok {
		return nil, fmt.Errorf("unknown scanner %q", id)
	}
	return f, nil
}

func (r *testRegistry) Source(id string) (string, error) {
	s, ok := r.sources[id]
	if !ok {
		return "", fmt.Errorf("no source for %q", id)
	}
	return s, nil
}

func (r *testRegistry) IDs() []string { return nil }

func newUseCase() *ExecuteUseCase {
	reg := &testRegistry{
		sources: map[string]string{
			"good":   tickerSrc,
			"flaky":  tickerSrc,
			"badsrc": "!!! not parseable",
		},
		makers: map[string]service.Factory{
			"good":   func(map[string]interface{}) (interface{}, error) { return goodScanner{}, nil },
			"flaky":  func(map[string]interface{}) (interface{}, error) { return flakyScanner{}, nil },
			"badsrc": func(map[string]interface{}) (interface{}, error) { return goodScanner{}, nil },
		},
	}
	return NewExecuteUseCase(loader.New(reg, nil), engine.New(nil, nil), nil, nil)
}

func baseConfig(ids ...string) models.ExecutionConfig {
	refs := make([]models.ScannerReference, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, models.ScannerReference{ID: id, Weight: 1, Enabled: true})
	}
	return models.ExecutionConfig{
		References: refs,
		Range: models.DateRange{
			Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
		},
		Symbols:  []string{"AAPL", "MSFT"},
		Parallel: true,
		Timeout:  5 * time.Second,
	}
}

func TestExecuteHappyPath(t *testing.T) {
	uc := newUseCase()
	res, report, err := uc.Execute(context.Background(), baseConfig("good"))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !report.Success {
		t.Fatalf("expected success, errors: %v", report.Scanners.Errors)
	}
	if len(res.Signals) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(res.Signals))
	}
	if report.Signals.UniqueTickers != 2 {
		t.Fatalf("unique tickers wrong: %d", report.Signals.UniqueTickers)
	}
	if report.Signals.MeanConfidence != 1.0 {
		t.Fatalf("mean confidence wrong: %v", report.Signals.MeanConfidence)
	}
}

// A scanner failing for every ticker still lets the run complete; overall
// success holds as long as another scanner produced signals.
func TestExecutePartialScannerFailure(t *testing.T) {
	uc := newUseCase()
	res, report, err := uc.Execute(context.Background(), baseConfig("good", "flaky"))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !report.Success {
		t.Fatalf("run must succeed when one scanner produced signals")
	}
	if report.Scanners.Succeeded != 1 || report.Scanners.Failed != 1 {
		t.Fatalf("scanner stats wrong: %+v", report.Scanners)
	}
	if len(report.Scanners.FailedIDs) != 1 || report.Scanners.FailedIDs[0] != "flaky" {
		t.Fatalf("flaky must be listed failed: %v", report.Scanners.FailedIDs)
	}
	if report.Scanners.Errors["flaky"] == "" {
		t.Fatalf("diagnostic text must be retained for flaky")
	}
	if len(res.Signals) != 2 {
		t.Fatalf("good scanner's signals must survive, got %d", len(res.Signals))
	}
}

// An unparsable source fails that one reference only; the rest of the
// batch loads and runs.
func TestExecuteBadSourceIsolated(t *testing.T) {
	uc := newUseCase()
	_, report, err := uc.Execute(context.Background(), baseConfig("badsrc", "good"))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !report.Success {
		t.Fatalf("good scanner must carry the run")
	}
	if report.Scanners.Errors["badsrc"] == "" {
		t.Fatalf("badsrc load failure must be reported")
	}
}

func TestExecuteNoLoadableScanners(t *testing.T) {
	uc := newUseCase()
	_, report, err := uc.Execute(context.Background(), baseConfig("badsrc"))
	if err == nil {
		t.Fatalf("zero loadable scanners must be fatal")
	}
	if !errors.Is(err, ErrNoScannersLoaded) {
		t.Fatalf("unexpected error: %v", err)
	}
	if report == nil || report.Success {
		t.Fatalf("report must still be returned with success=false")
	}
}

func TestExecuteUnknownMethod(t *testing.T) {
	uc := newUseCase()
	cfg := baseConfig("good")
	cfg.Method = "median"
	_, report, err := uc.Execute(context.Background(), cfg)
	if err == nil {
		t.Fatalf("unknown aggregation method must be fatal")
	}
	if report == nil {
		t.Fatalf("report must still be returned")
	}
}

func TestExecuteDisabledReferencesNotCounted(t *testing.T) {
	uc := newUseCase()
	cfg := baseConfig("good")
	cfg.References = append(cfg.References, models.ScannerReference{ID: "flaky", Enabled: false})
	_, report, err := uc.Execute(context.Background(), cfg)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if report.Scanners.TotalEnabled != 1 {
		t.Fatalf("disabled reference must not count as enabled: %d", report.Scanners.TotalEnabled)
	}
}
