package contract

import (
	"testing"

	"ScanRunner/internal/domain/models"
)

func detect(t *testing.T, src string) models.Contract {
	t.Helper()
	c, f := New().Detect("test", src)
	if f != nil {
		t.Fatalf("unexpected failure: %v", f)
	}
	return c
}

func TestDetectAsyncMain(t *testing.T) {
	src := `package s
import "context"
func Run(ctx context.Context) (<-chan interface{}, error) { return nil, nil }
`
	c := detect(t, src)
	if c.Variant != models.VariantAsyncMain {
		t.Fatalf("expected async_main, got %s", c.Variant)
	}
	if c.Suspension != models.SuspensionCooperative {
		t.Fatalf("expected cooperative suspension, got %s", c.Suspension)
	}
	if c.Model() != models.ModelAsyncFanout {
		t.Fatalf("async_main must imply async_fanout, got %s", c.Model())
	}
}

func TestDetectPerTicker(t *testing.T) {
	src := `package s
import ("context"; "time")
func helper() {}
func (x *X) ScanTicker(ctx context.Context, symbol string, start, end time.Time) (interface{}, error) { return nil, nil }
type X struct{}
`
	c := detect(t, src)
	if c.Variant != models.VariantPerTicker || c.Entry != "ScanTicker" {
		t.Fatalf("expected per_ticker ScanTicker, got %s %s", c.Variant, c.Entry)
	}
	if c.Model() != models.ModelParallel {
		t.Fatalf("per_ticker must imply parallel, got %s", c.Model())
	}
}

func TestDetectBatch(t *testing.T) {
	src := `package s
import ("context"; "time")
func ScanAll(ctx context.Context, symbols []string, start, end time.Time) (interface{}, error) { return nil, nil }
`
	c := detect(t, src)
	if c.Variant != models.VariantBatch {
		t.Fatalf("expected batch, got %s", c.Variant)
	}
	if !c.SingleCall() {
		t.Fatalf("batch must be single-call")
	}
}

func TestDetectSyncMain(t *testing.T) {
	src := `package s
func Main() {}
`
	c := detect(t, src)
	if c.Variant != models.VariantSyncMain {
		t.Fatalf("expected sync_main, got %s", c.Variant)
	}
	if c.Suspension != models.SuspensionNone {
		t.Fatalf("expected no suspension, got %s", c.Suspension)
	}
}

func TestDetectGenericFallback(t *testing.T) {
	src := `package s
func zeroArg() {}
func Evaluate(window int) float64 { return 0 }
`
	c := detect(t, src)
	if c.Variant != models.VariantGeneric || c.Entry != "Evaluate" {
		t.Fatalf("expected generic Evaluate, got %s %s", c.Variant, c.Entry)
	}
}

func TestDetectPriorityOrder(t *testing.T) {
	// A per-ticker entry outranks a batch entry even when declared later.
	src := `package s
import ("context"; "time")
func FetchAll(ctx context.Context, symbols []string, start, end time.Time) (interface{}, error) { return nil, nil }
func AnalyzeSymbol(ctx context.Context, symbol string, start, end time.Time) (interface{}, error) { return nil, nil }
`
	c := detect(t, src)
	if c.Variant != models.VariantPerTicker || c.Entry != "AnalyzeSymbol" {
		t.Fatalf("priority broken: got %s %s", c.Variant, c.Entry)
	}
}

func TestDetectTieBreaksFirstEncountered(t *testing.T) {
	src := `package s
import ("context"; "time")
func ScanSymbol(ctx context.Context, symbol string, start, end time.Time) (interface{}, error) { return nil, nil }
func AnalyzeTicker(ctx context.Context, symbol string, start, end time.Time) (interface{}, error) { return nil, nil }
`
	c := detect(t, src)
	if c.Entry != "ScanSymbol" {
		t.Fatalf("tie must break by declaration order, got %s", c.Entry)
	}
}

func TestDetectOptimalPassThrough(t *testing.T) {
	src := `package s
import ("context"; "time")
func ScanMarket(ctx context.Context, start, end time.Time) (interface{}, error) {
	bars, err := client.GroupedDaily(ctx, end)
	if err != nil { return nil, err }
	return bars, nil
}
`
	c := detect(t, src)
	if c.Variant != models.VariantOptimal {
		t.Fatalf("expected optimal, got %s", c.Variant)
	}
}

func TestDetectHardcodedSymbolListNotOptimal(t *testing.T) {
	src := `package s
import ("context"; "time")
func ScanAll(ctx context.Context, syms []string, start, end time.Time) (interface{}, error) {
	symbols := []string{"AAPL", "MSFT"}
	_ = symbols
	bars, err := client.GroupedDaily(ctx, end)
	return bars, err
}
`
	c := detect(t, src)
	if c.Variant != models.VariantBatch {
		t.Fatalf("hardcoded symbol list must block optimal, got %s", c.Variant)
	}
}

func TestDetectSourceInvalid(t *testing.T) {
	_, f := New().Detect("bad", "this is not go source")
	if f == nil {
		t.Fatalf("expected failure")
	}
	if f.Kind != models.FailSourceInvalid {
		t.Fatalf("expected source_invalid, got %s", f.Kind)
	}
	if f.ScannerID != "bad" {
		t.Fatalf("failure must carry scanner identity, got %q", f.ScannerID)
	}
}

func TestFallbacks(t *testing.T) {
	fb := Fallbacks(models.VariantPerTicker)
	if len(fb) == 0 || fb[0] != models.VariantBatch {
		t.Fatalf("unexpected fallback chain: %v", fb)
	}
}
