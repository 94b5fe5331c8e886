package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"ScanRunner/internal/domain/models"
)

type fakeTicker struct {
	calls int
	err   error
	boom  bool
}

func (f *fakeTicker) ScanTicker(ctx context.Context, symbol string, start, end time.Time) (interface{}, error) {
	f.calls++
	if f.boom {
		panic("scanner exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	return map[string]interface{}{"ticker": symbol, "score": 1.0}, nil
}

type fakeBatch struct{ got []string }

func (f *fakeBatch) ScanAll(ctx context.Context, symbols []string, start, end time.Time) (interface{}, error) {
	f.got = symbols
	return []map[string]interface{}{{"ticker": "A"}}, nil
}

type fakeStream struct {
	items []interface{}
	hang  bool
}

func (f *fakeStream) Run(ctx context.Context) (<-chan interface{}, error) {
	ch := make(chan interface{})
	go func() {
		for _, it := range f.items {
			select {
			case ch <- it:
			case <-ctx.Done():
				return
			}
		}
		if f.hang {
			<-ctx.Done()
			return
		}
		close(ch)
	}()
	return ch, nil
}

var testRange = models.DateRange{
	Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
}

func TestBuildPerTicker(t *testing.T) {
	sc := &fakeTicker{}
	inv, fail := Build("s1", sc, models.Contract{Entry: "ScanTicker", Variant: models.VariantPerTicker}, nil, testRange)
	if fail != nil {
		t.Fatalf("build failed: %v", fail)
	}
	raw, f := inv(context.Background(), "AAPL")
	if f != nil {
		t.Fatalf("invoke failed: %v", f)
	}
	rec := raw.(map[string]interface{})
	if rec["ticker"] != "AAPL" {
		t.Fatalf("symbol not forwarded: %v", rec)
	}
}

func TestBuildBatchIgnoresSymbol(t *testing.T) {
	sc := &fakeBatch{}
	inv, fail := Build("s1", sc, models.Contract{Entry: "ScanAll", Variant: models.VariantBatch}, []string{"A", "B"}, testRange)
	if fail != nil {
		t.Fatalf("build failed: %v", fail)
	}
	if _, f := inv(context.Background(), "ignored"); f != nil {
		t.Fatalf("invoke failed: %v", f)
	}
	if len(sc.got) != 2 {
		t.Fatalf("batch must receive the whole universe, got %v", sc.got)
	}
}

func TestInvokeCapturesPanic(t *testing.T) {
	sc := &fakeTicker{boom: true}
	inv, _ := Build("s1", sc, models.Contract{Variant: models.VariantPerTicker}, nil, testRange)
	raw, f := inv(context.Background(), "AAPL")
	if raw != nil || f == nil {
		t.Fatalf("expected failure, got raw=%v fail=%v", raw, f)
	}
	if f.Kind != models.FailExecutionRuntime {
		t.Fatalf("panic must classify as runtime failure, got %s", f.Kind)
	}
	if f.Unit != "AAPL" {
		t.Fatalf("failure must identify the unit, got %q", f.Unit)
	}
}

func TestInvokeClassifiesTimeout(t *testing.T) {
	sc := &fakeTicker{err: context.DeadlineExceeded}
	inv, _ := Build("s1", sc, models.Contract{Variant: models.VariantPerTicker}, nil, testRange)
	_, f := inv(context.Background(), "AAPL")
	if f == nil || f.Kind != models.FailExecutionTimeout {
		t.Fatalf("expected timeout classification, got %v", f)
	}
}

func TestInvokeClassifiesRuntimeError(t *testing.T) {
	sc := &fakeTicker{err: errors.New("upstream 503")}
	inv, _ := Build("s1", sc, models.Contract{Variant: models.VariantPerTicker}, nil, testRange)
	_, f := inv(context.Background(), "AAPL")
	if f == nil || f.Kind != models.FailExecutionRuntime {
		t.Fatalf("expected runtime failure, got %v", f)
	}
	if f.Detail != "upstream 503" {
		t.Fatalf("diagnostic text lost: %q", f.Detail)
	}
}

func TestStreamBridgeCompletes(t *testing.T) {
	sc := &fakeStream{items: []interface{}{
		map[string]interface{}{"ticker": "A"},
		map[string]interface{}{"ticker": "B"},
	}}
	inv, fail := Build("s1", sc, models.Contract{Variant: models.VariantAsyncMain}, nil, testRange)
	if fail != nil {
		t.Fatalf("build failed: %v", fail)
	}
	raw, f := inv(context.Background(), "")
	if f != nil {
		t.Fatalf("invoke failed: %v", f)
	}
	if items := raw.([]interface{}); len(items) != 2 {
		t.Fatalf("expected 2 streamed items, got %d", len(items))
	}
}

// A cooperative scanner invoked from a caller that is itself running
// inside an engine-style goroutine must still complete within the timeout.
func TestStreamBridgeNoDeadlockFromWorker(t *testing.T) {
	sc := &fakeStream{items: []interface{}{map[string]interface{}{"ticker": "A"}}}
	inv, _ := Build("s1", sc, models.Contract{Variant: models.VariantAsyncMain}, nil, testRange)

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, f := inv(ctx, ""); f != nil {
			t.Errorf("invoke failed: %v", f)
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("stream bridge deadlocked")
	}
}

func TestStreamBridgeTimeoutKeepsPartial(t *testing.T) {
	sc := &fakeStream{items: []interface{}{map[string]interface{}{"ticker": "A"}}, hang: true}
	inv, _ := Build("s1", sc, models.Contract{Variant: models.VariantAsyncMain}, nil, testRange)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	raw, f := inv(ctx, "")
	if f == nil || f.Kind != models.FailExecutionTimeout {
		t.Fatalf("expected timeout failure, got %v", f)
	}
	if raw == nil {
		t.Fatalf("partial stream output must be kept")
	}
	if items := raw.([]interface{}); len(items) != 1 {
		t.Fatalf("expected 1 partial item, got %d", len(items))
	}
}

func TestBuildEntryPointNotFound(t *testing.T) {
	sc := &fakeTicker{}
	_, fail := Build("s1", sc, models.Contract{Variant: models.VariantAsyncMain}, nil, testRange)
	if fail == nil || fail.Kind != models.FailEntryPointNotFound {
		t.Fatalf("expected entry_point_not_found, got %v", fail)
	}
	if !fail.Recoverable() {
		t.Fatalf("entry_point_not_found must be recoverable")
	}
}

func TestBuildWithFallbacks(t *testing.T) {
	// Misclassified as batch; the instance only implements per-ticker.
	sc := &fakeTicker{}
	inv, c, fail := BuildWithFallbacks("s1", sc,
		models.Contract{Variant: models.VariantBatch},
		[]models.ContractVariant{models.VariantSyncMain, models.VariantGeneric},
		nil, testRange)
	if fail != nil {
		t.Fatalf("fallback build failed: %v", fail)
	}
	if c.Variant != models.VariantGeneric {
		t.Fatalf("expected generic fallback to match, got %s", c.Variant)
	}
	if _, f := inv(context.Background(), "AAPL"); f != nil {
		t.Fatalf("fallback invoke failed: %v", f)
	}
}

func TestBuildGenericProbesContracts(t *testing.T) {
	sc := &fakeBatch{}
	inv, fail := Build("s1", sc, models.Contract{Variant: models.VariantGeneric}, []string{"A"}, testRange)
	if fail != nil {
		t.Fatalf("generic probe failed: %v", fail)
	}
	if _, f := inv(context.Background(), ""); f != nil {
		t.Fatalf("invoke failed: %v", f)
	}
}
