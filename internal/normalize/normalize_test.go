package normalize

import (
	"reflect"
	"testing"

	"ScanRunner/internal/domain/models"
)

var testCtx = Context{Symbol: "AAPL", Date: "2025-01-02", ScannerID: "s1", Weight: 1}

func TestNormalizeNil(t *testing.T) {
	sigs, err := Normalize(nil, testCtx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sigs) != 0 {
		t.Fatalf("expected empty list, got %d", len(sigs))
	}
}

func TestNormalizeSingleRecord(t *testing.T) {
	sigs, err := Normalize(map[string]interface{}{"Score": 5.0, "ticker": "MSFT"}, testCtx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sigs) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(sigs))
	}
	s := sigs[0]
	if s.Ticker != "MSFT" {
		t.Fatalf("ticker not taken from record: %q", s.Ticker)
	}
	if s.Date != "2025-01-02" {
		t.Fatalf("date not defaulted from context: %q", s.Date)
	}
	if s.Data["score"] != 5.0 {
		t.Fatalf("field key not lower-cased: %v", s.Data)
	}
	if s.Confidence != 1.0 {
		t.Fatalf("missing confidence must default to 1.0, got %v", s.Confidence)
	}
}

func TestNormalizeRecordList(t *testing.T) {
	raw := []map[string]interface{}{
		{"symbol": "A", "gap": 1.2},
		{"symbol": "B", "gap": -0.4, "confidence": 0.25},
	}
	sigs, err := Normalize(raw, testCtx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sigs) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(sigs))
	}
	if sigs[1].Confidence != 0.25 {
		t.Fatalf("explicit confidence lost: %v", sigs[1].Confidence)
	}
}

func TestNormalizeColumnar(t *testing.T) {
	raw := map[string]interface{}{
		"ticker": []interface{}{"A", "B"},
		"score":  []interface{}{1.0, 2.0},
	}
	sigs, err := Normalize(raw, testCtx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sigs) != 2 {
		t.Fatalf("expected 2 transposed rows, got %d", len(sigs))
	}
	if sigs[0].Ticker != "A" || sigs[1].Ticker != "B" {
		t.Fatalf("tickers wrong: %v %v", sigs[0].Ticker, sigs[1].Ticker)
	}
	if sigs[1].Data["score"] != 2.0 {
		t.Fatalf("row values misaligned: %v", sigs[1].Data)
	}
}

func TestNormalizeColumnarRagged(t *testing.T) {
	raw := map[string][]interface{}{
		"ticker": {"A", "B"},
		"score":  {1.0},
	}
	if _, err := Normalize(raw, testCtx); err == nil {
		t.Fatalf("expected error for ragged columns")
	}
}

func TestNormalizeTable(t *testing.T) {
	tbl := Table{
		Columns: []string{"ticker", "date", "vol"},
		Rows: [][]interface{}{
			{"A", "2025-01-03", 10.0},
			{"B", "2025-01-03", 20.0},
		},
	}
	sigs, err := Normalize(tbl, testCtx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sigs) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(sigs))
	}
	if sigs[0].Date != "2025-01-03" {
		t.Fatalf("date not taken from row: %q", sigs[0].Date)
	}
}

func TestNormalizeText(t *testing.T) {
	sigs, err := Normalize("ticker=TSLA score=9.5", testCtx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sigs) != 1 {
		t.Fatalf("expected 1 parsed record, got %d", len(sigs))
	}
	if sigs[0].Ticker != "TSLA" || sigs[0].Data["score"] != 9.5 {
		t.Fatalf("text parse wrong: %+v", sigs[0])
	}
}

func TestNormalizeTextOpaqueFallback(t *testing.T) {
	sigs, err := Normalize("nothing structured here", testCtx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sigs) != 1 {
		t.Fatalf("expected one opaque record, got %d", len(sigs))
	}
	if sigs[0].Ticker != "AAPL" {
		t.Fatalf("opaque record must carry context symbol, got %q", sigs[0].Ticker)
	}
	if _, ok := sigs[0].Data["raw"]; !ok {
		t.Fatalf("opaque record must keep the raw text: %v", sigs[0].Data)
	}
}

func TestNormalizeUnsupportedShape(t *testing.T) {
	if _, err := Normalize(make(chan int), testCtx); err == nil {
		t.Fatalf("expected error for unsupported shape")
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	raw := map[string]interface{}{
		"ticker": []interface{}{"A", "B"},
		"score":  []interface{}{1.0, 2.0},
	}
	first, err := Normalize(raw, testCtx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Normalize(raw, testCtx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("normalize not idempotent:\n%v\n%v", first, second)
	}
}

func TestDedupe(t *testing.T) {
	sigs := []models.ScannerSignal{
		{Ticker: "A", Date: "2025-01-02", Data: map[string]interface{}{"n": 1}},
		{Ticker: "A", Date: "2025-01-02", Data: map[string]interface{}{"n": 2}},
		{Ticker: "B", Date: "2025-01-02"},
	}
	out := Dedupe(sigs)
	if len(out) != 2 {
		t.Fatalf("expected 2 unique keys, got %d", len(out))
	}
	if out[0].Data["n"] != 1 {
		t.Fatalf("dedupe must keep first occurrence, got %v", out[0].Data)
	}
}
