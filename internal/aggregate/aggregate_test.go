package aggregate

import (
	"math"
	"testing"

	"ScanRunner/internal/domain/models"
)

func sig(scanner, ticker, date string, conf float64, data map[string]interface{}) models.ScannerSignal {
	if data == nil {
		data = map[string]interface{}{}
	}
	return models.ScannerSignal{
		Ticker: ticker, Date: date, ScannerID: scanner,
		Data: data, Confidence: conf, Weight: 1,
	}
}

// Scenario: two scanners hit the same (ticker, date) with equal weights.
func TestUnionMergesCollidingKeys(t *testing.T) {
	inputs := []Input{
		{ScannerID: "A", Weight: 1, Signals: []models.ScannerSignal{
			sig("A", "AAPL", "2025-01-02", 1.0, map[string]interface{}{"score": 5.0}),
		}},
		{ScannerID: "B", Weight: 1, Signals: []models.ScannerSignal{
			sig("B", "AAPL", "2025-01-02", 1.0, map[string]interface{}{"score": 7.0}),
		}},
	}
	out, err := Aggregate(inputs, Options{Method: MethodUnion})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 merged signal, got %d", len(out))
	}
	s := out[0]
	if s.SignalCount != 2 || len(s.ContributingScanners) != 2 {
		t.Fatalf("attribution wrong: count=%d scanners=%v", s.SignalCount, s.ContributingScanners)
	}
	if s.ContributingScanners[0] != "A" || s.ContributingScanners[1] != "B" {
		t.Fatalf("contributing order must follow input order: %v", s.ContributingScanners)
	}
	if s.Confidence != 1.0 {
		t.Fatalf("equal-weight confidence must be 1.0, got %v", s.Confidence)
	}
	if s.Data["score"] != 7.0 {
		t.Fatalf("last writer must win per field, got %v", s.Data["score"])
	}
	// Both originals stay in the audit trail.
	if len(s.Audit) != 2 {
		t.Fatalf("expected 2 audit records, got %d", len(s.Audit))
	}
	if s.Audit[0].Data["score"] != 5.0 || s.Audit[1].Data["score"] != 7.0 {
		t.Fatalf("audit trail lost originals: %v", s.Audit)
	}
}

func TestSignalCountInvariant(t *testing.T) {
	inputs := []Input{
		{ScannerID: "A", Weight: 1, Signals: []models.ScannerSignal{
			sig("A", "X", "2025-01-02", 0.5, nil),
			sig("A", "Y", "2025-01-02", 0.5, nil),
		}},
		{ScannerID: "B", Weight: 2, Signals: []models.ScannerSignal{
			sig("B", "X", "2025-01-02", 0.9, nil),
		}},
	}
	out, _ := Aggregate(inputs, Options{Method: MethodUnion})
	for _, s := range out {
		if s.SignalCount != len(s.ContributingScanners) {
			t.Fatalf("signal_count invariant broken: %d != %d", s.SignalCount, len(s.ContributingScanners))
		}
	}
}

func TestUnionOrderIndependentKeySet(t *testing.T) {
	a := Input{ScannerID: "A", Weight: 1, Signals: []models.ScannerSignal{
		sig("A", "X", "2025-01-02", 0.5, nil),
		sig("A", "Y", "2025-01-03", 0.7, nil),
	}}
	b := Input{ScannerID: "B", Weight: 3, Signals: []models.ScannerSignal{
		sig("B", "X", "2025-01-02", 0.9, nil),
		sig("B", "Z", "2025-01-02", 0.4, nil),
	}}

	fwd, _ := Aggregate([]Input{a, b}, Options{Method: MethodUnion})
	rev, _ := Aggregate([]Input{b, a}, Options{Method: MethodUnion})

	if len(fwd) != len(rev) {
		t.Fatalf("key sets differ: %d vs %d", len(fwd), len(rev))
	}
	conf := map[models.SignalKey]float64{}
	for _, s := range fwd {
		conf[models.SignalKey{Ticker: s.Ticker, Date: s.Date}] = s.Confidence
	}
	for _, s := range rev {
		want, ok := conf[models.SignalKey{Ticker: s.Ticker, Date: s.Date}]
		if !ok {
			t.Fatalf("key %s/%s missing in forward order", s.Ticker, s.Date)
		}
		if math.Abs(s.Confidence-want) > 1e-9 {
			t.Fatalf("confidence differs across input order: %v vs %v", s.Confidence, want)
		}
	}
}

func TestIntersectionDropsSingleContributor(t *testing.T) {
	inputs := []Input{
		{ScannerID: "A", Weight: 1, Signals: []models.ScannerSignal{
			sig("A", "AAPL", "2025-01-02", 1.0, nil),
		}},
		{ScannerID: "B", Weight: 1, Signals: []models.ScannerSignal{
			sig("B", "AAPL", "2025-01-02", 1.0, nil),
		}},
		{ScannerID: "C", Weight: 1, Signals: []models.ScannerSignal{
			sig("C", "TSLA", "2025-01-02", 1.0, nil),
			sig("C", "NVDA", "2025-01-03", 1.0, nil),
		}},
	}
	out, err := Aggregate(inputs, Options{Method: MethodIntersection, MinScanners: 2})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(out) != 1 || out[0].Ticker != "AAPL" {
		t.Fatalf("scanner C's lone signals must be dropped, got %v", out)
	}
}

func TestIntersectionMinOneEqualsUnion(t *testing.T) {
	inputs := []Input{
		{ScannerID: "A", Weight: 1, Signals: []models.ScannerSignal{
			sig("A", "X", "2025-01-02", 0.5, nil),
		}},
		{ScannerID: "B", Weight: 1, Signals: []models.ScannerSignal{
			sig("B", "Y", "2025-01-02", 0.8, nil),
		}},
	}
	u, _ := Aggregate(inputs, Options{Method: MethodUnion})
	i, _ := Aggregate(inputs, Options{Method: MethodIntersection, MinScanners: 1})
	if len(u) != len(i) {
		t.Fatalf("intersection(min=1) must equal union: %d vs %d", len(u), len(i))
	}
	for n := range u {
		if u[n].Ticker != i[n].Ticker || u[n].Confidence != i[n].Confidence {
			t.Fatalf("record %d differs: %v vs %v", n, u[n], i[n])
		}
	}
}

func TestWeightedSquaresWeightsAndScores(t *testing.T) {
	inputs := []Input{
		{ScannerID: "A", Weight: 1, Signals: []models.ScannerSignal{
			sig("A", "X", "2025-01-02", 1.0, nil),
		}},
		{ScannerID: "B", Weight: 3, Signals: []models.ScannerSignal{
			sig("B", "X", "2025-01-02", 0.5, nil),
		}},
	}
	out, err := Aggregate(inputs, Options{Method: MethodWeighted})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(out))
	}
	s := out[0]
	wantConf := (1.0*1 + 0.5*9) / (1 + 9)
	if math.Abs(s.Confidence-wantConf) > 1e-9 {
		t.Fatalf("squared-weight confidence wrong: got %v want %v", s.Confidence, wantConf)
	}
	wantScore := wantConf * 4 // sum of raw weights
	if math.Abs(s.WeightedScore-wantScore) > 1e-9 {
		t.Fatalf("weighted score wrong: got %v want %v", s.WeightedScore, wantScore)
	}
}

func TestCustomFilterChain(t *testing.T) {
	inputs := []Input{
		{ScannerID: "A", Weight: 1, Signals: []models.ScannerSignal{
			sig("A", "X", "2025-01-02", 0.9, map[string]interface{}{"score": 3.0}),
			sig("A", "Y", "2025-01-02", 0.2, map[string]interface{}{"score": 9.0}),
			sig("A", "Z", "2025-01-02", 0.8, map[string]interface{}{"score": 5.0}),
		}},
		{ScannerID: "B", Weight: 1, Signals: []models.ScannerSignal{
			sig("B", "X", "2025-01-02", 0.7, nil),
			sig("B", "Z", "2025-01-02", 0.6, nil),
		}},
	}
	out, err := Aggregate(inputs, Options{
		Method: MethodCustom,
		Custom: &models.CustomRules{
			BaseMethod:       MethodUnion,
			MinConfidence:    0.5,
			RequiredScanners: []string{"A"},
			SortBy:           "score",
			TopN:             1,
		},
	})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	// Y drops on confidence; X and Z survive; sorted by score desc Z=5 > X=3; top-1 keeps Z.
	if len(out) != 1 || out[0].Ticker != "Z" {
		t.Fatalf("custom chain wrong, got %v", out)
	}
	if out[0].Method != MethodCustom {
		t.Fatalf("method attribution wrong: %s", out[0].Method)
	}
}

func TestCustomExcludedScanners(t *testing.T) {
	inputs := []Input{
		{ScannerID: "A", Weight: 1, Signals: []models.ScannerSignal{
			sig("A", "X", "2025-01-02", 1.0, nil),
		}},
		{ScannerID: "BAD", Weight: 1, Signals: []models.ScannerSignal{
			sig("BAD", "Y", "2025-01-02", 1.0, nil),
		}},
	}
	out, err := Aggregate(inputs, Options{
		Method: MethodCustom,
		Custom: &models.CustomRules{ExcludedScanners: []string{"BAD"}},
	})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(out) != 1 || out[0].Ticker != "X" {
		t.Fatalf("excluded scanner's signals must drop, got %v", out)
	}
}

func TestUnknownMethod(t *testing.T) {
	if _, err := Aggregate(nil, Options{Method: "median"}); err == nil {
		t.Fatalf("unknown method must error")
	}
}
