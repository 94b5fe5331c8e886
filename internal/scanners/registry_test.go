package scanners

import (
	"context"
	"testing"
	"time"

	"ScanRunner/internal/contract"
	"ScanRunner/internal/domain/models"
	"ScanRunner/internal/domain/repository"
)

type fakeData struct {
	candles map[string][]repository.Candle
	grouped map[string][]repository.Candle
}

func (f *fakeData) Candles(ctx context.Context, symbol string, start, end time.Time) ([]repository.Candle, error) {
	return f.candles[symbol], nil
}

func (f *fakeData) GroupedDaily(ctx context.Context, day time.Time) ([]repository.Candle, error) {
	return f.grouped[day.Format("2006-01-02")], nil
}

func day(n int) time.Time {
	return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func flatCandles(symbol string, n int, volume float64) []repository.Candle {
	out := make([]repository.Candle, n)
	for i := range out {
		out[i] = repository.Candle{
			Symbol: symbol, Day: day(i),
			Open: 100, High: 101, Low: 99, Close: 100, Volume: volume,
		}
	}
	return out
}

func TestBuiltinContractVariants(t *testing.T) {
	reg := NewRegistry(&fakeData{}, nil)
	det := contract.New()

	want := map[string]models.ContractVariant{
		"volume_spike":    models.VariantPerTicker,
		"gap":             models.VariantPerTicker,
		"breakout":        models.VariantBatch,
		"market_momentum": models.VariantOptimal,
		"tape_reader":     models.VariantAsyncMain,
	}
	for id, variant := range want {
		src, err := reg.Source(id)
		if err != nil {
			t.Fatalf("source %s: %v", id, err)
		}
		c, fail := det.Detect(id, src)
		if fail != nil {
			t.Fatalf("detect %s: %v", id, fail)
		}
		if c.Variant != variant {
			t.Fatalf("%s classified as %s, want %s", id, c.Variant, variant)
		}
	}
}

func TestVolumeSpikeDetectsSpike(t *testing.T) {
	candles := flatCandles("AAPL", 25, 100)
	candles[len(candles)-1].Volume = 1000
	data := &fakeData{candles: map[string][]repository.Candle{"AAPL": candles}}

	s := NewVolumeSpike(data, map[string]interface{}{"threshold": 2.0})
	raw, err := s.ScanTicker(context.Background(), "AAPL", day(0), day(24))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	rec, ok := raw.(map[string]interface{})
	if !ok || rec["ticker"] != "AAPL" {
		t.Fatalf("unexpected result: %v", raw)
	}
	if rec["volume_zscore"].(float64) <= 2.0 {
		t.Fatalf("zscore must clear threshold: %v", rec["volume_zscore"])
	}
}

func TestVolumeSpikeQuietTapeIsNil(t *testing.T) {
	data := &fakeData{candles: map[string][]repository.Candle{"AAPL": flatCandles("AAPL", 25, 100)}}
	s := NewVolumeSpike(data, nil)
	raw, err := s.ScanTicker(context.Background(), "AAPL", day(0), day(24))
	if err != nil || raw != nil {
		t.Fatalf("flat volume must produce no signal, got %v, %v", raw, err)
	}
}

func TestGapEmitsTypedSignal(t *testing.T) {
	candles := flatCandles("TSLA", 5, 100)
	candles[len(candles)-1].Open = 110
	data := &fakeData{candles: map[string][]repository.Candle{"TSLA": candles}}

	s := NewGap(data, map[string]interface{}{"min_gap_pct": 5.0})
	raw, err := s.ScanTicker(context.Background(), "TSLA", day(0), day(4))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	sig, ok := raw.(models.ScannerSignal)
	if !ok {
		t.Fatalf("expected typed signal, got %T", raw)
	}
	if sig.Ticker != "TSLA" || sig.Data["direction"] != "up" {
		t.Fatalf("unexpected signal: %+v", sig)
	}
}

func TestBreakoutColumnarOutput(t *testing.T) {
	breaking := flatCandles("NVDA", 25, 100)
	breaking[len(breaking)-1].Close = 150
	data := &fakeData{candles: map[string][]repository.Candle{
		"NVDA": breaking,
		"MSFT": flatCandles("MSFT", 25, 100),
	}}

	s := NewBreakout(data, nil)
	raw, err := s.ScanAll(context.Background(), []string{"NVDA", "MSFT"}, day(0), day(24))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	cols, ok := raw.(map[string][]interface{})
	if !ok {
		t.Fatalf("expected columnar result, got %T", raw)
	}
	if len(cols["ticker"]) != 1 || cols["ticker"][0] != "NVDA" {
		t.Fatalf("only NVDA breaks out: %v", cols["ticker"])
	}
}

func TestMarketMomentumRanksMovers(t *testing.T) {
	data := &fakeData{grouped: map[string][]repository.Candle{
		day(0).Format("2006-01-02"): {
			{Symbol: "A", Day: day(0), Close: 100},
			{Symbol: "B", Day: day(0), Close: 100},
			{Symbol: "C", Day: day(0), Close: 100},
		},
		day(10).Format("2006-01-02"): {
			{Symbol: "A", Day: day(10), Close: 130},
			{Symbol: "B", Day: day(10), Close: 115},
			{Symbol: "C", Day: day(10), Close: 101},
		},
	}}

	s := NewMarketMomentum(data, map[string]interface{}{"min_gain_pct": 10.0, "top_n": 5})
	raw, err := s.ScanMarket(context.Background(), day(0), day(10))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	rows, ok := raw.([]map[string]interface{})
	if !ok {
		t.Fatalf("expected row list, got %T", raw)
	}
	if len(rows) != 2 || rows[0]["ticker"] != "A" || rows[1]["ticker"] != "B" {
		t.Fatalf("ranking wrong: %v", rows)
	}
}

type fakeStream struct {
	quotes []repository.Candle
	closed bool
}

func (f *fakeStream) Connect(ctx context.Context) error { return nil }

func (f *fakeStream) Read(ctx context.Context) (<-chan repository.Candle, <-chan error) {
	out := make(chan repository.Candle, len(f.quotes))
	errs := make(chan error, 1)
	for _, q := range f.quotes {
		out <- q
	}
	close(out)
	return out, errs
}

func (f *fakeStream) Close() error {
	f.closed = true
	return nil
}

func TestTapeReaderEmitsOnBurst(t *testing.T) {
	var quotes []repository.Candle
	for i := 0; i < 5; i++ {
		quotes = append(quotes, repository.Candle{Symbol: "GME", Day: day(1), Close: 20, Volume: 10})
	}
	stream := &fakeStream{quotes: quotes}

	s := NewTapeReader(stream, map[string]interface{}{"min_trades": 5})
	ch, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var got []interface{}
	for item := range ch {
		got = append(got, item)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 burst signal, got %d", len(got))
	}
	rec := got[0].(map[string]interface{})
	if rec["ticker"] != "GME" || rec["trade_count"] != 5 {
		t.Fatalf("unexpected signal: %v", rec)
	}
	if rec["vwap"].(float64) != 20 {
		t.Fatalf("vwap wrong: %v", rec["vwap"])
	}

	if err := s.Close(); err != nil || !stream.closed {
		t.Fatalf("close must release the stream")
	}
}
