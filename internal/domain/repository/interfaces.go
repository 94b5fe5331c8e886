package repository

import (
	"context"
	"time"

	"ScanRunner/internal/domain/models"
)

// Candle is one OHLCV bar as served by the upstream market-data source.
type Candle struct {
	Symbol string
	Day    time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// MarketData is the upstream data client wrapped scanner code calls. The
// core's only contract with it is that a failed call surfaces as an
// execution_runtime_failure for that unit.
type MarketData interface {
	Candles(ctx context.Context, symbol string, start, end time.Time) ([]Candle, error)
	// GroupedDaily returns one bar per symbol for the whole market on a
	// single day. Scanners calling this are tagged optimal/pass-through.
	GroupedDaily(ctx context.Context, day time.Time) ([]Candle, error)
}

// QuoteStream streams live quotes for stream-shaped scanners.
type QuoteStream interface {
	Connect(ctx context.Context) error
	Read(ctx context.Context) (<-chan Candle, <-chan error)
	Close() error
}

// SignalPublisher pushes aggregated signals to a message bus after an
// execution finishes. The core never calls it; the app layer does.
type SignalPublisher interface {
	Publish(ctx context.Context, s models.AggregatedSignal) error
	PublishBatch(ctx context.Context, signals []models.AggregatedSignal) error
	Close() error
}

// SignalStore persists aggregated signals and execution summaries.
// Persistence is the caller's responsibility, never the core's.
type SignalStore interface {
	Init(ctx context.Context) error
	StoreSignals(ctx context.Context, signals []models.AggregatedSignal) error
	StoreReport(ctx context.Context, report *models.ExecutionReport) error
	Health(ctx context.Context) error
	Close() error
}

// Metrics records execution telemetry.
type Metrics interface {
	RecordExecution(method string, success bool)
	RecordUnitOutcome(scannerID, outcome string)
	RecordSignals(scannerID string, count int)
	RecordLatency(op string, seconds float64)
}
