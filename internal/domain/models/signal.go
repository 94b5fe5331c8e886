package models

import "time"

// DateLayout is the canonical day format used for signal keys.
const DateLayout = "2006-01-02"

// ScannerSignal is one symbol+date match produced by exactly one scanner,
// pre-aggregation. Data holds every non-canonical field of the source
// record under lower-cased keys.
type ScannerSignal struct {
	Ticker     string
	Date       string // canonical YYYY-MM-DD
	ScannerID  string
	Data       map[string]interface{}
	Confidence float64 // clamped to [0,1]
	Weight     float64
}

// Key returns the dedup/aggregation key for the signal.
func (s ScannerSignal) Key() SignalKey {
	return SignalKey{Ticker: s.Ticker, Date: s.Date}
}

// SignalKey identifies one (ticker, date) cell.
type SignalKey struct {
	Ticker string
	Date   string
}

// AggregatedSignal is the merged view of one or more ScannerSignals sharing
// a (ticker, date) key, with full attribution.
type AggregatedSignal struct {
	Ticker string
	Date   string
	// ContributingScanners preserves the order scanners were fed into the
	// aggregator; it is not re-sorted.
	ContributingScanners []string
	Data                 map[string]interface{}
	Confidence           float64
	SignalCount          int
	// WeightedScore is only populated by the weighted method: an unbounded
	// ranking score, confidence times the sum of contributing weights.
	WeightedScore float64
	Method        string
	// Audit keeps the original per-scanner records that were merged.
	Audit []ScannerSignal
}

// AggregatedSignals is the reconciled result set returned to the caller.
type AggregatedSignals struct {
	Signals []AggregatedSignal
	Summary ExecutionSummary
}

// ExecutionSummary describes one run's signal output.
type ExecutionSummary struct {
	Method         string
	Total          int
	UniqueTickers  int
	DateStart      string
	DateEnd        string
	PerScanner     map[string]int
	MeanConfidence float64
	Elapsed        time.Duration
}
