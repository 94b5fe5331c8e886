package models

import "time"

// DateRange bounds the scan window. End is inclusive.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// CustomRules are the post-filters applied by the custom aggregation
// method, in this fixed order: confidence floor, required scanners,
// excluded scanners, sort, top-N truncation.
type CustomRules struct {
	BaseMethod       string
	MinConfidence    float64
	RequiredScanners []string
	ExcludedScanners []string
	SortBy           string // data field name, or "confidence"
	TopN             int
}

// ExecutionConfig is the per-run input to the execute boundary.
type ExecutionConfig struct {
	References []ScannerReference
	// Overrides are parameter injections per scanner id, supplied by the
	// upstream parameter-extraction subsystem. Each loaded instance
	// receives its own deep copy.
	Overrides map[string]map[string]interface{}

	Range   DateRange
	Symbols []string
	Timeout time.Duration
	// Parallel toggles the bounded worker pool for per-ticker scanners;
	// when false those scanners run their tickers sequentially.
	Parallel   bool
	MaxWorkers int

	Method      string
	Weights     map[string]float64
	MinScanners int
	Custom      *CustomRules
}

// ScannerStats summarizes per-scanner outcomes for the report.
type ScannerStats struct {
	TotalEnabled int
	Succeeded    int
	Failed       int
	FailedIDs    []string
	// Errors maps scanner id to its first diagnostic, load failures included.
	Errors map[string]string
}

// SignalStats summarizes the produced signal set for the report.
type SignalStats struct {
	Total                 int
	UniqueTickers         int
	DateStart             string
	DateEnd               string
	PerScannerContributed map[string]int
	MeanConfidence        float64
}

// ExecutionReport is the diagnostic result of one execution. It is always
// returned, even when the run as a whole failed; it never panics and
// callers must not rely on errors for partial-failure signaling.
type ExecutionReport struct {
	Success  bool
	Scanners ScannerStats
	Signals  SignalStats
	Elapsed  time.Duration
}
