package models

import "fmt"

// ScannerReference declares one scanner the caller wants to run.
// References are immutable for the duration of a run.
type ScannerReference struct {
	ID      string
	Source  string // Go source text of the scanner, inspected by the contract detector
	Weight  float64
	Enabled bool
}

// ContractVariant classifies a scanner's primary entry-point shape.
type ContractVariant string

const (
	// VariantAsyncMain is a ctx-only main/run entry; the scanner streams
	// results cooperatively and covers the whole market by itself.
	VariantAsyncMain ContractVariant = "async_main"
	// VariantPerTicker is an entry invoked once per symbol.
	VariantPerTicker ContractVariant = "per_ticker"
	// VariantBatch is an entry invoked exactly once for the whole universe.
	VariantBatch ContractVariant = "batch"
	// VariantSyncMain is a plain synchronous main entry.
	VariantSyncMain ContractVariant = "sync_main"
	// VariantGeneric is the fallback: first function with at least one parameter.
	VariantGeneric ContractVariant = "generic"
	// VariantOptimal marks a scanner that already performs its own
	// market-wide fetch and iteration; it is run as-is, single call.
	VariantOptimal ContractVariant = "optimal"
)

// SuspensionKind records whether the entry point participates in
// cooperative cancellation (takes a context) or is plain synchronous.
type SuspensionKind string

const (
	SuspensionCooperative SuspensionKind = "cooperative"
	SuspensionNone        SuspensionKind = "none"
)

// Contract is the detector's verdict for one scanner source.
type Contract struct {
	Entry      string
	Variant    ContractVariant
	Suspension SuspensionKind
}

// ExecModel is the concurrency/batching strategy implied by a contract.
type ExecModel string

const (
	// ModelParallel runs one invoke call per ticker on a bounded worker pool.
	ModelParallel ExecModel = "parallel"
	// ModelBatch runs exactly one invoke call covering the whole universe.
	ModelBatch ExecModel = "batch"
	// ModelAsyncFanout runs one cooperative invoke bridged through its own
	// scheduling goroutine.
	ModelAsyncFanout ExecModel = "async_fanout"
)

// Model maps a contract variant to its execution model.
func (c Contract) Model() ExecModel {
	switch c.Variant {
	case VariantPerTicker, VariantGeneric:
		return ModelParallel
	case VariantAsyncMain:
		return ModelAsyncFanout
	default:
		return ModelBatch
	}
}

// SingleCall reports whether the engine must call invoke exactly once.
func (c Contract) SingleCall() bool {
	return c.Model() != ModelParallel
}

// FailureKind is the closed taxonomy of per-unit failures.
type FailureKind string

const (
	FailSourceInvalid      FailureKind = "source_invalid"
	FailMissingDependency  FailureKind = "missing_dependency"
	FailEntryPointNotFound FailureKind = "entry_point_not_found"
	FailExecutionTimeout   FailureKind = "execution_timeout"
	FailExecutionRuntime   FailureKind = "execution_runtime_failure"
	FailFormatConversion   FailureKind = "format_conversion_failure"
)

// Failure carries a classified failure together with the identity of the
// unit that produced it. Failures are values passed through result sets,
// never raised past the engine boundary.
type Failure struct {
	Kind      FailureKind
	ScannerID string
	Unit      string // ticker, or "batch"/"market" for single-call models
	Detail    string
}

func (f *Failure) Error() string {
	if f.Unit != "" {
		return fmt.Sprintf("%s [%s/%s]: %s", f.Kind, f.ScannerID, f.Unit, f.Detail)
	}
	return fmt.Sprintf("%s [%s]: %s", f.Kind, f.ScannerID, f.Detail)
}

// NewFailure builds a Failure for the given unit.
func NewFailure(kind FailureKind, scannerID, unit, detail string) *Failure {
	return &Failure{Kind: kind, ScannerID: scannerID, Unit: unit, Detail: detail}
}

// Recoverable reports whether the pipeline may retry contract detection
// with the next-priority variant after this failure.
func (f *Failure) Recoverable() bool {
	return f.Kind == FailMissingDependency || f.Kind == FailEntryPointNotFound
}
