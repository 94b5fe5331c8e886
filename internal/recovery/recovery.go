package recovery

import (
	"context"
	"errors"
	"fmt"

	"ScanRunner/internal/domain/models"
)

// Sentinel errors the loader and adapter wrap so that classification can
// use errors.Is instead of string matching.
var (
	ErrSourceInvalid      = errors.New("scanner source invalid")
	ErrMissingDependency  = errors.New("scanner dependency missing")
	ErrEntryPointNotFound = errors.New("scanner entry point not found")
)

// Classify maps an arbitrary error from the pipeline into the closed
// failure taxonomy, retaining the offending unit's identity and the
// original diagnostic text for the execution report.
func Classify(scannerID, unit string, err error) *models.Failure {
	if err == nil {
		return nil
	}
	kind := models.FailExecutionRuntime
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		kind = models.FailExecutionTimeout
	case errors.Is(err, ErrSourceInvalid):
		kind = models.FailSourceInvalid
	case errors.Is(err, ErrMissingDependency):
		kind = models.FailMissingDependency
	case errors.Is(err, ErrEntryPointNotFound):
		kind = models.FailEntryPointNotFound
	}
	return models.NewFailure(kind, scannerID, unit, err.Error())
}

// FromPanic converts a recovered panic value into a runtime failure.
func FromPanic(scannerID, unit string, v interface{}) *models.Failure {
	return models.NewFailure(models.FailExecutionRuntime, scannerID, unit, fmt.Sprintf("panic: %v", v))
}

// Disposition is the recovery policy decision for one failure.
type Disposition int

const (
	// Record the failure and continue; the batch is never aborted.
	Record Disposition = iota
	// RetryNextVariant re-runs contract detection with the next-priority
	// variant before giving up on the scanner.
	RetryNextVariant
	// WrapOpaque keeps the raw value as one opaque record instead of
	// discarding it.
	WrapOpaque
)

// Decide applies the policy table to a classified failure.
func Decide(f *models.Failure) Disposition {
	switch f.Kind {
	case models.FailMissingDependency, models.FailEntryPointNotFound:
		return RetryNextVariant
	case models.FailFormatConversion:
		return WrapOpaque
	default:
		// Timeouts are recorded with partial results kept; runtime
		// failures are recorded per unit.
		return Record
	}
}
