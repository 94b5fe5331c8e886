package adapter

import (
	"context"
	"fmt"
	"time"

	"ScanRunner/internal/domain/models"
	"ScanRunner/internal/domain/service"
	"ScanRunner/internal/recovery"
)

// Invoke is the uniform invocation contract every detected entry-point
// shape is adapted to. It never panics and never returns a raw error: any
// failure inside the wrapped entry comes back as a typed Failure carrying
// the unit's identity. Raw and Failure may both be non-nil when a
// cooperative scanner timed out mid-stream with partial output.
type Invoke func(ctx context.Context, symbol string) (interface{}, *models.Failure)

// Build wraps one isolated scanner instance into an Invoke for the
// detected contract. Single-call variants close over the universe and
// date range and ignore the symbol argument; the engine enforces
// single-call semantics for them.
func Build(scannerID string, inst interface{}, c models.Contract, symbols []string, r models.DateRange) (Invoke, *models.Failure) {
	switch c.Variant {
	case models.VariantPerTicker:
		s, ok := inst.(service.TickerScanner)
		if !ok {
			return nil, notAdaptable(scannerID, c)
		}
		return perTicker(scannerID, s, r), nil
	case models.VariantBatch, models.VariantSyncMain:
		s, ok := inst.(service.BatchScanner)
		if !ok {
			return nil, notAdaptable(scannerID, c)
		}
		return batch(scannerID, s, symbols, r), nil
	case models.VariantOptimal:
		s, ok := inst.(service.MarketScanner)
		if !ok {
			return nil, notAdaptable(scannerID, c)
		}
		return market(scannerID, s, r), nil
	case models.VariantAsyncMain:
		s, ok := inst.(service.StreamScanner)
		if !ok {
			return nil, notAdaptable(scannerID, c)
		}
		return stream(scannerID, s), nil
	case models.VariantGeneric:
		// The generic fallback probes the contract set in priority order.
		switch s := inst.(type) {
		case service.TickerScanner:
			return perTicker(scannerID, s, r), nil
		case service.BatchScanner:
			return batch(scannerID, s, symbols, r), nil
		case service.MarketScanner:
			return market(scannerID, s, r), nil
		case service.StreamScanner:
			return stream(scannerID, s), nil
		}
		return nil, notAdaptable(scannerID, c)
	default:
		return nil, notAdaptable(scannerID, c)
	}
}

func notAdaptable(scannerID string, c models.Contract) *models.Failure {
	err := fmt.Errorf("%w: instance does not implement %s entry %q",
		recovery.ErrEntryPointNotFound, c.Variant, c.Entry)
	return recovery.Classify(scannerID, "", err)
}

func perTicker(scannerID string, s service.TickerScanner, r models.DateRange) Invoke {
	return func(ctx context.Context, symbol string) (interface{}, *models.Failure) {
		return safeCall(scannerID, symbol, func() (interface{}, error) {
			return s.ScanTicker(ctx, symbol, r.Start, r.End)
		})
	}
}

func batch(scannerID string, s service.BatchScanner, symbols []string, r models.DateRange) Invoke {
	return func(ctx context.Context, _ string) (interface{}, *models.Failure) {
		return safeCall(scannerID, "batch", func() (interface{}, error) {
			return s.ScanAll(ctx, symbols, r.Start, r.End)
		})
	}
}

func market(scannerID string, s service.MarketScanner, r models.DateRange) Invoke {
	return func(ctx context.Context, _ string) (interface{}, *models.Failure) {
		return safeCall(scannerID, "market", func() (interface{}, error) {
			return s.ScanMarket(ctx, r.Start, r.End)
		})
	}
}

// stream bridges a cooperative scanner through a dedicated goroutine: the
// scanner suspends on its own channel, never on the caller's scheduling
// context, so invoking it from inside an engine worker cannot deadlock.
// On timeout the items drained so far are returned alongside the failure.
func stream(scannerID string, s service.StreamScanner) Invoke {
	return func(ctx context.Context, _ string) (interface{}, *models.Failure) {
		type result struct {
			items []interface{}
			fail  *models.Failure
		}
		done := make(chan result, 1)

		go func() {
			var res result
			defer func() {
				if r := recover(); r != nil {
					res.fail = recovery.FromPanic(scannerID, "market", r)
				}
				done <- res
			}()
			ch, err := s.Run(ctx)
			if err != nil {
				res.fail = recovery.Classify(scannerID, "market", err)
				return
			}
			for {
				select {
				case item, ok := <-ch:
					if !ok {
						return
					}
					res.items = append(res.items, item)
				case <-ctx.Done():
					res.fail = recovery.Classify(scannerID, "market", ctx.Err())
					return
				}
			}
		}()

		select {
		case res := <-done:
			if len(res.items) == 0 {
				return nil, res.fail
			}
			return res.items, res.fail
		case <-ctx.Done():
			// The bridge goroutine observes the same ctx; give it a grace
			// window to hand over whatever it drained before the deadline.
			select {
			case res := <-done:
				if len(res.items) == 0 {
					return nil, res.fail
				}
				return res.items, res.fail
			case <-time.After(100 * time.Millisecond):
				return nil, recovery.Classify(scannerID, "market", ctx.Err())
			}
		}
	}
}

func safeCall(scannerID, unit string, fn func() (interface{}, error)) (raw interface{}, fail *models.Failure) {
	defer func() {
		if r := recover(); r != nil {
			raw, fail = nil, recovery.FromPanic(scannerID, unit, r)
		}
	}()
	out, err := fn()
	if err != nil {
		return nil, recovery.Classify(scannerID, unit, err)
	}
	return out, nil
}

// BuildWithFallbacks builds an Invoke for the detected contract, retrying
// lower-priority variants when adaptation fails recoverably. It returns
// the contract that finally matched.
func BuildWithFallbacks(scannerID string, inst interface{}, c models.Contract, fallbacks []models.ContractVariant, symbols []string, r models.DateRange) (Invoke, models.Contract, *models.Failure) {
	inv, fail := Build(scannerID, inst, c, symbols, r)
	if fail == nil {
		return inv, c, nil
	}
	if recovery.Decide(fail) != recovery.RetryNextVariant {
		return nil, c, fail
	}
	for _, v := range fallbacks {
		next := models.Contract{Entry: c.Entry, Variant: v, Suspension: c.Suspension}
		if inv, f := Build(scannerID, inst, next, symbols, r); f == nil {
			return inv, next, nil
		}
	}
	return nil, c, fail
}
