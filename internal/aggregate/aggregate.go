package aggregate

import (
	"errors"
	"fmt"
	"sort"

	"ScanRunner/internal/domain/models"
)

// Aggregation methods.
const (
	MethodUnion        = "union"
	MethodIntersection = "intersection"
	MethodWeighted     = "weighted"
	MethodCustom       = "custom"
)

// ErrUnknownMethod is the one fatal aggregation condition; everything else
// degrades to a smaller result set.
var ErrUnknownMethod = errors.New("unknown aggregation method")

// Input is one scanner's deduplicated signal list. Aggregation consumes
// inputs in slice order; contributing_scanners follows that order and is
// never re-sorted.
type Input struct {
	ScannerID string
	Weight    float64
	Signals   []models.ScannerSignal
}

// Options selects the merge policy.
type Options struct {
	Method string
	// Weights overrides per-scanner weights when set.
	Weights     map[string]float64
	MinScanners int
	Custom      *models.CustomRules
}

// Aggregate merges every scanner's signal stream into one attributed,
// deduplicated result set. Output keys are deterministic for fixed input
// and method; record order follows first appearance of each key.
func Aggregate(inputs []Input, opts Options) ([]models.AggregatedSignal, error) {
	switch opts.Method {
	case MethodUnion, "":
		return union(inputs, opts, false), nil
	case MethodIntersection:
		min := opts.MinScanners
		if min <= 0 {
			min = 2
		}
		merged := union(inputs, opts, false)
		out := merged[:0]
		for _, s := range merged {
			if s.SignalCount >= min {
				s.Method = MethodIntersection
				out = append(out, s)
			}
		}
		return out, nil
	case MethodWeighted:
		return union(inputs, opts, true), nil
	case MethodCustom:
		return custom(inputs, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, opts.Method)
	}
}

type cell struct {
	agg       models.AggregatedSignal
	confNum   float64
	confDen   float64
	weightSum float64
}

// union folds the inputs into one record per unique (ticker, date) key.
// Data bags shallow-merge with last writer winning per field while the
// original records stay in the audit trail. Confidence is the weighted
// mean of contributions; squared=true squares the weights (the weighted
// method) and fills WeightedScore for ranking.
func union(inputs []Input, opts Options, squared bool) []models.AggregatedSignal {
	method := MethodUnion
	if squared {
		method = MethodWeighted
	}

	cells := make(map[models.SignalKey]*cell)
	var order []models.SignalKey

	for _, in := range inputs {
		w := in.Weight
		if ov, ok := opts.Weights[in.ScannerID]; ok {
			w = ov
		}
		if w <= 0 {
			w = 1
		}
		cw := w
		if squared {
			cw = w * w
		}
		for _, s := range in.Signals {
			key := s.Key()
			c, ok := cells[key]
			if !ok {
				c = &cell{agg: models.AggregatedSignal{
					Ticker: s.Ticker,
					Date:   s.Date,
					Data:   map[string]interface{}{},
					Method: method,
				}}
				cells[key] = c
				order = append(order, key)
			}
			for k, v := range s.Data {
				c.agg.Data[k] = v
			}
			c.agg.ContributingScanners = append(c.agg.ContributingScanners, in.ScannerID)
			c.agg.Audit = append(c.agg.Audit, s)
			c.confNum += s.Confidence * cw
			c.confDen += cw
			c.weightSum += w
		}
	}

	out := make([]models.AggregatedSignal, 0, len(order))
	for _, key := range order {
		c := cells[key]
		if c.confDen > 0 {
			c.agg.Confidence = c.confNum / c.confDen
		}
		c.agg.SignalCount = len(c.agg.ContributingScanners)
		if squared {
			c.agg.WeightedScore = c.agg.Confidence * c.weightSum
		}
		out = append(out, c.agg)
	}
	return out
}

// custom runs a base method and then the fixed filter chain: confidence
// floor, required scanners, excluded scanners, sort, top-N.
func custom(inputs []Input, opts Options) ([]models.AggregatedSignal, error) {
	rules := opts.Custom
	if rules == nil {
		rules = &models.CustomRules{}
	}
	base := rules.BaseMethod
	if base == "" {
		base = MethodUnion
	}
	if base == MethodCustom {
		return nil, fmt.Errorf("%w: custom cannot be its own base", ErrUnknownMethod)
	}
	baseOpts := opts
	baseOpts.Method = base
	merged, err := Aggregate(inputs, baseOpts)
	if err != nil {
		return nil, err
	}

	out := merged[:0]
	for _, s := range merged {
		if rules.MinConfidence > 0 && s.Confidence < rules.MinConfidence {
			continue
		}
		if !containsAll(s.ContributingScanners, rules.RequiredScanners) {
			continue
		}
		if containsAny(s.ContributingScanners, rules.ExcludedScanners) {
			continue
		}
		s.Method = MethodCustom
		out = append(out, s)
	}

	if rules.SortBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			return sortValue(out[i], rules.SortBy) > sortValue(out[j], rules.SortBy)
		})
	}
	if rules.TopN > 0 && len(out) > rules.TopN {
		out = out[:rules.TopN]
	}
	return out, nil
}

func sortValue(s models.AggregatedSignal, field string) float64 {
	if field == "confidence" {
		return s.Confidence
	}
	switch v := s.Data[field].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func containsAll(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func containsAny(have, avoid []string) bool {
	for _, a := range avoid {
		for _, h := range have {
			if h == a {
				return true
			}
		}
	}
	return false
}
