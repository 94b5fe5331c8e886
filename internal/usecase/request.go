package usecase

import (
	"fmt"
	"time"

	"ScanRunner/internal/domain/models"
	"ScanRunner/pkg/config"
	"ScanRunner/pkg/util"
)

// defaultLookback bounds the implied range when a request carries no dates.
const defaultLookback = 30 * 24 * time.Hour

// ConfigFromRequest resolves an API request against the configured
// scanner catalog. Requested ids must exist in the catalog; disabled
// catalog entries can still be requested explicitly. When the request
// carries no dates the range defaults to the configured lookback window
// ending today.
func ConfigFromRequest(req *models.ExecuteRequest, catalog []config.ScannerConfig, defaultSymbols []string, lookback time.Duration) (models.ExecutionConfig, error) {
	var cfg models.ExecutionConfig

	var start, end time.Time
	switch {
	case req.Start == "" && req.End == "":
		if lookback <= 0 {
			lookback = defaultLookback
		}
		end = util.Day(time.Now())
		start = util.Day(end.Add(-lookback))
	case req.Start == "" || req.End == "":
		return cfg, fmt.Errorf("start and end must be given together")
	default:
		var ok bool
		if start, ok = util.ParseDay(req.Start); !ok {
			return cfg, fmt.Errorf("invalid start date %q", req.Start)
		}
		if end, ok = util.ParseDay(req.End); !ok {
			return cfg, fmt.Errorf("invalid end date %q", req.End)
		}
	}
	if end.Before(start) {
		return cfg, fmt.Errorf("end %q before start %q", req.End, req.Start)
	}

	byID := make(map[string]config.ScannerConfig, len(catalog))
	for _, s := range catalog {
		byID[s.ID] = s
	}

	refs := make([]models.ScannerReference, 0, len(req.Scanners))
	for _, id := range req.Scanners {
		entry, ok := byID[id]
		if !ok {
			return cfg, fmt.Errorf("scanner %q not in catalog", id)
		}
		refs = append(refs, models.ScannerReference{
			ID:      id,
			Weight:  entry.Weight,
			Enabled: true,
		})
	}

	symbols := req.Symbols
	if len(symbols) == 0 {
		symbols = defaultSymbols
	}

	cfg = models.ExecutionConfig{
		References:  refs,
		Overrides:   req.Overrides,
		Range:       models.DateRange{Start: start, End: end},
		Symbols:     symbols,
		Timeout:     time.Duration(req.TimeoutSec) * time.Second,
		Parallel:    req.Parallel,
		MaxWorkers:  req.MaxWorkers,
		Method:      req.Method,
		Weights:     req.Weights,
		MinScanners: req.MinScanners,
		Custom:      req.Custom,
	}
	return cfg, nil
}

// CatalogParams extracts the per-scanner base params from the catalog,
// merged under the loader's overrides.
func CatalogParams(catalog []config.ScannerConfig) map[string]map[string]interface{} {
	out := make(map[string]map[string]interface{}, len(catalog))
	for _, s := range catalog {
		if len(s.Params) > 0 {
			out[s.ID] = s.Params
		}
	}
	return out
}

// MergeOverrides layers request overrides on top of catalog params
// without mutating either source.
func MergeOverrides(base, over map[string]map[string]interface{}) map[string]map[string]interface{} {
	out := make(map[string]map[string]interface{}, len(base)+len(over))
	for id, params := range base {
		m := make(map[string]interface{}, len(params))
		for k, v := range params {
			m[k] = v
		}
		out[id] = m
	}
	for id, params := range over {
		m, ok := out[id]
		if !ok {
			m = make(map[string]interface{}, len(params))
			out[id] = m
		}
		for k, v := range params {
			m[k] = v
		}
	}
	return out
}
