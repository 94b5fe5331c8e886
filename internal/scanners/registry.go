package scanners

import (
	_ "embed"
	"fmt"
	"sort"
	"time"

	"ScanRunner/internal/domain/repository"
	"ScanRunner/internal/domain/service"
)

// Each built-in ships its own source text; the contract detector
// classifies entry points from it instead of trusting a declared shape.
var (
	//go:embed volume_spike.go
	volumeSpikeSrc string
	//go:embed gap.go
	gapSrc string
	//go:embed breakout.go
	breakoutSrc string
	//go:embed market_momentum.go
	marketMomentumSrc string
	//go:embed tape_reader.go
	tapeReaderSrc string
)

type entry struct {
	source  string
	factory service.Factory
}

// Registry holds the built-in scanner catalog, with the market-data
// client and quote stream bound into each factory.
type Registry struct {
	entries map[string]entry
}

func NewRegistry(data repository.MarketData, stream repository.QuoteStream) *Registry {
	r := &Registry{entries: map[string]entry{}}

	r.register("volume_spike", volumeSpikeSrc, func(params map[string]interface{}) (interface{}, error) {
		return NewVolumeSpike(data, params), nil
	})
	r.register("gap", gapSrc, func(params map[string]interface{}) (interface{}, error) {
		return NewGap(data, params), nil
	})
	r.register("breakout", breakoutSrc, func(params map[string]interface{}) (interface{}, error) {
		return NewBreakout(data, params), nil
	})
	r.register("market_momentum", marketMomentumSrc, func(params map[string]interface{}) (interface{}, error) {
		return NewMarketMomentum(data, params), nil
	})
	r.register("tape_reader", tapeReaderSrc, func(params map[string]interface{}) (interface{}, error) {
		if stream == nil {
			return nil, fmt.Errorf("tape_reader: no quote stream configured")
		}
		return NewTapeReader(stream, params), nil
	})

	return r
}

func (r *Registry) register(id, source string, f service.Factory) {
	r.entries[id] = entry{source: source, factory: f}
}

// Resolve returns the factory for id.
func (r *Registry) Resolve(id string) (service.Factory, error) {
	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("unknown scanner %q", id)
	}
	return e.factory, nil
}

// Source returns the scanner's source text for contract detection.
func (r *Registry) Source(id string) (string, error) {
	e, ok := r.entries[id]
	if !ok {
		return "", fmt.Errorf("no source for scanner %q", id)
	}
	return e.source, nil
}

// IDs lists the catalog in stable order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

var _ service.Registry = (*Registry)(nil)

func floatParam(params map[string]interface{}, key string, def float64) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

func intParam(params map[string]interface{}, key string, def int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

func durationParam(params map[string]interface{}, key string, def time.Duration) time.Duration {
	switch v := params[key].(type) {
	case time.Duration:
		return v
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		return def
	case int:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	default:
		return def
	}
}
