package scanners

import (
	"context"
	"sort"
	"time"

	"ScanRunner/internal/domain/repository"
)

// MarketMomentum ranks the whole market by close-to-close move between
// the two ends of the range. It fetches grouped daily bars itself, so it
// never needs a symbol list.
type MarketMomentum struct {
	data       repository.MarketData
	topN       int
	minGainPct float64
}

func (s *MarketMomentum) ScanMarket(ctx context.Context, start, end time.Time) (interface{}, error) {
	first, err := s.data.GroupedDaily(ctx, start)
	if err != nil {
		return nil, err
	}
	last, err := s.data.GroupedDaily(ctx, end)
	if err != nil {
		return nil, err
	}

	base := make(map[string]float64, len(first))
	for _, c := range first {
		if c.Close > 0 {
			base[c.Symbol] = c.Close
		}
	}

	type mover struct {
		symbol  string
		date    string
		gainPct float64
		close   float64
	}
	var movers []mover
	for _, c := range last {
		open, ok := base[c.Symbol]
		if !ok {
			continue
		}
		gain := (c.Close - open) / open * 100
		if gain < s.minGainPct {
			continue
		}
		movers = append(movers, mover{
			symbol:  c.Symbol,
			date:    c.Day.Format("2006-01-02"),
			gainPct: gain,
			close:   c.Close,
		})
	}
	sort.Slice(movers, func(i, j int) bool { return movers[i].gainPct > movers[j].gainPct })
	if len(movers) > s.topN {
		movers = movers[:s.topN]
	}

	out := make([]map[string]interface{}, 0, len(movers))
	for rank, m := range movers {
		conf := m.gainPct / (s.minGainPct * 4)
		if conf > 1 {
			conf = 1
		}
		out = append(out, map[string]interface{}{
			"ticker":     m.symbol,
			"date":       m.date,
			"gain_pct":   m.gainPct,
			"close":      m.close,
			"rank":       rank + 1,
			"confidence": conf,
		})
	}
	return out, nil
}

func NewMarketMomentum(data repository.MarketData, params map[string]interface{}) *MarketMomentum {
	return &MarketMomentum{
		data:       data,
		topN:       intParam(params, "top_n", 25),
		minGainPct: floatParam(params, "min_gain_pct", 5.0),
	}
}
