package scanners

import (
	"context"
	"time"

	"ScanRunner/internal/domain/repository"
)

// Breakout scans the whole universe in one pass, flagging symbols whose
// last close cleared the highest high of the preceding window. Results
// come back columnar, one row per breakout.
type Breakout struct {
	data   repository.MarketData
	window int
}

func NewBreakout(data repository.MarketData, params map[string]interface{}) *Breakout {
	return &Breakout{
		data:   data,
		window: intParam(params, "window", 20),
	}
}

func (s *Breakout) ScanAll(ctx context.Context, symbols []string, start, end time.Time) (interface{}, error) {
	cols := map[string][]interface{}{
		"ticker":         {},
		"date":           {},
		"close":          {},
		"breakout_level": {},
		"confidence":     {},
	}

	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return cols, err
		}
		candles, err := s.data.Candles(ctx, symbol, start, end)
		if err != nil {
			// one symbol's fetch failure does not sink the batch
			continue
		}
		if len(candles) < s.window+1 {
			continue
		}

		last := candles[len(candles)-1]
		var level float64
		for _, c := range candles[len(candles)-1-s.window : len(candles)-1] {
			if c.High > level {
				level = c.High
			}
		}
		if level == 0 || last.Close <= level {
			continue
		}

		conf := (last.Close - level) / level * 20
		if conf > 1 {
			conf = 1
		}
		cols["ticker"] = append(cols["ticker"], symbol)
		cols["date"] = append(cols["date"], last.Day.Format("2006-01-02"))
		cols["close"] = append(cols["close"], last.Close)
		cols["breakout_level"] = append(cols["breakout_level"], level)
		cols["confidence"] = append(cols["confidence"], conf)
	}
	return cols, nil
}
