package scanners

import (
	"context"
	"math"
	"time"

	"ScanRunner/internal/domain/models"
	"ScanRunner/internal/domain/repository"
)

// Gap flags symbols that opened away from the prior session's close by
// more than min_gap_pct, in either direction.
type Gap struct {
	data      repository.MarketData
	minGapPct float64
}

func NewGap(data repository.MarketData, params map[string]interface{}) *Gap {
	return &Gap{
		data:      data,
		minGapPct: floatParam(params, "min_gap_pct", 3.0),
	}
}

func (s *Gap) ScanTicker(ctx context.Context, symbol string, start, end time.Time) (interface{}, error) {
	candles, err := s.data.Candles(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	if len(candles) < 2 {
		return nil, nil
	}

	prev := candles[len(candles)-2]
	last := candles[len(candles)-1]
	if prev.Close == 0 {
		return nil, nil
	}

	gapPct := (last.Open - prev.Close) / prev.Close * 100
	if math.Abs(gapPct) < s.minGapPct {
		return nil, nil
	}

	direction := "up"
	if gapPct < 0 {
		direction = "down"
	}
	conf := math.Abs(gapPct) / (s.minGapPct * 3)
	if conf > 1 {
		conf = 1
	}
	return models.ScannerSignal{
		Ticker: symbol,
		Date:   last.Day.Format(models.DateLayout),
		Data: map[string]interface{}{
			"gap_pct":    gapPct,
			"direction":  direction,
			"prev_close": prev.Close,
			"open":       last.Open,
		},
		Confidence: conf,
	}, nil
}
