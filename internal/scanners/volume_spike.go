package scanners

import (
	"context"
	"math"
	"time"

	"ScanRunner/internal/domain/repository"
)

// VolumeSpike flags symbols whose latest session volume sits far above
// their recent average, measured as a z-score over the lookback window.
type VolumeSpike struct {
	data      repository.MarketData
	threshold float64
	lookback  int
}

func NewVolumeSpike(data repository.MarketData, params map[string]interface{}) *VolumeSpike {
	return &VolumeSpike{
		data:      data,
		threshold: floatParam(params, "threshold", 2.5),
		lookback:  intParam(params, "lookback", 20),
	}
}

func (s *VolumeSpike) ScanTicker(ctx context.Context, symbol string, start, end time.Time) (interface{}, error) {
	candles, err := s.data.Candles(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	if len(candles) < s.lookback+1 {
		return nil, nil
	}

	last := candles[len(candles)-1]
	window := candles[len(candles)-1-s.lookback : len(candles)-1]

	var sum float64
	for _, c := range window {
		sum += c.Volume
	}
	mean := sum / float64(len(window))

	var sq float64
	for _, c := range window {
		d := c.Volume - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(window)))
	if std == 0 {
		return nil, nil
	}

	z := (last.Volume - mean) / std
	if z < s.threshold {
		return nil, nil
	}

	conf := z / (s.threshold * 2)
	if conf > 1 {
		conf = 1
	}
	return map[string]interface{}{
		"ticker":        symbol,
		"date":          last.Day.Format("2006-01-02"),
		"volume":        last.Volume,
		"avg_volume":    mean,
		"volume_zscore": z,
		"confidence":    conf,
	}, nil
}
