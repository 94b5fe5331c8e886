package scanners

import (
	"context"
	"time"

	"ScanRunner/internal/domain/repository"
)

// TapeReader watches the live quote stream and emits a signal whenever a
// symbol prints at least min_trades within the rolling window. It runs
// cooperatively: results arrive on the channel it returns, which closes
// when the stream ends or the context is cancelled.
type TapeReader struct {
	stream    repository.QuoteStream
	window    time.Duration
	minTrades int
}

func NewTapeReader(stream repository.QuoteStream, params map[string]interface{}) *TapeReader {
	return &TapeReader{
		stream:    stream,
		window:    durationParam(params, "window", 30*time.Second),
		minTrades: intParam(params, "min_trades", 50),
	}
}

type tapeState struct {
	count       int
	volume      float64
	notional    float64
	windowStart time.Time
}

func (s *TapeReader) Run(ctx context.Context) (<-chan interface{}, error) {
	if err := s.stream.Connect(ctx); err != nil {
		return nil, err
	}
	quotes, errs := s.stream.Read(ctx)
	out := make(chan interface{}, 64)

	go func() {
		defer close(out)
		states := make(map[string]*tapeState)
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-errs:
				if err != nil {
					return
				}
			case q, ok := <-quotes:
				if !ok {
					return
				}
				st := states[q.Symbol]
				now := q.Day
				if st == nil || now.Sub(st.windowStart) > s.window {
					st = &tapeState{windowStart: now}
					states[q.Symbol] = st
				}
				st.count++
				st.volume += q.Volume
				st.notional += q.Close * q.Volume
				if st.count < s.minTrades {
					continue
				}

				vwap := 0.0
				if st.volume > 0 {
					vwap = st.notional / st.volume
				}
				sig := map[string]interface{}{
					"ticker":      q.Symbol,
					"date":        now.Format("2006-01-02"),
					"trade_count": st.count,
					"volume":      st.volume,
					"vwap":        vwap,
				}
				states[q.Symbol] = &tapeState{windowStart: now}
				select {
				case out <- sig:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close releases the underlying stream connection.
func (s *TapeReader) Close() error { return s.stream.Close() }
