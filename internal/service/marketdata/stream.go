package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ScanRunner/internal/domain/repository"

	"github.com/gorilla/websocket"
)

// Stream implements repository.QuoteStream over the upstream WebSocket
// feed. Stream-shaped scanners consume it through their Run channel.
type Stream struct {
	apiKey         string
	websocketURL   string
	symbols        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	conn      *websocket.Conn
	connected bool
}

func NewStream(apiKey, websocketURL string, symbols []string, reconnectDelay, pingInterval time.Duration) *Stream {
	return &Stream{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		symbols:        symbols,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect dials the WebSocket and subscribes to the configured symbols.
func (s *Stream) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", s.websocketURL, s.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("quote stream connect: %w", err)
	}
	s.conn = conn
	s.connected = true

	for _, sym := range s.symbols {
		msg := map[string]string{"type": "subscribe", "symbol": sym}
		if err := s.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", sym, err)
		}
	}
	return nil
}

type wsQuote struct {
	S string  `json:"s"`
	P float64 `json:"p"`
	V float64 `json:"v"`
	T int64   `json:"t"` // ms
}

type wsFrame struct {
	Type string    `json:"type"`
	Data []wsQuote `json:"data"`
}

// Read streams quotes as single-price candles plus a terminal error
// channel. Both channels close when the read loop ends.
func (s *Stream) Read(ctx context.Context) (<-chan repository.Candle, <-chan error) {
	quotes := make(chan repository.Candle, 1024)
	errs := make(chan error, 1)

	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if s.conn != nil {
					_ = s.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	go func() {
		defer close(quotes)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if s.conn == nil {
					errs <- fmt.Errorf("quote stream conn nil")
					return
				}
				_, b, err := s.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("quote stream read: %w", err)
					return
				}
				var frame wsFrame
				if err := json.Unmarshal(b, &frame); err != nil {
					// ignore non-quote frames
					continue
				}
				if frame.Type != "trade" {
					continue
				}
				for _, q := range frame.Data {
					c := repository.Candle{
						Symbol: q.S,
						Day:    time.UnixMilli(q.T).UTC(),
						Open:   q.P,
						High:   q.P,
						Low:    q.P,
						Close:  q.P,
						Volume: q.V,
					}
					select {
					case quotes <- c:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return quotes, errs
}

// Reconnect closes and re-establishes the subscription.
func (s *Stream) Reconnect(ctx context.Context) error {
	_ = s.Close()
	time.Sleep(s.reconnectDelay)
	return s.Connect(ctx)
}

// Close closes the WS connection.
func (s *Stream) Close() error {
	s.connected = false
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (s *Stream) IsConnected() bool { return s.connected }
