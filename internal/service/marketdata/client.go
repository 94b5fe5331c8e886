package marketdata

import (
	"context"
	"fmt"
	"time"

	"ScanRunner/internal/domain/repository"
	"ScanRunner/internal/service/ratelimit"
	"ScanRunner/pkg/cache"
	phttp "ScanRunner/pkg/http"
	"ScanRunner/pkg/logger"
	"ScanRunner/pkg/util"
)

const (
	restLimitKey = "marketdata:rest"
	dayLayout    = util.DayLayout
)

// Option configures Client.
type Option func(*Client)

// WithCache attaches a read-through cache for candle responses.
func WithCache(c cache.Service, candlesTTL, groupedTTL time.Duration) Option {
	return func(cl *Client) {
		cl.cache = c
		cl.candlesTTL = candlesTTL
		cl.groupedTTL = groupedTTL
	}
}

// WithRateLimit caps upstream request rate.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(cl *Client) {
		cl.rate = perSecond
		cl.burst = float64(burst)
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(cl *Client) { cl.log = log }
}

// Client fetches daily bars over the upstream REST API. It implements
// repository.MarketData for scanners that pull their own history.
type Client struct {
	http    *phttp.Client
	cache   cache.Service
	limiter *ratelimit.Limiter
	log     *logger.Logger

	baseURL string
	apiKey  string

	rate       float64
	burst      float64
	candlesTTL time.Duration
	groupedTTL time.Duration
}

func New(baseURL, apiKey string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		http:    phttp.NewClient(phttp.WithTimeout(timeout)),
		limiter: ratelimit.New(),
		baseURL: baseURL,
		apiKey:  apiKey,
		rate:    5,
		burst:   5,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type aggBar struct {
	Ticker string  `json:"T"`
	TsMs   int64   `json:"t"`
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
}

type aggResponse struct {
	Ticker  string   `json:"ticker"`
	Results []aggBar `json:"results"`
}

// Candles returns daily bars for one symbol over [start, end].
func (c *Client) Candles(ctx context.Context, symbol string, start, end time.Time) ([]repository.Candle, error) {
	key := cache.GenerateKeyWithParams("scanrunner:md:candles", symbol, util.DayString(start), util.DayString(end))
	var cached []repository.Candle
	if c.cache != nil {
		if err := c.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}

	if err := c.limiter.Wait(ctx, restLimitKey, c.burst, c.rate); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/1/day/%s/%s",
		c.baseURL, symbol, start.Format(dayLayout), end.Format(dayLayout))
	var resp aggResponse
	if err := c.http.SendAndParse(ctx, &phttp.RequestOptions{
		Method:      phttp.MethodGet,
		URL:         url,
		QueryParams: map[string][]string{"apiKey": {c.apiKey}, "adjusted": {"true"}},
	}, &resp); err != nil {
		return nil, fmt.Errorf("candles %s: %w", symbol, err)
	}

	out := make([]repository.Candle, 0, len(resp.Results))
	for _, b := range resp.Results {
		out = append(out, toCandle(symbol, b))
	}
	if c.cache != nil && len(out) > 0 {
		if err := c.cache.Set(ctx, key, out, c.candlesTTL); err != nil && c.log != nil {
			c.log.Warn("candle cache write failed", logger.String("symbol", symbol), logger.Error(err))
		}
	}
	return out, nil
}

// GroupedDaily returns one bar per symbol for the whole market on day.
func (c *Client) GroupedDaily(ctx context.Context, day time.Time) ([]repository.Candle, error) {
	key := cache.GenerateKey("scanrunner:md:grouped", util.DayString(day))
	var cached []repository.Candle
	if c.cache != nil {
		if err := c.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}

	if err := c.limiter.Wait(ctx, restLimitKey, c.burst, c.rate); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v2/aggs/grouped/locale/us/market/stocks/%s", c.baseURL, day.Format(dayLayout))
	var resp aggResponse
	if err := c.http.SendAndParse(ctx, &phttp.RequestOptions{
		Method:      phttp.MethodGet,
		URL:         url,
		QueryParams: map[string][]string{"apiKey": {c.apiKey}, "adjusted": {"true"}},
	}, &resp); err != nil {
		return nil, fmt.Errorf("grouped daily %s: %w", day.Format(dayLayout), err)
	}

	out := make([]repository.Candle, 0, len(resp.Results))
	for _, b := range resp.Results {
		out = append(out, toCandle(b.Ticker, b))
	}
	if c.cache != nil && len(out) > 0 {
		if err := c.cache.Set(ctx, key, out, c.groupedTTL); err != nil && c.log != nil {
			c.log.Warn("grouped cache write failed", logger.Error(err))
		}
	}
	return out, nil
}

func toCandle(symbol string, b aggBar) repository.Candle {
	return repository.Candle{
		Symbol: symbol,
		Day:    time.UnixMilli(b.TsMs).UTC(),
		Open:   b.Open,
		High:   b.High,
		Low:    b.Low,
		Close:  b.Close,
		Volume: b.Volume,
	}
}
