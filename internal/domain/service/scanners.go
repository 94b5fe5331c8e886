package service

import (
	"context"
	"time"
)

// Scanner entry-point contracts. A scanner implementation satisfies one or
// more of these narrow interfaces; the contract detector decides from its
// source which one drives execution. This closed set is the uniform shape
// behind which arbitrary entry-point heterogeneity is hidden.

// TickerScanner is invoked once per symbol.
type TickerScanner interface {
	ScanTicker(ctx context.Context, symbol string, start, end time.Time) (interface{}, error)
}

// BatchScanner is invoked exactly once for the whole universe.
type BatchScanner interface {
	ScanAll(ctx context.Context, symbols []string, start, end time.Time) (interface{}, error)
}

// MarketScanner performs its own market-wide fetch and iteration; it is
// invoked exactly once and never handed a symbol list.
type MarketScanner interface {
	ScanMarket(ctx context.Context, start, end time.Time) (interface{}, error)
}

// StreamScanner runs cooperatively, emitting raw results on a channel it
// closes when done. The adapter bridges the channel from a dedicated
// goroutine so callers already running inside the engine cannot deadlock.
type StreamScanner interface {
	Run(ctx context.Context) (<-chan interface{}, error)
}

// Closer is optionally implemented by scanners that hold resources.
type Closer interface {
	Close() error
}

// Factory constructs one independent scanner instance from an injected
// parameter map. The map handed to the factory is already a private copy;
// factories must not retain references to caller state.
type Factory func(params map[string]interface{}) (interface{}, error)

// Registry resolves scanner ids to factories and source text.
type Registry interface {
	Resolve(id string) (Factory, error)
	Source(id string) (string, error)
	IDs() []string
}
