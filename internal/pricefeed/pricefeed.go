package pricefeed

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Source tags where a quote came from.
type Source string

const (
	// SourceCoinbase marks a quote served by the live spot endpoint.
	SourceCoinbase Source = "COINBASE"
	// SourceSimulated marks a synthetic quote produced by the fallback walk.
	SourceSimulated Source = "SIMULATED"
)

// Quote is a single spot price observation.
type Quote struct {
	Price  decimal.Decimal
	Source Source
	At     time.Time
}

// Fetcher retrieves the current spot price. Implementations never return an
// error: on any failure they degrade to a synthetic quote derived from the
// last known price, so a broken feed cannot stall the caller.
type Fetcher interface {
	FetchSpot(ctx context.Context, last decimal.Decimal) Quote
}
