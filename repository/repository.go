// Package repository declares the persistence hand-off the strategy
// scheduler writes through whenever it emits a Signal or observes a
// precompute's min/max spot prices change. The core only specifies these
// tuple shapes; storage is out of scope, matching
// crates/core/src/database/{signals,spot_prices}.rs in original_source,
// which this package's method shapes are grounded on (the Rust types are
// not ported, only the write contract).
package repository

import (
	"context"

	"github.com/veblen-group/kuma-core/chainmeta"
	"github.com/veblen-group/kuma-core/poolid"
	"github.com/veblen-group/kuma-core/signal"
	"github.com/veblen-group/kuma-core/token"
)

// SignalWriter persists an emitted Signal. Implementations decide their own
// storage schema; the core only guarantees it is called once per emission,
// after the signal has been published on the outbound broadcast bus.
type SignalWriter interface {
	WriteSignal(ctx context.Context, sig signal.Signal) error
}

// SpotPriceWriter persists a changed spot-price extrema observation,
// reported whenever a fresh Precompute's minimum or maximum sorted spot
// price differs from the previous one for the same chain and pair.
type SpotPriceWriter interface {
	WriteSpotPriceExtrema(ctx context.Context, chain chainmeta.ChainName, pair token.Pair, height uint64, minID poolid.ID, minPrice float64, maxID poolid.ID, maxPrice float64) error
}
