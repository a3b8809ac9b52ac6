// Package collector declares the upstream collector contract (C10): the
// shape kuma-core expects from whatever component decodes on-chain state
// and turns it into snapshot.Update values. Interfaces only, matching
// chains.Client / chains.Logger in the teacher — the core depends on this
// shape, never on a concrete transport.
package collector

import (
	"context"

	"github.com/veblen-group/kuma-core/pairstream"
	"github.com/veblen-group/kuma-core/token"
)

// Collector is what a single chain's ingestion component must supply.
// Snapshots exposes the chain-wide latest-value publisher; PairStream
// projects it down to one token pair; Shutdown cancels the underlying
// ingestion task and returns only after it has exited.
type Collector interface {
	Snapshots() *pairstream.Publisher
	PairStream(pair token.Pair) (*pairstream.Stream, error)
	Shutdown(ctx context.Context) error
}
