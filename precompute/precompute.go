// Package precompute builds the per-slow-block Precompute: a snapshot's
// worth of PoolStepTables plus a sorted spot-price list, keyed to the pair
// the strategy is trading. The reuse of tables for unmodified pools
// mirrors differ.StateDiffer.Diff's central loop in the teacher, which
// carries forward unchanged protocol entries between two successive states
// instead of rebuilding them.
package precompute

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/veblen-group/kuma-core/depthtable"
	"github.com/veblen-group/kuma-core/poolid"
	"github.com/veblen-group/kuma-core/snapshot"
	"github.com/veblen-group/kuma-core/token"

	"math/big"
)

// Logger is the narrow structured-logging contract shared across kuma-core.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SpotPriceEntry is one (pool id, price) pair in the sorted list.
type SpotPriceEntry struct {
	PoolID poolid.ID
	Price  float64
}

// Precompute is the latest precomputed view of one pair on one chain, per
// spec.md section 3. At most one is live per chain at a time; a fresh one
// replaces it atomically in the caller (see strategy).
type Precompute struct {
	Height           uint64
	Pair             token.Pair
	PoolSims         map[poolid.ID]depthtable.PoolStepTable
	SortedSpotPrices []SpotPriceEntry
}

// Build constructs a Precompute from snap, reusing prior's PoolStepTables
// for every pool id in snap.Unmodified, and building fresh tables for
// snap.Modified ids present in snap.States. A pool whose table fails to
// build is logged and omitted; it does not abort the rest of the build, per
// spec.md section 4.4 step 2.
//
// inventoryA and inventoryB are the per-side trade-sizing inventory passed
// through to depthtable.Build unchanged across every pool.
func Build(
	prior *Precompute,
	snap snapshot.PairSnapshot,
	pair token.Pair,
	steps int,
	inventoryA, inventoryB *big.Int,
	logger Logger,
	buildDuration prometheus.Observer,
	poolFailures prometheus.Counter,
) *Precompute {
	if buildDuration != nil {
		timer := prometheus.NewTimer(buildDuration)
		defer timer.ObserveDuration()
	}

	sims := make(map[poolid.ID]depthtable.PoolStepTable, len(snap.States))

	if prior != nil {
		snap.Unmodified.Each(func(id poolid.ID) bool {
			if table, ok := prior.PoolSims[id]; ok {
				sims[id] = table
			}
			return false
		})
	}

	snap.Modified.Each(func(id poolid.ID) bool {
		pool, ok := snap.States[id]
		if !ok {
			return false
		}
		table, err := depthtable.Build(pair, steps, inventoryA, inventoryB, pool)
		if err != nil {
			if logger != nil {
				logger.Debug("precompute: omitting pool, depth table build failed", "pool_id", string(id), "error", err)
			}
			if poolFailures != nil {
				poolFailures.Inc()
			}
			return false
		}
		sims[id] = table
		return false
	})

	sorted := SortedSpotPrices(snap, pair, logger)

	return &Precompute{
		Height:           snap.Height,
		Pair:             pair,
		PoolSims:         sims,
		SortedSpotPrices: sorted,
	}
}

// SortedSpotPrices computes spot_price(token_a, token_b) for every pool in
// snap, dropping pools whose quote fails, and returns the list sorted
// ascending by price, per spec.md section 4.4 step 3. Exported so the
// search package can apply the identical projection to a fast-chain
// snapshot.
func SortedSpotPrices(snap snapshot.PairSnapshot, pair token.Pair, logger Logger) []SpotPriceEntry {
	entries := make([]SpotPriceEntry, 0, len(snap.States))
	for id, pool := range snap.States {
		price, err := pool.SpotPrice(pair.TokenA(), pair.TokenB())
		if err != nil {
			if logger != nil {
				logger.Debug("precompute: dropping pool from spot-price list", "pool_id", string(id), "error", err)
			}
			continue
		}
		entries = append(entries, SpotPriceEntry{PoolID: id, Price: price})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Price < entries[j].Price
	})

	return entries
}
