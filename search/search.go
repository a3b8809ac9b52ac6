// Package search implements the cross-chain single-hop signal search (C7):
// given a slow-chain Precompute and a fresh fast-chain PairSnapshot, find
// the pool pair with the largest spot-spread and binary-search the
// precomputed slow depth table for the single input size that maximizes
// expected profit. Grounded on examples/graph's findSwapPathsState /
// bigint-pool pattern for the scratch-allocation idiom, and on
// strategy/mod.rs's find_optimal_signal in original_source for the exact
// binary-search shape (kept identical here, not reinterpreted).
package search

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/veblen-group/kuma-core/chainmeta"
	"github.com/veblen-group/kuma-core/depthtable"
	"github.com/veblen-group/kuma-core/poolid"
	"github.com/veblen-group/kuma-core/poolstate"
	"github.com/veblen-group/kuma-core/precompute"
	"github.com/veblen-group/kuma-core/signal"
	"github.com/veblen-group/kuma-core/snapshot"
	"github.com/veblen-group/kuma-core/token"
)

var (
	// ErrNoSpotPrices is returned when the fast-chain snapshot has no pool
	// that can quote a spot price, per spec.md section 4.5 step 1.
	ErrNoSpotPrices = errors.New("search: no spot prices")
	// ErrNoCrossedPools is returned when no slow/fast pool pair has a
	// nonzero spread, per spec.md section 4.5 step 2.
	ErrNoCrossedPools = errors.New("search: no crossed pools")
	// ErrNoOptimalSignal is returned when the binary search never produces
	// a successful candidate, per spec.md section 4.5 step 3.
	ErrNoOptimalSignal = errors.New("search: no optimal signal")
	// ErrInsufficientFastInventory is returned when the fast leg would
	// need more inventory than configured, per spec.md section 4.5.4 step 2.
	ErrInsufficientFastInventory = errors.New("search: insufficient fast inventory")
	// ErrFastSimFailed is returned when the fast leg simulation itself
	// fails, per spec.md section 4.5.4 step 4.
	ErrFastSimFailed = errors.New("search: fast leg simulation failed")
)

// Logger is the narrow structured-logging contract shared across kuma-core.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// scratch holds reusable *big.Int values for candidate builds. buildCandidate
// writes only fastAmountIn; minSlowOut is not used, since signal.Build
// computes its own discounted outputs. Reused across candidates the same way
// graph.go and protocols/uniswapv2/calculator pool scratch big.Ints instead
// of allocating on every hot-path call.
type scratch struct {
	fastAmountIn *big.Int
	minSlowOut   *big.Int
}

var scratchPool = sync.Pool{
	New: func() any {
		return &scratch{fastAmountIn: new(big.Int), minSlowOut: new(big.Int)}
	},
}

// Params bundles the strategy parameters a search runs with.
type Params struct {
	MaxSlippageBps            int64
	CongestionRiskDiscountBps int64
	FastInventoryA            *big.Int
	FastInventoryB            *big.Int
}

// direction is the slow leg's trading direction, picked by the sign of the
// slow/fast spot-price spread in step 2.
type direction int

const (
	slowAtoB direction = iota
	slowBtoA
)

// Find runs the full C7 search: sorted fast prices, crossed-pool detection,
// and a binary search over the winning pool pair's precomputed depth table.
func Find(
	pc *precompute.Precompute,
	slowChain chainmeta.Chain,
	fastSnap snapshot.PairSnapshot,
	fastChain chainmeta.Chain,
	fastPair token.Pair,
	params Params,
	logger Logger,
) (signal.Signal, error) {
	fastSorted := precompute.SortedSpotPrices(fastSnap, fastPair, logger)
	if len(fastSorted) == 0 {
		return signal.Signal{}, ErrNoSpotPrices
	}

	slowID, fastID, dir, found := findCrossedPools(pc.SortedSpotPrices, fastSorted)
	if !found {
		return signal.Signal{}, ErrNoCrossedPools
	}

	table, ok := pc.PoolSims[slowID]
	if !ok {
		return signal.Signal{}, fmt.Errorf("%w: slow pool %s has no depth table", ErrNoOptimalSignal, slowID)
	}
	var slowSims []depthtable.SwapSim
	if dir == slowAtoB {
		slowSims = table.AtoB
	} else {
		slowSims = table.BtoA
	}

	fastPool, ok := fastSnap.States[fastID]
	if !ok {
		return signal.Signal{}, fmt.Errorf("%w: fast pool %s has no state", ErrNoOptimalSignal, fastID)
	}

	fastInventory := params.FastInventoryA
	if dir == slowAtoB {
		fastInventory = params.FastInventoryB
	}

	best, err := binarySearch(slowSims, pc, slowID, slowChain, fastPool, fastID, fastChain, fastPair, fastSnap.Height, dir, fastInventory, params, logger)
	if err != nil {
		return signal.Signal{}, err
	}
	return best, nil
}

// findCrossedPools iterates slow prices highest-to-lowest and, for each,
// fast prices lowest-to-highest, returning the first pair with a nonzero
// spread plus the slow-leg direction the sign of that spread implies, per
// spec.md section 4.5 step 2.
func findCrossedPools(slowSorted, fastSorted []precompute.SpotPriceEntry) (slowID, fastID poolid.ID, dir direction, found bool) {
	for i := len(slowSorted) - 1; i >= 0; i-- {
		slowEntry := slowSorted[i]
		for _, fastEntry := range fastSorted {
			diff := slowEntry.Price - fastEntry.Price
			if diff == 0 {
				continue
			}
			if diff > 0 {
				return slowEntry.PoolID, fastEntry.PoolID, slowAtoB, true
			}
			return slowEntry.PoolID, fastEntry.PoolID, slowBtoA, true
		}
	}
	return "", "", 0, false
}

// binarySearch implements spec.md section 4.5 step 3 verbatim, including
// its asymmetry: best is only recorded when a head-to-head comparison picks
// mid+1 over mid, matching strategy/mod.rs's find_optimal_signal in
// original_source (this is not a bug to "fix" — translated as-is).
func binarySearch(
	slowSims []depthtable.SwapSim,
	pc *precompute.Precompute,
	slowID poolid.ID,
	slowChain chainmeta.Chain,
	fastPool poolstate.State,
	fastID poolid.ID,
	fastChain chainmeta.Chain,
	fastPair token.Pair,
	fastHeight uint64,
	dir direction,
	fastInventory *big.Int,
	params Params,
	logger Logger,
) (signal.Signal, error) {
	left, right := 0, len(slowSims)-1
	var best signal.Signal
	haveBest := false

	for left < right {
		mid := (left + right) / 2

		midSignal, err := buildCandidate(slowSims[mid], pc, slowID, slowChain, fastPool, fastID, fastChain, fastPair, fastHeight, dir, fastInventory, params, logger)
		if err != nil {
			if logger != nil {
				logger.Debug("search: mid candidate failed, narrowing left", "index", mid, "error", err)
			}
			right = mid - 1
			continue
		}

		nextSignal, err := buildCandidate(slowSims[mid+1], pc, slowID, slowChain, fastPool, fastID, fastChain, fastPair, fastHeight, dir, fastInventory, params, logger)
		if err != nil {
			if logger != nil {
				logger.Debug("search: mid+1 candidate failed, narrowing left", "index", mid+1, "error", err)
			}
			right = mid
			continue
		}

		if midSignal.Less(nextSignal) {
			best = nextSignal
			haveBest = true
			left = mid + 1
		} else {
			right = mid
		}
	}

	if !haveBest {
		return signal.Signal{}, ErrNoOptimalSignal
	}
	return best, nil
}

// buildCandidate implements spec.md section 4.5.4: derive the fast leg from
// a single slow SwapSim, simulate it, and assemble a Signal.
func buildCandidate(
	slowSim depthtable.SwapSim,
	pc *precompute.Precompute,
	slowID poolid.ID,
	slowChain chainmeta.Chain,
	fastPool poolstate.State,
	fastID poolid.ID,
	fastChain chainmeta.Chain,
	fastPair token.Pair,
	fastHeight uint64,
	dir direction,
	fastInventory *big.Int,
	params Params,
	logger Logger,
) (signal.Signal, error) {
	s := scratchPool.Get().(*scratch)
	defer scratchPool.Put(s)

	s.fastAmountIn.Set(depthtable.DiscountBps(slowSim.AmountOut, params.MaxSlippageBps))

	if fastInventory.Cmp(s.fastAmountIn) < 0 {
		return signal.Signal{}, fmt.Errorf("%w: have %s, need %s", ErrInsufficientFastInventory, fastInventory, s.fastAmountIn)
	}

	var fastTokenIn, fastTokenOut token.Token
	if dir == slowAtoB {
		fastTokenIn, fastTokenOut = fastPair.TokenB(), fastPair.TokenA()
	} else {
		fastTokenIn, fastTokenOut = fastPair.TokenA(), fastPair.TokenB()
	}

	fastAmountOut, fastGasCost, err := fastPool.GetAmountOut(s.fastAmountIn, fastTokenIn, fastTokenOut)
	if err != nil {
		return signal.Signal{}, fmt.Errorf("%w: %s", ErrFastSimFailed, err)
	}

	slowLeg := signal.Leg{
		Chain:  slowChain,
		Pair:   pc.Pair,
		Height: pc.Height,
		PoolID: slowID,
		Sim:    slowSim,
	}
	fastLeg := signal.Leg{
		Chain:  fastChain,
		Pair:   fastPair,
		Height: fastHeight,
		PoolID: fastID,
		Sim: depthtable.SwapSim{
			TokenIn:   fastTokenIn,
			TokenOut:  fastTokenOut,
			AmountIn:  new(big.Int).Set(s.fastAmountIn),
			AmountOut: fastAmountOut,
			GasCost:   fastGasCost,
		},
	}

	return signal.Build(slowLeg, fastLeg, params.MaxSlippageBps, params.CongestionRiskDiscountBps)
}
