// Package depthtable builds the per-pool depth table (PoolStepTable): a
// grid of simulated swap outputs at uniformly spaced input sizes, in both
// directions across a pair. Construction follows the grid usage in
// protocols/uniswapv2/calculator/calculator.go, generalized from that file's
// fixed constant-product formula to the opaque poolstate.State capability.
// Each grid point allocates its own amount_in big.Int; no scratch values
// are pooled.
package depthtable

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/veblen-group/kuma-core/poolstate"
	"github.com/veblen-group/kuma-core/token"
)

// ErrNegativeAmount is returned wherever a subtraction over amounts would
// go negative; per spec.md section 9, amounts are ontologically
// non-negative, so "would be negative" is an error, not a wraparound.
var ErrNegativeAmount = errors.New("depthtable: amount subtraction would be negative")

// Sub computes a-b, returning ErrNegativeAmount if the result would be
// negative. Shared by every package that needs a checked big.Int
// subtraction over amounts.
func Sub(a, b *big.Int) (*big.Int, error) {
	if a.Cmp(b) < 0 {
		return nil, fmt.Errorf("%w: %s - %s", ErrNegativeAmount, a, b)
	}
	return new(big.Int).Sub(a, b), nil
}

var bpsDivisor = big.NewInt(10000)

// DiscountBps computes amount * (10000-bps) / 10000, truncating integer
// division, the same bps-discount idiom the slippage and congestion-risk
// haircuts both apply. Shared with the signal and search packages.
func DiscountBps(amount *big.Int, bps int64) *big.Int {
	multiplier := new(big.Int).Sub(bpsDivisor, big.NewInt(bps))
	out := new(big.Int).Mul(amount, multiplier)
	return out.Div(out, bpsDivisor)
}

// SwapSim is one simulated trade: spending AmountIn of TokenIn for
// AmountOut of TokenOut, at GasCost. Immutable once built.
type SwapSim struct {
	TokenIn   token.Token
	TokenOut  token.Token
	AmountIn  *big.Int
	AmountOut *big.Int
	GasCost   *big.Int
}

func simulate(pool poolstate.State, tokenIn, tokenOut token.Token, amountIn *big.Int) (SwapSim, error) {
	amountOut, gasCost, err := pool.GetAmountOut(amountIn, tokenIn, tokenOut)
	if err != nil {
		return SwapSim{}, err
	}
	return SwapSim{
		TokenIn:   tokenIn,
		TokenOut:  tokenOut,
		AmountIn:  new(big.Int).Set(amountIn),
		AmountOut: amountOut,
		GasCost:   gasCost,
	}, nil
}

// PoolStepTable is the depth table for one pool: ordered sequences of
// SwapSim in each direction over a grid of S uniformly spaced input sizes.
// amount_in is strictly increasing across the index in each direction.
type PoolStepTable struct {
	AtoB []SwapSim
	BtoA []SwapSim
}

// Build constructs a PoolStepTable for pair against pool, using steps
// grid points and (inventoryA, inventoryB) as the total size swept in each
// direction. Any intermediate simulation failure is fatal for the whole
// table, per spec.md section 4.3 -- callers decide whether to omit the
// pool entirely (see the precompute package).
func Build(pair token.Pair, steps int, inventoryA, inventoryB *big.Int, pool poolstate.State) (PoolStepTable, error) {
	if steps < 1 {
		return PoolStepTable{}, fmt.Errorf("depthtable: steps must be >= 1, got %d", steps)
	}

	atoB, err := buildDirection(pair.TokenA(), pair.TokenB(), steps, inventoryA, pool)
	if err != nil {
		return PoolStepTable{}, fmt.Errorf("depthtable: a->b: %w", err)
	}
	btoA, err := buildDirection(pair.TokenB(), pair.TokenA(), steps, inventoryB, pool)
	if err != nil {
		return PoolStepTable{}, fmt.Errorf("depthtable: b->a: %w", err)
	}

	return PoolStepTable{AtoB: atoB, BtoA: btoA}, nil
}

func buildDirection(tokenIn, tokenOut token.Token, steps int, inventory *big.Int, pool poolstate.State) ([]SwapSim, error) {
	step := new(big.Int).Div(inventory, big.NewInt(int64(steps)))
	sims := make([]SwapSim, 0, steps)

	for i := 1; i <= steps; i++ {
		amountIn := new(big.Int).Mul(step, big.NewInt(int64(i)))
		sim, err := simulate(pool, tokenIn, tokenOut, amountIn)
		if err != nil {
			return nil, fmt.Errorf("step %d (amount_in=%s): %w", i, amountIn, err)
		}
		sims = append(sims, sim)
	}

	return sims, nil
}
