// Package signal defines the Signal value produced by a successful search
// (package search): a cross-chain single-hop arbitrage candidate with its
// surplus and expected-profit arithmetic. The checked-subtraction discipline
// follows protocols/uniswapv2/calculator/calculator.go's ErrInvalidAmount
// idiom, generalized to the two-stage (surplus, then discounted
// expected-profit) computation spec.md section 4.5.4 requires.
package signal

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/veblen-group/kuma-core/chainmeta"
	"github.com/veblen-group/kuma-core/depthtable"
	"github.com/veblen-group/kuma-core/poolid"
	"github.com/veblen-group/kuma-core/token"
)

// ErrNegativeSurplus is returned when either surplus component would be
// negative, per spec.md section 4.5.4 step 5.
var ErrNegativeSurplus = errors.New("signal: negative surplus")

// ErrNegativeExpectedProfit is returned when either expected-profit
// component would be negative, per spec.md section 4.5.4 step 6.
var ErrNegativeExpectedProfit = errors.New("signal: negative expected profit")

// Leg is one side of a cross-chain single-hop trade.
type Leg struct {
	Chain  chainmeta.Chain
	Pair   token.Pair
	Height uint64
	PoolID poolid.ID
	Sim    depthtable.SwapSim
}

// Signal is the typed result of a successful cross-chain single-hop search:
// a slow leg and a fast leg, the surplus each side would realize, the
// expected profit after both discounts, and the parameters the search ran
// with. All BigInt fields are guaranteed non-nil and non-negative; Build
// never returns a Signal whose subtractions failed.
type Signal struct {
	Slow                      Leg
	Fast                      Leg
	SurplusA                  *big.Int
	SurplusB                  *big.Int
	ExpectedProfitA           *big.Int
	ExpectedProfitB           *big.Int
	MaxSlippageBps            int64
	CongestionRiskDiscountBps int64
}

// Build assembles a Signal from a slow leg and the matching fast leg's
// simulated output, per spec.md section 4.5.4 steps 5-7. The amount the fast
// leg spent is read from fast.Sim.AmountIn, which the caller has already
// slippage-discounted and inventory-checked.
func Build(slow, fast Leg, maxSlippageBps, congestionRiskDiscountBps int64) (Signal, error) {
	surplusA, err := depthtable.Sub(fast.Sim.AmountOut, slow.Sim.AmountIn)
	if err != nil {
		return Signal{}, fmt.Errorf("%w: %s", ErrNegativeSurplus, err)
	}
	surplusB, err := depthtable.Sub(slow.Sim.AmountOut, fast.Sim.AmountIn)
	if err != nil {
		return Signal{}, fmt.Errorf("%w: %s", ErrNegativeSurplus, err)
	}

	minSlowOut := depthtable.DiscountBps(slow.Sim.AmountOut, maxSlippageBps)
	minFastOut := depthtable.DiscountBps(fast.Sim.AmountOut, maxSlippageBps)

	minSurplusA, err := depthtable.Sub(minFastOut, slow.Sim.AmountIn)
	if err != nil {
		return Signal{}, fmt.Errorf("%w: %s", ErrNegativeExpectedProfit, err)
	}
	minSurplusB, err := depthtable.Sub(minSlowOut, fast.Sim.AmountIn)
	if err != nil {
		return Signal{}, fmt.Errorf("%w: %s", ErrNegativeExpectedProfit, err)
	}

	expectedProfitA := depthtable.DiscountBps(minSurplusA, congestionRiskDiscountBps)
	expectedProfitB := depthtable.DiscountBps(minSurplusB, congestionRiskDiscountBps)

	return Signal{
		Slow:                      slow,
		Fast:                      fast,
		SurplusA:                  surplusA,
		SurplusB:                  surplusB,
		ExpectedProfitA:           expectedProfitA,
		ExpectedProfitB:           expectedProfitB,
		MaxSlippageBps:            maxSlippageBps,
		CongestionRiskDiscountBps: congestionRiskDiscountBps,
	}, nil
}

// Less compares expected profit lexicographically by (a, b), the natural
// product order the spec calls out as equivalent here since both
// components scale together.
func (s Signal) Less(other Signal) bool {
	if cmp := s.ExpectedProfitA.Cmp(other.ExpectedProfitA); cmp != 0 {
		return cmp < 0
	}
	return s.ExpectedProfitB.Cmp(other.ExpectedProfitB) < 0
}

// String renders a one-line summary, the Go equivalent of the Display impl
// on the original Rust Signal type.
func (s Signal) String() string {
	return fmt.Sprintf(
		"signal(slow=%s@%s#%d fast=%s@%s#%d surplus=(%s,%s) expected_profit=(%s,%s))",
		s.Slow.PoolID, s.Slow.Chain.Name, s.Slow.Height,
		s.Fast.PoolID, s.Fast.Chain.Name, s.Fast.Height,
		s.SurplusA, s.SurplusB,
		s.ExpectedProfitA, s.ExpectedProfitB,
	)
}
