// Package cpamm implements poolstate.State for a constant-product AMM
// (x*y=k with a basis-point fee), the reference pool model used by the
// search and precompute tests. Adapted from the fee/reserve arithmetic in
// protocols/uniswapv2/calculator/calculator.go, generalized from uint64
// token IDs to token.Token values.
package cpamm

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/veblen-group/kuma-core/poolstate"
	"github.com/veblen-group/kuma-core/token"
)

var (
	basisPointDivisor = big.NewInt(10000)

	// ErrTokenMismatch is returned when the requested swap doesn't touch
	// this pool's two tokens.
	ErrTokenMismatch = errors.New("cpamm: token mismatch")
	// ErrInsufficientLiquidity is returned when a reserve is non-positive.
	ErrInsufficientLiquidity = errors.New("cpamm: insufficient liquidity")
)

// Pool is an immutable snapshot of one constant-product pool's reserves.
// GasCost is a fixed per-swap estimate, since the core treats gas as an
// opaque simulator output rather than something it derives itself.
type Pool struct {
	Token0, Token1 token.Token
	Reserve0       *big.Int
	Reserve1       *big.Int
	FeeBps         int64
	GasCost        *big.Int
}

// New constructs a Pool, defensively copying the reserves.
func New(token0, token1 token.Token, reserve0, reserve1 *big.Int, feeBps int64, gasCost *big.Int) *Pool {
	return &Pool{
		Token0:   token0,
		Token1:   token1,
		Reserve0: new(big.Int).Set(reserve0),
		Reserve1: new(big.Int).Set(reserve1),
		FeeBps:   feeBps,
		GasCost:  new(big.Int).Set(gasCost),
	}
}

var _ poolstate.State = (*Pool)(nil)

func (p *Pool) reserves(tokenIn, tokenOut token.Token) (reserveIn, reserveOut *big.Int, err error) {
	switch {
	case tokenIn.Equal(p.Token0) && tokenOut.Equal(p.Token1):
		return p.Reserve0, p.Reserve1, nil
	case tokenIn.Equal(p.Token1) && tokenOut.Equal(p.Token0):
		return p.Reserve1, p.Reserve0, nil
	default:
		return nil, nil, fmt.Errorf("%w: pool does not trade %s -> %s", ErrTokenMismatch, tokenIn, tokenOut)
	}
}

// GetAmountOut implements poolstate.State using the standard
// fee-adjusted constant-product formula.
func (p *Pool) GetAmountOut(amountIn *big.Int, tokenIn, tokenOut token.Token) (*big.Int, *big.Int, error) {
	if amountIn == nil || amountIn.Sign() < 0 {
		return nil, nil, fmt.Errorf("cpamm: amountIn must be non-nil and non-negative")
	}

	reserveIn, reserveOut, err := p.reserves(tokenIn, tokenOut)
	if err != nil {
		return nil, nil, err
	}
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, nil, ErrInsufficientLiquidity
	}

	feeMultiplier := new(big.Int).Sub(basisPointDivisor, big.NewInt(p.FeeBps))
	amountInWithFee := new(big.Int).Mul(amountIn, feeMultiplier)

	numerator := new(big.Int).Mul(reserveOut, amountInWithFee)
	denominator := new(big.Int).Mul(reserveIn, basisPointDivisor)
	denominator.Add(denominator, amountInWithFee)

	if denominator.Sign() == 0 {
		return nil, nil, fmt.Errorf("cpamm: zero denominator")
	}

	amountOut := new(big.Int).Div(numerator, denominator)
	return amountOut, new(big.Int).Set(p.GasCost), nil
}

// SpotPrice returns reserveOut/reserveIn as a float64, the instantaneous
// marginal price ignoring fees, matching make_sorted_spot_prices's
// treatment of spot price as midprice in original_source.
func (p *Pool) SpotPrice(tokenIn, tokenOut token.Token) (float64, error) {
	reserveIn, reserveOut, err := p.reserves(tokenIn, tokenOut)
	if err != nil {
		return 0, err
	}
	if reserveIn.Sign() <= 0 {
		return 0, ErrInsufficientLiquidity
	}
	in := new(big.Float).SetInt(reserveIn)
	out := new(big.Float).SetInt(reserveOut)
	price, _ := new(big.Float).Quo(out, in).Float64()
	return price, nil
}
