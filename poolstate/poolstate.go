// Package poolstate defines the capability boundary the core relies on to
// simulate swaps against a liquidity pool, without ever inspecting what kind
// of AMM the pool actually is. Implementations dispatch behind this
// boundary, not above it (spec.md section 9, "Capability polymorphism").
package poolstate

import (
	"math/big"

	"github.com/veblen-group/kuma-core/token"
)

// State is an opaque, immutable, cheaply-shareable per-pool simulator. Both
// operations are pure reads and may fail, e.g. on insufficient liquidity or
// an unsupported token pair.
type State interface {
	// GetAmountOut simulates swapping amountIn units of tokenIn for
	// tokenOut, returning the simulated output and the gas cost of
	// executing the swap.
	GetAmountOut(amountIn *big.Int, tokenIn, tokenOut token.Token) (amountOut *big.Int, gasCost *big.Int, err error)

	// SpotPrice returns the instantaneous marginal tokenIn->tokenOut price.
	SpotPrice(tokenIn, tokenOut token.Token) (float64, error)
}

// Meta exposes the descriptive, immutable facts about a pool that the core
// needs to know without asking the simulator: at minimum, its token list.
type Meta interface {
	Tokens() []token.Token
}

// BasicMeta is a ready-to-use Meta backed by a fixed token list.
type BasicMeta struct {
	PoolTokens []token.Token
}

// Tokens implements Meta.
func (m BasicMeta) Tokens() []token.Token { return m.PoolTokens }
