// Package api declares the wire shape a read API would serve over stored
// signals and spot prices. No HTTP handlers live here — serving them is
// explicitly out of scope — but repository implementations and any future
// API layer need to agree on a shape, the same way original_source splits
// crates/api/src/models.rs from crates/api/src/routes/. JSON tags follow
// the teacher's engine package convention (camelCase, omitempty on
// optional fields).
package api

import "github.com/veblen-group/kuma-core/signal"

// LegDTO is the wire representation of one leg of a cross-chain signal.
type LegDTO struct {
	Chain     string `json:"chain"`
	TokenA    string `json:"tokenA"`
	TokenB    string `json:"tokenB"`
	Height    uint64 `json:"height"`
	PoolID    string `json:"poolId"`
	AmountIn  string `json:"amountIn"`
	AmountOut string `json:"amountOut"`
}

// SignalDTO is the wire representation of an emitted Signal.
type SignalDTO struct {
	Slow LegDTO `json:"slow"`
	Fast LegDTO `json:"fast"`

	SurplusA string `json:"surplusA"`
	SurplusB string `json:"surplusB"`

	ExpectedProfitA string `json:"expectedProfitA"`
	ExpectedProfitB string `json:"expectedProfitB"`

	MaxSlippageBps            int64 `json:"maxSlippageBps"`
	CongestionRiskDiscountBps int64 `json:"congestionRiskDiscountBps"`
}

// SpotPriceDTO is the wire representation of a changed spot-price extrema
// observation for one chain and pair at one height.
type SpotPriceDTO struct {
	Chain  string `json:"chain"`
	TokenA string `json:"tokenA"`
	TokenB string `json:"tokenB"`
	Height uint64 `json:"height"`

	MinPoolID string  `json:"minPoolId"`
	MinPrice  float64 `json:"minPrice"`
	MaxPoolID string  `json:"maxPoolId"`
	MaxPrice  float64 `json:"maxPrice"`
}

func legToDTO(leg signal.Leg) LegDTO {
	return LegDTO{
		Chain:     string(leg.Chain.Name),
		TokenA:    leg.Pair.TokenA().Symbol,
		TokenB:    leg.Pair.TokenB().Symbol,
		Height:    leg.Height,
		PoolID:    string(leg.PoolID),
		AmountIn:  leg.Sim.AmountIn.String(),
		AmountOut: leg.Sim.AmountOut.String(),
	}
}

// FromSignal converts a signal.Signal into its wire representation.
func FromSignal(sig signal.Signal) SignalDTO {
	return SignalDTO{
		Slow:                      legToDTO(sig.Slow),
		Fast:                      legToDTO(sig.Fast),
		SurplusA:                  sig.SurplusA.String(),
		SurplusB:                  sig.SurplusB.String(),
		ExpectedProfitA:           sig.ExpectedProfitA.String(),
		ExpectedProfitB:           sig.ExpectedProfitB.String(),
		MaxSlippageBps:            sig.MaxSlippageBps,
		CongestionRiskDiscountBps: sig.CongestionRiskDiscountBps,
	}
}
