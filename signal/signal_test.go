package signal

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veblen-group/kuma-core/chainmeta"
	"github.com/veblen-group/kuma-core/depthtable"
	"github.com/veblen-group/kuma-core/token"
)

func mustPair(t *testing.T) token.Pair {
	t.Helper()
	a, err := token.New("A", []byte{0x01}, 18)
	require.NoError(t, err)
	b, err := token.New("B", []byte{0x02}, 18)
	require.NoError(t, err)
	pair, err := token.NewPair(a, b)
	require.NoError(t, err)
	return pair
}

func TestBuild_ComputesSurplusAndExpectedProfit(t *testing.T) {
	pair := mustPair(t)
	slowChain := chainmeta.New("ethereum", 0)
	fastChain := chainmeta.New("arbitrum", 0)

	slow := Leg{
		Chain:  slowChain,
		Pair:   pair,
		Height: 100,
		PoolID: "slow-pool",
		Sim: depthtable.SwapSim{
			TokenIn:   pair.TokenA(),
			TokenOut:  pair.TokenB(),
			AmountIn:  big.NewInt(1000),
			AmountOut: big.NewInt(900),
			GasCost:   big.NewInt(21000),
		},
	}
	fast := Leg{
		Chain:  fastChain,
		Pair:   pair,
		Height: 500,
		PoolID: "fast-pool",
		Sim: depthtable.SwapSim{
			TokenIn:   pair.TokenB(),
			TokenOut:  pair.TokenA(),
			AmountIn:  big.NewInt(880),
			AmountOut: big.NewInt(1100),
			GasCost:   big.NewInt(21000),
		},
	}

	sig, err := Build(slow, fast, 25, 25)
	require.NoError(t, err)

	assert.Equal(t, big.NewInt(100), sig.SurplusA) // 1100 - 1000
	assert.Equal(t, big.NewInt(20), sig.SurplusB)   // 900 - 880
	assert.True(t, sig.ExpectedProfitA.Sign() >= 0)
	assert.True(t, sig.ExpectedProfitB.Sign() >= 0)
}

func TestBuild_NegativeSurplusFails(t *testing.T) {
	pair := mustPair(t)
	chain := chainmeta.New("ethereum", 0)

	slow := Leg{
		Chain: chain, Pair: pair, PoolID: "slow-pool",
		Sim: depthtable.SwapSim{AmountIn: big.NewInt(1000), AmountOut: big.NewInt(900)},
	}
	fast := Leg{
		Chain: chain, Pair: pair, PoolID: "fast-pool",
		// fast.amount_out (500) < slow.amount_in (1000) -> surplus_a negative.
		Sim: depthtable.SwapSim{AmountIn: big.NewInt(880), AmountOut: big.NewInt(500)},
	}

	_, err := Build(slow, fast, 25, 25)
	assert.ErrorIs(t, err, ErrNegativeSurplus)
}

func TestLess_ComparesLexicographically(t *testing.T) {
	lower := Signal{ExpectedProfitA: big.NewInt(1), ExpectedProfitB: big.NewInt(100)}
	higher := Signal{ExpectedProfitA: big.NewInt(2), ExpectedProfitB: big.NewInt(0)}
	assert.True(t, lower.Less(higher))
	assert.False(t, higher.Less(lower))

	tieA := Signal{ExpectedProfitA: big.NewInt(5), ExpectedProfitB: big.NewInt(1)}
	tieAHigherB := Signal{ExpectedProfitA: big.NewInt(5), ExpectedProfitB: big.NewInt(2)}
	assert.True(t, tieA.Less(tieAHigherB))
}
