package search

import (
	"math/big"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veblen-group/kuma-core/chainmeta"
	"github.com/veblen-group/kuma-core/poolid"
	"github.com/veblen-group/kuma-core/poolstate"
	"github.com/veblen-group/kuma-core/poolstate/cpamm"
	"github.com/veblen-group/kuma-core/precompute"
	"github.com/veblen-group/kuma-core/snapshot"
	"github.com/veblen-group/kuma-core/token"
)

func mustPairTokens(t *testing.T) (a, b token.Token, pair token.Pair) {
	t.Helper()
	var err error
	a, err = token.New("A", []byte{0x01}, 18)
	require.NoError(t, err)
	b, err = token.New("B", []byte{0x02}, 18)
	require.NoError(t, err)
	pair, err = token.NewPair(a, b)
	require.NoError(t, err)
	return a, b, pair
}

func TestFind_CrossedPoolsProduceSignal(t *testing.T) {
	a, b, pair := mustPairTokens(t)

	// Slow pool: relatively cheap B (more B per A) so spot price a->b is high (2.0).
	slowPool := cpamm.New(a, b, big.NewInt(10_000), big.NewInt(20_000), 30, big.NewInt(21000))
	slowStates := map[poolid.ID]poolstate.State{"slow1": slowPool}
	slowSnap := snapshot.PairSnapshot{
		Height:     10,
		States:     slowStates,
		Metadata:   map[poolid.ID]poolstate.Meta{"slow1": poolstate.BasicMeta{PoolTokens: []token.Token{a, b}}},
		Modified:   mapset.NewThreadUnsafeSet[poolid.ID]("slow1"),
		Unmodified: mapset.NewThreadUnsafeSet[poolid.ID](),
	}
	pc := precompute.Build(nil, slowSnap, pair, 16, big.NewInt(1000), big.NewInt(1000), nil, nil, nil)

	// Fast pool: relatively expensive B (less B per A, price 0.5) so there's a spread.
	fastPool := cpamm.New(a, b, big.NewInt(10_000), big.NewInt(5_000), 30, big.NewInt(21000))
	fastStates := map[poolid.ID]poolstate.State{"fast1": fastPool}
	fastSnap := snapshot.PairSnapshot{
		Height:     20,
		States:     fastStates,
		Metadata:   map[poolid.ID]poolstate.Meta{"fast1": poolstate.BasicMeta{PoolTokens: []token.Token{a, b}}},
		Modified:   mapset.NewThreadUnsafeSet[poolid.ID]("fast1"),
		Unmodified: mapset.NewThreadUnsafeSet[poolid.ID](),
	}

	slowChain := chainmeta.New("ethereum", 0)
	fastChain := chainmeta.New("arbitrum", 0)

	params := Params{
		MaxSlippageBps:            25,
		CongestionRiskDiscountBps: 25,
		FastInventoryA:            big.NewInt(1_000_000),
		FastInventoryB:            big.NewInt(1_000_000),
	}

	sig, err := Find(pc, slowChain, fastSnap, fastChain, pair, params, nil)
	require.NoError(t, err)
	assert.Equal(t, poolid.ID("slow1"), sig.Slow.PoolID)
	assert.Equal(t, poolid.ID("fast1"), sig.Fast.PoolID)
}

func TestFind_NoSpotPricesOnEmptyFastSnapshot(t *testing.T) {
	a, b, pair := mustPairTokens(t)

	pool := cpamm.New(a, b, big.NewInt(10_000), big.NewInt(20_000), 30, big.NewInt(21000))
	slowStates := map[poolid.ID]poolstate.State{"slow1": pool}
	slowSnap := snapshot.PairSnapshot{
		Height:     1,
		States:     slowStates,
		Metadata:   map[poolid.ID]poolstate.Meta{"slow1": poolstate.BasicMeta{PoolTokens: []token.Token{a, b}}},
		Modified:   mapset.NewThreadUnsafeSet[poolid.ID]("slow1"),
		Unmodified: mapset.NewThreadUnsafeSet[poolid.ID](),
	}
	pc := precompute.Build(nil, slowSnap, pair, 16, big.NewInt(1000), big.NewInt(1000), nil, nil, nil)

	emptyFastSnap := snapshot.PairSnapshot{
		Height:     2,
		States:     map[poolid.ID]poolstate.State{},
		Metadata:   map[poolid.ID]poolstate.Meta{},
		Modified:   mapset.NewThreadUnsafeSet[poolid.ID](),
		Unmodified: mapset.NewThreadUnsafeSet[poolid.ID](),
	}

	slowChain := chainmeta.New("ethereum", 0)
	fastChain := chainmeta.New("arbitrum", 0)
	params := Params{
		MaxSlippageBps: 25, CongestionRiskDiscountBps: 25,
		FastInventoryA: big.NewInt(1_000_000), FastInventoryB: big.NewInt(1_000_000),
	}

	_, err := Find(pc, slowChain, emptyFastSnap, fastChain, pair, params, nil)
	assert.ErrorIs(t, err, ErrNoSpotPrices)
}

func TestFind_NoCrossedPoolsWhenPricesEqual(t *testing.T) {
	a, b, pair := mustPairTokens(t)

	pool := cpamm.New(a, b, big.NewInt(10_000), big.NewInt(10_000), 30, big.NewInt(21000))
	states := map[poolid.ID]poolstate.State{"p1": pool}
	meta := map[poolid.ID]poolstate.Meta{"p1": poolstate.BasicMeta{PoolTokens: []token.Token{a, b}}}

	slowSnap := snapshot.PairSnapshot{
		Height: 1, States: states, Metadata: meta,
		Modified: mapset.NewThreadUnsafeSet[poolid.ID]("p1"), Unmodified: mapset.NewThreadUnsafeSet[poolid.ID](),
	}
	pc := precompute.Build(nil, slowSnap, pair, 16, big.NewInt(1000), big.NewInt(1000), nil, nil, nil)

	fastSnap := snapshot.PairSnapshot{
		Height: 2, States: states, Metadata: meta,
		Modified: mapset.NewThreadUnsafeSet[poolid.ID]("p1"), Unmodified: mapset.NewThreadUnsafeSet[poolid.ID](),
	}

	slowChain := chainmeta.New("ethereum", 0)
	fastChain := chainmeta.New("arbitrum", 0)
	params := Params{
		MaxSlippageBps: 25, CongestionRiskDiscountBps: 25,
		FastInventoryA: big.NewInt(1_000_000), FastInventoryB: big.NewInt(1_000_000),
	}

	_, err := Find(pc, slowChain, fastSnap, fastChain, pair, params, nil)
	assert.ErrorIs(t, err, ErrNoCrossedPools)
}
