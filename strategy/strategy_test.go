package strategy

import (
	"context"
	"math/big"
	"testing"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veblen-group/kuma-core/chainmeta"
	"github.com/veblen-group/kuma-core/pairstream"
	"github.com/veblen-group/kuma-core/poolid"
	"github.com/veblen-group/kuma-core/poolstate"
	"github.com/veblen-group/kuma-core/poolstate/cpamm"
	"github.com/veblen-group/kuma-core/search"
	"github.com/veblen-group/kuma-core/signalbus"
	"github.com/veblen-group/kuma-core/snapshot"
	"github.com/veblen-group/kuma-core/token"
)

func mustPairStrategy(t *testing.T) (a, b token.Token, pair token.Pair) {
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

func blockWith(t *testing.T, height uint64, id poolid.ID, pool poolstate.State, a, b token.Token) *snapshot.BlockSnapshot {
	t.Helper()
	snap, err := snapshot.New(snapshot.Update{
		Height:        height,
		UpdatedStates: map[poolid.ID]poolstate.State{id: pool},
		NewPairs:      map[poolid.ID]poolstate.Meta{id: poolstate.BasicMeta{PoolTokens: []token.Token{a, b}}},
		RemovedPairs:  mapset.NewThreadUnsafeSet[poolid.ID](),
	})
	require.NoError(t, err)
	return snap
}

func TestDial_EmitsSignalOnDeadline(t *testing.T) {
	a, b, pair := mustPairStrategy(t)

	slowPub := pairstream.NewPublisher()
	fastPub := pairstream.NewPublisher()
	slowStream := pairstream.NewStream(slowPub, pair)
	fastStream := pairstream.NewStream(fastPub, pair)

	// A short block time hint keeps the test's emit deadline near-immediate
	// (75% of 40ms), well under the test's overall timeout.
	slowChain := chainmeta.New("ethereum", 40*time.Millisecond)
	fastChain := chainmeta.New("arbitrum", 40*time.Millisecond)

	bus := signalbus.NewBus(4)
	sub := bus.Subscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	params := search.Params{
		MaxSlippageBps:            25,
		CongestionRiskDiscountBps: 25,
		FastInventoryA:            big.NewInt(1_000_000),
		FastInventoryB:            big.NewInt(1_000_000),
	}

	Dial(ctx, slowStream, fastStream, slowChain, fastChain, pair, pair, 16,
		big.NewInt(1000), big.NewInt(1000), params, bus)

	slowPool := cpamm.New(a, b, big.NewInt(10_000), big.NewInt(20_000), 30, big.NewInt(21000))
	slowPub.Publish(blockWith(t, 1, "slow1", slowPool, a, b))

	fastPool := cpamm.New(a, b, big.NewInt(10_000), big.NewInt(5_000), 30, big.NewInt(21000))
	fastPub.Publish(blockWith(t, 1, "fast1", fastPool, a, b))

	select {
	case sig := <-sub:
		assert.Equal(t, poolid.ID("slow1"), sig.Slow.PoolID)
		assert.Equal(t, poolid.ID("fast1"), sig.Fast.PoolID)
	case <-time.After(1500 * time.Millisecond):
		t.Fatal("expected a signal to be emitted on the deadline")
	}
}

func TestDial_StopsOnContextCancel(t *testing.T) {
	_, _, pair := mustPairStrategy(t)

	slowPub := pairstream.NewPublisher()
	fastPub := pairstream.NewPublisher()
	slowStream := pairstream.NewStream(slowPub, pair)
	fastStream := pairstream.NewStream(fastPub, pair)

	slowChain := chainmeta.New("ethereum", 0)
	fastChain := chainmeta.New("arbitrum", 0)
	bus := signalbus.NewBus(1)

	ctx, cancel := context.WithCancel(context.Background())
	s := Dial(ctx, slowStream, fastStream, slowChain, fastChain, pair, pair, 16,
		big.NewInt(1000), big.NewInt(1000), search.Params{
			FastInventoryA: big.NewInt(1), FastInventoryB: big.NewInt(1),
		}, bus)

	cancel()

	select {
	case _, ok := <-s.Err():
		assert.False(t, ok, "Err channel should close on shutdown")
	case <-time.After(time.Second):
		t.Fatal("expected the scheduler to shut down after context cancellation")
	}
}
