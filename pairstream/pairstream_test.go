package pairstream

import (
	"context"
	"math/big"
	"testing"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veblen-group/kuma-core/poolid"
	"github.com/veblen-group/kuma-core/poolstate"
	"github.com/veblen-group/kuma-core/poolstate/cpamm"
	"github.com/veblen-group/kuma-core/snapshot"
	"github.com/veblen-group/kuma-core/token"
)

func newBlock(t *testing.T, height uint64, a, b token.Token) *snapshot.BlockSnapshot {
	t.Helper()
	pool := cpamm.New(a, b, big.NewInt(1000), big.NewInt(2000), 30, big.NewInt(21000))
	snap, err := snapshot.New(snapshot.Update{
		Height:        height,
		UpdatedStates: map[poolid.ID]poolstate.State{"p1": pool},
		NewPairs:      map[poolid.ID]poolstate.Meta{"p1": poolstate.BasicMeta{PoolTokens: []token.Token{a, b}}},
		RemovedPairs:  mapset.NewThreadUnsafeSet[poolid.ID](),
	})
	require.NoError(t, err)
	return snap
}

func TestStream_LatestWins(t *testing.T) {
	a, err := token.New("A", []byte{0x01}, 18)
	require.NoError(t, err)
	b, err := token.New("B", []byte{0x02}, 18)
	require.NoError(t, err)
	pair, err := token.NewPair(a, b)
	require.NoError(t, err)

	pub := NewPublisher()
	stream := NewStream(pub, pair)

	pub.Publish(newBlock(t, 1, a, b))
	pub.Publish(newBlock(t, 2, a, b))
	pub.Publish(newBlock(t, 3, a, b))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, ok := stream.Next(ctx)
	require.True(t, ok)
	assert.Equal(t, uint64(3), got.Height, "a slow consumer observes only the latest snapshot")
}

func TestStream_EndsOnClose(t *testing.T) {
	a, err := token.New("A", []byte{0x01}, 18)
	require.NoError(t, err)
	b, err := token.New("B", []byte{0x02}, 18)
	require.NoError(t, err)
	pair, err := token.NewPair(a, b)
	require.NoError(t, err)

	pub := NewPublisher()
	stream := NewStream(pub, pair)
	pub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, ok := stream.Next(ctx)
	assert.False(t, ok)
}

func TestStream_MultipleSubscribersIndependent(t *testing.T) {
	a, err := token.New("A", []byte{0x01}, 18)
	require.NoError(t, err)
	b, err := token.New("B", []byte{0x02}, 18)
	require.NoError(t, err)
	pair, err := token.NewPair(a, b)
	require.NoError(t, err)

	pub := NewPublisher()
	s1 := NewStream(pub, pair)
	s2 := NewStream(pub, pair)

	pub.Publish(newBlock(t, 1, a, b))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got1, ok := s1.Next(ctx)
	require.True(t, ok)
	assert.Equal(t, uint64(1), got1.Height)

	got2, ok := s2.Next(ctx)
	require.True(t, ok)
	assert.Equal(t, uint64(1), got2.Height)
}
