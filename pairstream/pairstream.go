// Package pairstream implements the latest-value channel described in
// spec.md sections 4.2 and 9: a single-slot rendezvous that always holds
// the freshest published BlockSnapshot, collapsing intermediate values for
// slow consumers, plus the per-pair projection (PairStream) layered on top
// of it.
//
// The non-blocking, drain-and-retry send is grounded on
// chains/ethereum/client.go's loop(), which performs the same "never block
// the producer, keep only the newest" dance for its State channel, with one
// difference: where the teacher discards the stale value on backpressure
// and logs a Warn, here the stream's whole contract is "a consumer always
// eventually observes the latest snapshot", so the stale value is replaced
// rather than dropped in favor of nothing.
package pairstream

import (
	"context"
	"sync"

	"github.com/veblen-group/kuma-core/snapshot"
	"github.com/veblen-group/kuma-core/token"
)

// subscriber is one single-slot latest-value channel handed out by a
// Publisher.
type subscriber struct {
	ch chan *snapshot.BlockSnapshot
}

func newSubscriber() *subscriber {
	return &subscriber{ch: make(chan *snapshot.BlockSnapshot, 1)}
}

// publish overwrites the slot's currently held value without blocking.
func (s *subscriber) publish(snap *snapshot.BlockSnapshot) {
	for {
		select {
		case s.ch <- snap:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// Publisher is the producer side of the latest-value channel. A collector
// implementation holds one Publisher per chain and calls Publish on every
// new block; each call to NewStream registers an independent subscriber so
// multiple pairs can be projected off of the same chain feed without
// contending for a single slot.
type Publisher struct {
	mu     sync.Mutex
	subs   []*subscriber
	closed bool
}

// NewPublisher creates an empty Publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Publish fans snap out to every current subscriber's slot, overwriting
// whatever stale value they held. It never blocks.
func (p *Publisher) Publish(snap *snapshot.BlockSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sub := range p.subs {
		sub.publish(snap)
	}
}

// subscribe registers and returns a new subscriber. Close on the Publisher
// closes every outstanding subscriber's channel, ending their streams.
func (p *Publisher) subscribe() *subscriber {
	p.mu.Lock()
	defer p.mu.Unlock()
	sub := newSubscriber()
	if p.closed {
		close(sub.ch)
		return sub
	}
	p.subs = append(p.subs, sub)
	return sub
}

// Close ends every Stream derived from this Publisher. Safe to call once.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for _, sub := range p.subs {
		close(sub.ch)
	}
}

// Stream is a lazy, single-consumer-style stream of PairSnapshots derived
// from a Publisher's BlockSnapshots, filtered to one token.Pair, per
// spec.md section 4.2. The sentinel "no snapshot yet" state is never
// observed: Next suspends until the first real BlockSnapshot arrives.
type Stream struct {
	pair token.Pair
	sub  *subscriber
}

// NewStream registers a new projection of pub's chain feed onto pair.
func NewStream(pub *Publisher, pair token.Pair) *Stream {
	return &Stream{pair: pair, sub: pub.subscribe()}
}

// Next suspends until a new BlockSnapshot is published and returns its
// projection onto the stream's pair. It returns ok=false once the
// publisher is closed and no further value is pending, mirroring
// "Stream ends when the publisher is dropped" in spec.md section 4.2.
func (s *Stream) Next(ctx context.Context) (snapshot.PairSnapshot, bool) {
	select {
	case snap, ok := <-s.sub.ch:
		if !ok {
			return snapshot.PairSnapshot{}, false
		}
		return snap.GetPairState(s.pair), true
	case <-ctx.Done():
		return snapshot.PairSnapshot{}, false
	}
}
