// Package fake is a deterministic in-memory collector.Collector double for
// tests and local development, grounded on patcher_test.go's mockIntPatcher:
// the smallest thing that proves the rest of the system can carry updates
// without knowing where they come from.
package fake

import (
	"context"

	"github.com/veblen-group/kuma-core/pairstream"
	"github.com/veblen-group/kuma-core/snapshot"
	"github.com/veblen-group/kuma-core/token"
)

// Collector publishes snapshot.BlockSnapshots fed to it by test code via
// Push, satisfying collector.Collector.
type Collector struct {
	pub *pairstream.Publisher
}

// New creates an empty fake collector.
func New() *Collector {
	return &Collector{pub: pairstream.NewPublisher()}
}

// Push publishes update as the chain's next BlockSnapshot, evolving from
// the previous one if prev is non-nil, or creating the first snapshot
// otherwise.
func (c *Collector) Push(prev *snapshot.BlockSnapshot, update snapshot.Update) (*snapshot.BlockSnapshot, error) {
	var next *snapshot.BlockSnapshot
	var err error
	if prev == nil {
		next, err = snapshot.New(update)
	} else {
		next, err = prev.Evolve(update, nil, true)
	}
	if err != nil {
		return nil, err
	}
	c.pub.Publish(next)
	return next, nil
}

// Snapshots implements collector.Collector.
func (c *Collector) Snapshots() *pairstream.Publisher {
	return c.pub
}

// PairStream implements collector.Collector.
func (c *Collector) PairStream(pair token.Pair) (*pairstream.Stream, error) {
	return pairstream.NewStream(c.pub, pair), nil
}

// Shutdown implements collector.Collector. The fake has no background task
// to cancel; it just closes the publisher so outstanding streams end.
func (c *Collector) Shutdown(ctx context.Context) error {
	c.pub.Close()
	return nil
}
