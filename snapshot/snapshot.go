// Package snapshot implements the immutable, shareable chain-wide pool
// snapshot (BlockSnapshot) and its incremental evolution, plus the
// per-pair projection (PairSnapshot). Structural sharing follows
// patcher.Patch from the teacher: Evolve never mutates the receiver, and
// unchanged PoolState/Meta values are carried forward by reference rather
// than copied.
package snapshot

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/veblen-group/kuma-core/poolid"
	"github.com/veblen-group/kuma-core/poolstate"
	"github.com/veblen-group/kuma-core/token"
)

// Logger is the narrow structured-logging contract every soft-failure path
// in kuma-core depends on, matching chains.Logger / differ.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Update carries the deltas an upstream collector observed between the
// previous chain height and height, per spec.md section 4.1.
type Update struct {
	Height        uint64
	UpdatedStates map[poolid.ID]poolstate.State
	NewPairs      map[poolid.ID]poolstate.Meta
	RemovedPairs  mapset.Set[poolid.ID]
}

// BlockSnapshot is an immutable, shareable view of every live pool on one
// chain at Height. Evolve produces a new BlockSnapshot; it never mutates
// the receiver.
type BlockSnapshot struct {
	height     uint64
	states     map[poolid.ID]poolstate.State
	metadata   map[poolid.ID]poolstate.Meta
	modified   mapset.Set[poolid.ID]
	unmodified mapset.Set[poolid.ID]
}

// Height returns the block height this snapshot was built at.
func (b *BlockSnapshot) Height() uint64 { return b.height }

// States returns the underlying pool-id -> simulator map. Callers must
// treat it as read-only; BlockSnapshot is immutable by convention, not by
// copy-on-read.
func (b *BlockSnapshot) States() map[poolid.ID]poolstate.State { return b.states }

// Metadata returns the underlying pool-id -> metadata map, read-only by
// convention.
func (b *BlockSnapshot) Metadata() map[poolid.ID]poolstate.Meta { return b.metadata }

// Modified returns the set of pool ids touched by the update that produced
// this snapshot.
func (b *BlockSnapshot) Modified() mapset.Set[poolid.ID] { return b.modified }

// Unmodified returns the set of pool ids untouched by the update that
// produced this snapshot.
func (b *BlockSnapshot) Unmodified() mapset.Set[poolid.ID] { return b.unmodified }

// New builds the first BlockSnapshot from an initial Update. Every pool in
// NewPairs is considered modified; Unmodified starts empty.
func New(update Update) (*BlockSnapshot, error) {
	states := make(map[poolid.ID]poolstate.State, len(update.NewPairs))
	metadata := make(map[poolid.ID]poolstate.Meta, len(update.NewPairs))
	modified := mapset.NewThreadUnsafeSet[poolid.ID]()

	for id, meta := range update.NewPairs {
		state, ok := update.UpdatedStates[id]
		if !ok {
			return nil, fmt.Errorf("snapshot: new pair %s has no entry in updated_states", id)
		}
		states[id] = state
		metadata[id] = meta
		modified.Add(id)
	}

	return &BlockSnapshot{
		height:     update.Height,
		states:     states,
		metadata:   metadata,
		modified:   modified,
		unmodified: mapset.NewThreadUnsafeSet[poolid.ID](),
	}, nil
}

// Evolve consumes the receiver by value semantics (it does not mutate b)
// and returns a new BlockSnapshot with update applied, per spec.md section
// 4.1. Unchanged PoolState/Meta values are reused by reference.
//
// failFast decides what happens when a removed id is absent from every map:
// true makes Evolve panic; false logs a Warn via logger and skips that id.
// Pass a nil logger to skip silently in release-style configurations.
func (b *BlockSnapshot) Evolve(update Update, logger Logger, failFast bool) (*BlockSnapshot, error) {
	// 1. Shallow-copy forward: unchanged entries are shared by reference.
	states := make(map[poolid.ID]poolstate.State, len(b.states))
	for id, s := range b.states {
		states[id] = s
	}
	metadata := make(map[poolid.ID]poolstate.Meta, len(b.metadata))
	for id, m := range b.metadata {
		metadata[id] = m
	}

	touched := mapset.NewThreadUnsafeSet[poolid.ID]()

	// Step 1: removals.
	update.RemovedPairs.Each(func(id poolid.ID) bool {
		_, inStates := states[id]
		_, inMeta := metadata[id]
		inModified := b.modified.Contains(id)
		inUnmodified := b.unmodified.Contains(id)

		if !inStates && !inMeta && !inModified && !inUnmodified {
			msg := fmt.Sprintf("snapshot: SnapshotInvariantViolation: removed pool %s absent from all maps", id)
			if failFast {
				panic(msg)
			}
			if logger != nil {
				logger.Warn(msg, "pool_id", string(id), "height", update.Height)
			}
			return false
		}

		delete(states, id)
		delete(metadata, id)
		touched.Add(id)
		return false
	})

	// Step 2: new pairs.
	for id, meta := range update.NewPairs {
		state, ok := update.UpdatedStates[id]
		if !ok {
			return nil, fmt.Errorf("snapshot: new pair %s has no entry in updated_states", id)
		}
		states[id] = state
		metadata[id] = meta
		touched.Add(id)
	}

	// Step 3: remaining state-only updates (anything not already a new pair).
	for id, state := range update.UpdatedStates {
		if _, isNewPair := update.NewPairs[id]; isNewPair {
			continue
		}
		states[id] = state
		touched.Add(id)
	}

	// Step 4: modified is exactly `touched`; everything else still present
	// migrates to unmodified.
	modified := mapset.NewThreadUnsafeSet[poolid.ID]()
	unmodified := mapset.NewThreadUnsafeSet[poolid.ID]()
	for id := range states {
		if touched.Contains(id) {
			modified.Add(id)
		} else {
			unmodified.Add(id)
		}
	}

	return &BlockSnapshot{
		height:     update.Height,
		states:     states,
		metadata:   metadata,
		modified:   modified,
		unmodified: unmodified,
	}, nil
}

// PairSnapshot is the projection of a BlockSnapshot to the pools that trade
// a specific Pair. Modified/Unmodified are the full chain-wide sets shared
// by reference with the parent BlockSnapshot, per spec.md section 4.2.
type PairSnapshot struct {
	Height     uint64
	States     map[poolid.ID]poolstate.State
	Metadata   map[poolid.ID]poolstate.Meta
	Modified   mapset.Set[poolid.ID]
	Unmodified mapset.Set[poolid.ID]
}

// GetPairState projects b down to the pools whose metadata lists both
// tokens of pair.
func (b *BlockSnapshot) GetPairState(pair token.Pair) PairSnapshot {
	states := make(map[poolid.ID]poolstate.State)
	metadata := make(map[poolid.ID]poolstate.Meta)

	for id, meta := range b.metadata {
		if pair.ContainsBoth(meta.Tokens()) {
			metadata[id] = meta
			if s, ok := b.states[id]; ok {
				states[id] = s
			}
		}
	}

	return PairSnapshot{
		Height:     b.height,
		States:     states,
		Metadata:   metadata,
		Modified:   b.modified,
		Unmodified: b.unmodified,
	}
}
