// Package poolid defines the opaque pool identifier type shared across the
// snapshot, precompute, and search packages. The core never parses an ID's
// contents, following engine.ProtocolID's treatment in the teacher corpus.
package poolid

// ID is an opaque, string-like identifier for a liquidity pool on one chain.
type ID string

func (id ID) String() string { return string(id) }
