package testutil

import (
	"fmt"
	"sync/atomic"
)

// SequenceIDGenerator hands out envelope IDs "<prefix>-0001", "<prefix>-0002", ...
//
// Unlike engine.FixedGenerator, it never runs out, so it suits scenarios
// of unknown length. Two generators with the same prefix produce the same
// IDs, which makes traces byte-identical across runs.
//
// Thread-safety: Generate is safe for concurrent use.
type SequenceIDGenerator struct {
	prefix string
	n      atomic.Int64
}

// NewSequenceIDGenerator creates a generator. An empty prefix becomes "id".
func NewSequenceIDGenerator(prefix string) *SequenceIDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &SequenceIDGenerator{prefix: prefix}
}

// Generate returns the next ID. Implements engine.IDGenerator.
func (g *SequenceIDGenerator) Generate() string {
	return fmt.Sprintf("%s-%04d", g.prefix, g.n.Add(1))
}
