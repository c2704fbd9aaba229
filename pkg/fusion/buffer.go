package fusion

import (
	"cmp"
	"maps"
	"slices"

	"github.com/cespare/xxhash/v2"

	"github.com/matzehuels/autofuse/pkg/dag"
	"github.com/matzehuels/autofuse/pkg/sym"
)

// MemoryBuffer is one tensor read or written by an aggregate.
type MemoryBuffer struct {
	Anchor dag.Anchor // producing output slot, in pass-start handles
	Size   sym.Expr   // bytes
	Owner  dag.NodeID // producing node

	ownerHash uint64
}

func newBuffer(anchor dag.Anchor, size sym.Expr, owner *dag.Node) MemoryBuffer {
	return MemoryBuffer{
		Anchor:    anchor,
		Size:      size,
		Owner:     owner.ID,
		ownerHash: xxhash.Sum64String(owner.Name),
	}
}

// compareBuffers orders buffers by slot index, then hashed owner name, then
// handle. The order is only used to make iteration deterministic.
func compareBuffers(a, b MemoryBuffer) int {
	return cmp.Or(
		cmp.Compare(a.Anchor.Index, b.Anchor.Index),
		cmp.Compare(a.ownerHash, b.ownerHash),
		cmp.Compare(a.Anchor.Node, b.Anchor.Node),
	)
}

// BufferSet is a set of buffers keyed by anchor.
type BufferSet map[dag.Anchor]MemoryBuffer

func (s BufferSet) add(b MemoryBuffer) { s[b.Anchor] = b }

// Has reports whether the set contains the buffer produced at anchor.
func (s BufferSet) Has(a dag.Anchor) bool {
	_, ok := s[a]
	return ok
}

// Sorted returns the buffers in deterministic order.
func (s BufferSet) Sorted() []MemoryBuffer {
	out := slices.Collect(maps.Values(s))
	slices.SortFunc(out, compareBuffers)
	return out
}

// Total returns the summed byte size of all buffers.
func (s BufferSet) Total() sym.Expr {
	var total sym.Expr
	for _, b := range s.Sorted() {
		total = total.Add(b.Size)
	}
	return total
}

func (s BufferSet) clone() BufferSet { return maps.Clone(s) }

func union(sets ...BufferSet) BufferSet {
	out := BufferSet{}
	for _, s := range sets {
		maps.Copy(out, s)
	}
	return out
}
