package fusion

import (
	"cmp"
	"fmt"

	"github.com/matzehuels/autofuse/pkg/sym"
)

// Priority buckets candidate pairs. Each round only considers the most
// urgent bucket that has candidates.
type Priority int

const (
	PriorityHighest Priority = iota
	PriorityHigh
	PriorityDefault
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityHighest:
		return "highest"
	case PriorityHigh:
		return "high"
	case PriorityDefault:
		return "default"
	case PriorityLow:
		return "low"
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// NodePair is a candidate fusion. A is the upstream side: the producer for
// vertical pairs, the earlier node for horizontal ones.
type NodePair struct {
	A, B           *FusingNode
	Vertical       bool
	Priority       Priority
	MemoryScore    sym.Expr
	ProximityScore int

	hint     int64 // MemoryScore under the pass hints
	versionA int
	versionB int
}

// pairKey identifies a pair of aggregates in a given state. An aggregate
// that grows gets a new version, so its pairs are evaluated afresh.
type pairKey struct{ lo, loVer, hi, hiVer int }

func makeKey(a *FusingNode, av int, b *FusingNode, bv int) pairKey {
	if a.id > b.id {
		return pairKey{b.id, bv, a.id, av}
	}
	return pairKey{a.id, av, b.id, bv}
}

func keyOf(a, b *FusingNode) pairKey { return makeKey(a, a.version, b, b.version) }

func (p NodePair) key() pairKey { return makeKey(p.A, p.versionA, p.B, p.versionB) }

// Equal reports whether both pairs contain the same two aggregates, in
// either order.
func (p NodePair) Equal(o NodePair) bool {
	return (p.A == o.A && p.B == o.B) || (p.A == o.B && p.B == o.A)
}

func (p NodePair) String() string {
	return fmt.Sprintf("(%d,%d) mem=%s prox=%d %s", p.A.node, p.B.node, p.MemoryScore, p.ProximityScore, p.Priority)
}

// comparePairs orders pairs best first: more memory saved, then closer in
// topological order, then lower ids.
func comparePairs(p, q NodePair) int {
	pk, qk := p.key(), q.key()
	return cmp.Or(
		cmp.Compare(q.hint, p.hint),
		cmp.Compare(p.ProximityScore, q.ProximityScore),
		cmp.Compare(pk.lo, qk.lo),
		cmp.Compare(pk.hi, qk.hi),
	)
}

// proximity is the larger gap between the topological bounds of a and b.
func proximity(a, b *FusingNode) int {
	return max(abs(a.minPos-b.maxPos), abs(b.minPos-a.maxPos))
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// scoreFusionMemory estimates the bytes of global memory traffic removed by
// fusing a and b: buffers one writes and the other reads no longer
// round-trip through memory, and buffers both read are loaded once.
//
// Where the producer and consumer sides of a buffer have sizes that are not
// provably equal, the smaller provable one counts; when nothing can be
// decided the buffer earns no credit.
func scoreFusionMemory(a, b *FusingNode) sym.Expr {
	var score sym.Expr
	for _, pair := range [][2]*FusingNode{{a, b}, {b, a}} {
		w, r := pair[0], pair[1]
		for _, wb := range w.writes.Sorted() {
			if rb, ok := r.reads[wb.Anchor]; ok {
				score = score.Add(credit(wb.Size, rb.Size))
			}
		}
	}
	for _, ra := range a.reads.Sorted() {
		if rb, ok := b.reads[ra.Anchor]; ok {
			score = score.Add(credit(ra.Size, rb.Size))
		}
	}
	return score
}

func credit(x, y sym.Expr) sym.Expr {
	if sym.Eq(x, y) == sym.Equal {
		return x
	}
	if m, ok := sym.Min(x, y); ok {
		return m
	}
	return sym.Expr{}
}
