package fusion

import (
	"maps"
	"slices"

	"github.com/matzehuels/autofuse/pkg/dag"
	errs "github.com/matzehuels/autofuse/pkg/errors"
	"github.com/matzehuels/autofuse/pkg/sym"
)

// FusingNode is the solver's view of one graph node during a pass: either a
// single original operator or an aggregate built from several of them.
//
// All handles it stores refer to nodes present when the pass started, so the
// sets stay meaningful after the graph has been rewritten.
type FusingNode struct {
	id      int
	node    dag.NodeID   // graph node currently representing the aggregate
	units   []dag.NodeID // graph nodes absorbed so far, intermediate aggregates included
	leaves  []*dag.Node  // pass-start nodes, in merge order
	reads   BufferSet
	writes  BufferSet
	anc     map[dag.NodeID]struct{}
	minPos  int
	maxPos  int
	version int
	dead    bool
}

// ID returns the arena id. It never changes and is never reused in a pass.
func (n *FusingNode) ID() int { return n.id }

// Node returns the graph handle currently representing the aggregate.
func (n *FusingNode) Node() dag.NodeID { return n.node }

// Units returns the graph handles absorbed into the aggregate, including
// intermediate aggregates created earlier in the pass.
func (n *FusingNode) Units() []dag.NodeID { return slices.Clone(n.units) }

// Leaves returns the pass-start nodes contained in the aggregate, in merge
// order. The returned nodes must not be modified.
func (n *FusingNode) Leaves() []*dag.Node { return slices.Clone(n.leaves) }

// LeafIDs returns the handles of Leaves.
func (n *FusingNode) LeafIDs() []dag.NodeID {
	ids := make([]dag.NodeID, len(n.leaves))
	for i, l := range n.leaves {
		ids[i] = l.ID
	}
	return ids
}

// Types returns the operator types of the aggregate, in merge order. Leaves
// that were already fused before the pass contribute their member types.
func (n *FusingNode) Types() []string {
	var ts []string
	for _, l := range n.leaves {
		ts = append(ts, leafTypes(l)...)
	}
	return ts
}

func leafTypes(l *dag.Node) []string {
	switch mt := l.Meta[MetaMemberTypes].(type) {
	case []string:
		return mt
	case []any:
		ts := make([]string, 0, len(mt))
		for _, t := range mt {
			if s, ok := t.(string); ok {
				ts = append(ts, s)
			}
		}
		if len(ts) == len(mt) {
			return ts
		}
	}
	return []string{l.Type}
}

// Reads returns the external buffers the aggregate loads.
func (n *FusingNode) Reads() BufferSet { return n.reads.clone() }

// Writes returns the buffers the aggregate stores for outside consumers or
// as graph results.
func (n *FusingNode) Writes() BufferSet { return n.writes.clone() }

// Ancestors returns every pass-start handle from which the aggregate is
// reachable, its own leaves included, sorted.
func (n *FusingNode) Ancestors() []dag.NodeID {
	return slices.Sorted(maps.Keys(n.anc))
}

// MinOrder and MaxOrder bound the positions of the leaves in the expanded
// topological order of the current graph.
func (n *FusingNode) MinOrder() int { return n.minPos }

// MaxOrder is the counterpart of MinOrder.
func (n *FusingNode) MaxOrder() int { return n.maxPos }

// FusionNodesSize returns the number of original operators in the aggregate.
func (n *FusingNode) FusionNodesSize() int {
	size := 0
	for _, l := range n.leaves {
		size += len(l.Leaves())
	}
	return size
}

// IsFused reports whether the aggregate absorbed another node in this pass.
func (n *FusingNode) IsFused() bool { return len(n.leaves) > 1 }

// IsAncestor reports whether candidate is an ancestor of n, that is whether
// a leaf of candidate appears in n's ancestor set. A node counts as its own
// ancestor.
func (n *FusingNode) IsAncestor(candidate *FusingNode) bool {
	for _, l := range candidate.leaves {
		if _, ok := n.anc[l.ID]; ok {
			return true
		}
	}
	return false
}

// init wraps the graph node id as a single-operator aggregate using the
// pass-start snapshot.
func (n *FusingNode) init(s *snapshot, id dag.NodeID) error {
	leaf, ok := s.nodes[id]
	if !ok {
		return errs.New(errs.ErrCodeNodeNotFound, "fusing node: no descriptor for node %d", id)
	}
	n.node = id
	n.units = []dag.NodeID{id}
	n.leaves = []*dag.Node{leaf}
	n.reads = BufferSet{}
	n.writes = BufferSet{}
	for _, e := range s.in[id] {
		prod, ok := s.nodes[e.From]
		if !ok {
			return errs.New(errs.ErrCodeNodeNotFound, "fusing node: producer %d of %d missing", e.From, id)
		}
		n.reads.add(newBuffer(e.Source(), s.edgeBytes(e), prod))
	}
	for i, t := range leaf.Outputs {
		n.writes.add(newBuffer(dag.Anchor{Node: id, Index: i}, t.Bytes(), leaf))
	}
	n.anc = map[dag.NodeID]struct{}{id: {}}
	n.updateReadsAndWrites(s)
	return nil
}

// fuse absorbs other into n. Buffer sets and ancestor sets are unioned;
// updateReadsAndWrites must run afterwards to drop buffers that became
// internal.
func (n *FusingNode) fuse(other *FusingNode, a *arena) {
	n.units = append(n.units, other.units...)
	n.leaves = append(n.leaves, other.leaves...)
	n.reads = union(n.reads, other.reads)
	n.writes = union(n.writes, other.writes)
	maps.Copy(n.anc, other.anc)
	n.minPos = min(n.minPos, other.minPos)
	n.maxPos = max(n.maxPos, other.maxPos)
	n.version++

	other.dead = true
	for _, l := range other.leaves {
		a.owner[l.ID] = n
	}
}

// updateReadsAndWrites removes reads produced inside the aggregate and
// writes consumed only inside it.
func (n *FusingNode) updateReadsAndWrites(s *snapshot) {
	own := n.leafSet()
	for anchor := range n.reads {
		if _, ok := own[anchor.Node]; ok {
			delete(n.reads, anchor)
		}
	}
	for anchor := range n.writes {
		if !s.escapes(anchor, own) {
			delete(n.writes, anchor)
		}
	}
}

// internal returns the buffers produced and consumed within the aggregate.
func (n *FusingNode) internal(s *snapshot) BufferSet {
	own := n.leafSet()
	out := BufferSet{}
	for _, l := range n.leaves {
		for i, t := range l.Outputs {
			anchor := dag.Anchor{Node: l.ID, Index: i}
			if !s.escapes(anchor, own) {
				out.add(newBuffer(anchor, t.Bytes(), l))
			}
		}
	}
	return out
}

// peak estimates the live-buffer high-water mark of the aggregate: every
// external read, external write and internal intermediate at once.
func (n *FusingNode) peak(s *snapshot) sym.Expr {
	return union(n.reads, n.writes, n.internal(s)).Total().Add(n.priorInternal())
}

// internalBytes is the size of every intermediate kept inside the
// aggregate, those of leaves fused in earlier passes included.
func (n *FusingNode) internalBytes(s *snapshot) sym.Expr {
	return n.internal(s).Total().Add(n.priorInternal())
}

// priorInternal sums the intermediates recorded on leaves that were fused
// before the pass. They are invisible in the snapshot.
func (n *FusingNode) priorInternal() sym.Expr {
	var total sym.Expr
	for _, l := range n.leaves {
		total = total.Add(recordedInternal(l))
	}
	return total
}

func recordedInternal(l *dag.Node) sym.Expr {
	switch v := l.Meta[MetaInternalBytes].(type) {
	case sym.Expr:
		return v
	case string:
		if e, err := sym.Parse(v); err == nil {
			return e
		}
	}
	return sym.Expr{}
}

// updateOrder recomputes the topological bounds from the per-leaf start
// positions. A leaf fused in an earlier pass spans one position per member.
func (n *FusingNode) updateOrder(pos map[dag.NodeID]int) {
	n.minPos, n.maxPos = -1, -1
	for _, l := range n.leaves {
		p, ok := pos[l.ID]
		if !ok {
			continue
		}
		if n.minPos < 0 || p < n.minPos {
			n.minPos = p
		}
		n.maxPos = max(n.maxPos, p+len(l.Leaves())-1)
	}
}

func (n *FusingNode) leafSet() map[dag.NodeID]struct{} {
	set := make(map[dag.NodeID]struct{}, len(n.leaves))
	for _, l := range n.leaves {
		set[l.ID] = struct{}{}
	}
	return set
}
