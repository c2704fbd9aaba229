package fusion

import (
	"slices"

	"github.com/matzehuels/autofuse/pkg/dag"
	errs "github.com/matzehuels/autofuse/pkg/errors"
	"github.com/matzehuels/autofuse/pkg/sym"
)

// snapshot freezes the graph as it was when the pass started. Buffer
// anchors, ancestor sets and leaf handles all refer to it.
type snapshot struct {
	nodes   map[dag.NodeID]*dag.Node
	in      map[dag.NodeID][]dag.Edge
	readers map[dag.Anchor][]dag.NodeID
}

func newSnapshot(g *dag.DAG) *snapshot {
	s := &snapshot{
		nodes:   make(map[dag.NodeID]*dag.Node, g.NodeCount()),
		in:      make(map[dag.NodeID][]dag.Edge, g.NodeCount()),
		readers: make(map[dag.Anchor][]dag.NodeID),
	}
	for _, n := range g.Nodes() {
		cp := *n
		s.nodes[n.ID] = &cp
		s.in[n.ID] = slices.Clone(g.InEdges(n.ID))
	}
	for _, e := range g.Edges() {
		src := e.Source()
		if !slices.Contains(s.readers[src], e.To) {
			s.readers[src] = append(s.readers[src], e.To)
		}
	}
	return s
}

// edgeBytes is the size of the data an edge carries: the consumer view when
// present, the producer's output otherwise.
func (s *snapshot) edgeBytes(e dag.Edge) (size sym.Expr) {
	if e.Tensor != nil {
		return e.Tensor.Bytes()
	}
	if prod, ok := s.nodes[e.From]; ok && e.Out < len(prod.Outputs) {
		return prod.Outputs[e.Out].Bytes()
	}
	return size
}

// escapes reports whether the buffer at anchor is needed outside the leaf
// set own: read by some other node, or not read at all (a graph result).
func (s *snapshot) escapes(anchor dag.Anchor, own map[dag.NodeID]struct{}) bool {
	readers := s.readers[anchor]
	if len(readers) == 0 {
		return true
	}
	for _, r := range readers {
		if _, ok := own[r]; !ok {
			return true
		}
	}
	return false
}

// arena owns every aggregate of a pass. Aggregates are addressed by id and
// resolved to their current owner through the leaf index.
type arena struct {
	snap    *snapshot
	all     []*FusingNode
	byGraph map[dag.NodeID]*FusingNode
	owner   map[dag.NodeID]*FusingNode // leaf handle -> live aggregate
}

func newArena(g *dag.DAG) *arena {
	return &arena{
		snap:    newSnapshot(g),
		byGraph: make(map[dag.NodeID]*FusingNode),
		owner:   make(map[dag.NodeID]*FusingNode),
	}
}

// wrap returns the aggregate for graph node id, creating a single-operator
// one the first time a pass-start node is seen.
func (a *arena) wrap(id dag.NodeID) (*FusingNode, error) {
	if fn, ok := a.byGraph[id]; ok {
		return fn, nil
	}
	if _, ok := a.snap.nodes[id]; !ok {
		return nil, errs.New(errs.ErrCodeInvalidGraph, "node %d appeared in the graph during the pass", id)
	}
	fn := &FusingNode{id: len(a.all)}
	if err := fn.init(a.snap, id); err != nil {
		return nil, err
	}
	a.all = append(a.all, fn)
	a.byGraph[id] = fn
	a.owner[id] = fn
	return fn, nil
}

// current resolves fn to the live aggregate that now owns its leaves.
func (a *arena) current(fn *FusingNode) *FusingNode {
	if !fn.dead {
		return fn
	}
	return a.owner[fn.leaves[0].ID]
}

// rebind points the aggregate at its new graph node.
func (a *arena) rebind(fn *FusingNode, old []dag.NodeID, id dag.NodeID) {
	for _, o := range old {
		delete(a.byGraph, o)
	}
	fn.node = id
	fn.units = append(fn.units, id)
	a.byGraph[id] = fn
}

// live returns the aggregates that have not been absorbed, by id.
func (a *arena) live() []*FusingNode {
	var out []*FusingNode
	for _, fn := range a.all {
		if !fn.dead {
			out = append(out, fn)
		}
	}
	return out
}
