package fusion

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matzehuels/autofuse/pkg/dag"
	"github.com/matzehuels/autofuse/pkg/sym"
)

type testNode struct {
	id    dag.NodeID
	name  string
	typ   string
	elems int64 // output length, 4 bytes per element
}

// newGraph builds a graph whose nodes have one output each. Input slots are
// assigned in edge order.
func newGraph(t *testing.T, nodes []testNode, edges ...[2]dag.NodeID) *dag.DAG {
	t.Helper()
	g := dag.New(nil)
	for _, n := range nodes {
		elems := n.elems
		if elems == 0 {
			elems = 4
		}
		typ := n.typ
		if typ == "" {
			typ = "Relu"
		}
		require.NoError(t, g.AddNode(dag.Node{
			ID:      n.id,
			Name:    n.name,
			Type:    typ,
			Outputs: []dag.Tensor{{Shape: []sym.Expr{sym.Const(elems)}, ElemBytes: 4}},
		}))
	}
	slots := map[dag.NodeID]int{}
	for _, e := range edges {
		require.NoError(t, g.AddEdge(dag.Edge{From: e[0], To: e[1], In: slots[e[1]]}))
		slots[e[1]]++
	}
	return g
}

// testPolicy allows everything unless a hook says otherwise and merges with
// MergeNodes.
type testPolicy struct {
	BasePolicy
	canFuse    func(a, b *FusingNode) bool
	vertical   func(a, b *FusingNode) bool
	horizontal func(a, b *FusingNode) bool
	priority   func(a, b *FusingNode) Priority
	fuse       func(g *dag.DAG, a, b *FusingNode, ids Counter) (*dag.Node, error)
	rounds     uint
}

func (p testPolicy) CanFuse(a, b *FusingNode) bool {
	return p.canFuse == nil || p.canFuse(a, b)
}

func (p testPolicy) CanFuseVertical(a, b *FusingNode) bool {
	return p.vertical == nil || p.vertical(a, b)
}

func (p testPolicy) CanFuseHorizontal(a, b *FusingNode) bool {
	return p.horizontal == nil || p.horizontal(a, b)
}

func (p testPolicy) Priority(a, b *FusingNode) Priority {
	if p.priority == nil {
		return p.BasePolicy.Priority(a, b)
	}
	return p.priority(a, b)
}

func (p testPolicy) Fuse(g *dag.DAG, a, b *FusingNode, ids Counter) (*dag.Node, error) {
	if p.fuse != nil {
		return p.fuse(g, a, b, ids)
	}
	return MergeNodes(g, a, b, ids)
}

func (p testPolicy) MaxFuseRounds() uint { return p.rounds }

func hasType(n *FusingNode, typ string) bool {
	for _, t := range n.Types() {
		if t == typ {
			return true
		}
	}
	return false
}

// noData keeps Data nodes out of every fusion.
func noData(a, b *FusingNode) bool {
	return !hasType(a, "Data") && !hasType(b, "Data")
}

func newTestSolver(t *testing.T, p Policy, opts ...Option) *Solver {
	t.Helper()
	s, err := NewSolver(p, opts...)
	require.NoError(t, err)
	return s
}

// leafOwners maps every original handle to the graph nodes containing it.
func leafOwners(g *dag.DAG) map[dag.NodeID][]dag.NodeID {
	out := map[dag.NodeID][]dag.NodeID{}
	for _, n := range g.Nodes() {
		for _, l := range n.Leaves() {
			out[l] = append(out[l], n.ID)
		}
	}
	return out
}

// membersOf returns the leaves of the graph node containing leaf.
func membersOf(g *dag.DAG, leaf dag.NodeID) []dag.NodeID {
	for _, n := range g.Nodes() {
		if slices.Contains(n.Leaves(), leaf) {
			return n.Leaves()
		}
	}
	return nil
}

// startPass wraps g and computes ancestors without fusing anything.
func startPass(t *testing.T, s *Solver, g *dag.DAG) (*pass, map[dag.NodeID]*FusingNode) {
	t.Helper()
	p := s.newPass(t.Context(), g)
	nodes, err := p.getNodes()
	require.NoError(t, err)
	p.computeAncestors(nodes)
	require.NoError(t, p.updateNodesAndTopoID())
	byID := map[dag.NodeID]*FusingNode{}
	for _, fn := range nodes {
		byID[fn.Node()] = fn
	}
	return p, byID
}
