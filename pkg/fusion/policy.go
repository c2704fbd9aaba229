package fusion

import (
	"sync"

	"github.com/matzehuels/autofuse/pkg/dag"
)

// Policy holds the backend-specific fusion rules.
//
// Fuse performs the graph-level merge and must remove both nodes from g.
// Returning a nil node with a nil error declines the merge; the pair is then
// treated like any other rejected pair. An error aborts the pass.
type Policy interface {
	// CanFuse is a cheap filter applied before the other checks.
	CanFuse(a, b *FusingNode) bool
	// CanFuseVertical reports whether producer a may merge into consumer b.
	CanFuseVertical(a, b *FusingNode) bool
	// CanFuseHorizontal reports whether a and b, not directly connected,
	// may merge.
	CanFuseHorizontal(a, b *FusingNode) bool
	// Priority assigns the pair's bucket.
	Priority(a, b *FusingNode) Priority
	// Fuse merges a and b in g, allocating the new handle from ids.
	Fuse(g *dag.DAG, a, b *FusingNode, ids Counter) (*dag.Node, error)
}

// BasePolicy supplies the permissive defaults for CanFuse and Priority.
// Embedders still have to implement the legality checks and Fuse.
type BasePolicy struct{}

func (BasePolicy) CanFuse(a, b *FusingNode) bool      { return true }
func (BasePolicy) Priority(a, b *FusingNode) Priority { return PriorityDefault }

// RoundLimiter is implemented by policies with a backend default for the
// round budget.
type RoundLimiter interface {
	MaxFuseRounds() uint
}

// MergeNodes is the usual Fuse implementation: [dag.DAG.Merge] on the two
// current graph nodes with a freshly allocated handle.
func MergeNodes(g *dag.DAG, a, b *FusingNode, ids Counter) (*dag.Node, error) {
	return g.Merge(a.Node(), b.Node(), ids.Next())
}

// Counter allocates handles for fused nodes. Successive calls must return
// strictly increasing values that are unused in the graph.
type Counter interface {
	Next() dag.NodeID
}

// SeqCounter is a Counter safe for concurrent use.
type SeqCounter struct {
	mu   sync.Mutex
	next dag.NodeID
}

// NewCounter returns a counter whose first value is start.
func NewCounter(start dag.NodeID) *SeqCounter {
	return &SeqCounter{next: start}
}

func (c *SeqCounter) Next() dag.NodeID {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.next
	c.next++
	return id
}

// CycleOracle answers whether merging a and b would create a cycle in g.
type CycleOracle interface {
	WillCreateCycle(g *dag.DAG, a, b *FusingNode) bool
}

// CycleOracleFunc adapts a function to CycleOracle.
type CycleOracleFunc func(g *dag.DAG, a, b *FusingNode) bool

func (f CycleOracleFunc) WillCreateCycle(g *dag.DAG, a, b *FusingNode) bool { return f(g, a, b) }

// ReachabilityOracle is the default CycleOracle. Merging two nodes creates a
// cycle exactly when one reaches the other through a third node, which is
// only possible when one is an ancestor of the other.
type ReachabilityOracle struct{}

func (ReachabilityOracle) WillCreateCycle(g *dag.DAG, a, b *FusingNode) bool {
	switch {
	case b.IsAncestor(a):
		return g.HasPath(a.Node(), b.Node(), true)
	case a.IsAncestor(b):
		return g.HasPath(b.Node(), a.Node(), true)
	}
	return false
}
