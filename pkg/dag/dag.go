package dag

import (
	"errors"
	"maps"
	"slices"

	"github.com/matzehuels/autofuse/pkg/sym"
)

var (
	// ErrInvalidNodeID is returned by [DAG.AddNode] for a negative handle.
	ErrInvalidNodeID = errors.New("node ID must not be negative")

	// ErrDuplicateNodeID is returned by [DAG.AddNode] when the handle is in use.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownNode is returned when a handle does not resolve to a node.
	ErrUnknownNode = errors.New("unknown node")

	// ErrInvalidAnchor is returned when an edge names an output or input
	// slot the node does not have.
	ErrInvalidAnchor = errors.New("invalid anchor")

	// ErrGraphHasCycle is returned by [DAG.TopoSort] and [DAG.Validate]
	// when the graph is not acyclic.
	ErrGraphHasCycle = errors.New("graph contains a cycle")

	// ErrSelfMerge is returned by [DAG.Merge] when both handles are equal.
	ErrSelfMerge = errors.New("cannot merge a node with itself")
)

// Metadata stores arbitrary key-value pairs attached to nodes or the graph.
type Metadata map[string]any

// NodeID is a stable node handle. Handles are unique within a graph and are
// never reused after a node is removed.
type NodeID int

// NodeKind distinguishes original operators from fusion results.
type NodeKind int

const (
	// NodeKindRegular is an operator of the input graph.
	NodeKindRegular NodeKind = iota
	// NodeKindFused is a node created by [DAG.Merge].
	NodeKindFused
)

func (k NodeKind) String() string {
	if k == NodeKindFused {
		return "fused"
	}
	return "regular"
}

// Anchor names an output slot of a node.
type Anchor struct {
	Node  NodeID `json:"node"`
	Index int    `json:"index"`
}

// Tensor describes the data flowing through an output slot or edge.
type Tensor struct {
	Shape     []sym.Expr `json:"shape,omitempty"`
	Stride    []sym.Expr `json:"stride,omitempty"`
	ElemBytes int64      `json:"elem_bytes,omitempty"`
}

// Bytes returns the symbolic byte size: the product of the shape and the
// element size (1 when unset).
func (t Tensor) Bytes() sym.Expr {
	elem := t.ElemBytes
	if elem <= 0 {
		elem = 1
	}
	return sym.Product(t.Shape...).Scale(elem)
}

// Node is an operator in the compute graph.
type Node struct {
	ID      NodeID
	Name    string
	Type    string
	Kind    NodeKind
	Outputs []Tensor
	Meta    Metadata

	// Members lists the original nodes contained in a fused node, in the
	// order they were merged. Empty for regular nodes.
	Members []NodeID
	// OutputOrigins maps each output slot of a fused node to the original
	// output it forwards.
	OutputOrigins []Anchor
	// InputOrigins maps each input slot of a fused node to the original
	// consumer slots it feeds, as anchors of (consumer, input index).
	InputOrigins [][]Anchor
}

// IsFused reports whether the node was created by [DAG.Merge].
func (n *Node) IsFused() bool { return n.Kind == NodeKindFused }

// Leaves returns Members for fused nodes and the node itself otherwise.
func (n *Node) Leaves() []NodeID {
	if n.IsFused() {
		return n.Members
	}
	return []NodeID{n.ID}
}

// OutputOrigin returns the original anchor that output slot i forwards.
func (n *Node) OutputOrigin(i int) Anchor {
	if n.IsFused() && i < len(n.OutputOrigins) {
		return n.OutputOrigins[i]
	}
	return Anchor{Node: n.ID, Index: i}
}

// Edge connects output slot Out of From to input slot In of To. Tensor,
// when set, is the consumer-side view of the data.
type Edge struct {
	From   NodeID
	Out    int
	To     NodeID
	In     int
	Tensor *Tensor
}

// Source returns the producer anchor of the edge.
func (e Edge) Source() Anchor { return Anchor{Node: e.From, Index: e.Out} }

// DAG is a directed acyclic compute graph. The zero value is not usable;
// create instances with New.
type DAG struct {
	nodes  map[NodeID]*Node
	out    map[NodeID][]Edge
	in     map[NodeID][]Edge
	meta   Metadata
	nextID NodeID

	retired map[NodeID]struct{} // removed handles, never reissued
}

// New creates an empty graph with optional graph-level metadata.
func New(meta Metadata) *DAG {
	if meta == nil {
		meta = Metadata{}
	}
	return &DAG{
		nodes: make(map[NodeID]*Node),
		out:   make(map[NodeID][]Edge),
		in:    make(map[NodeID][]Edge),
		meta:  meta,

		retired: make(map[NodeID]struct{}),
	}
}

// Meta returns the graph-level metadata map. It is never nil.
func (d *DAG) Meta() Metadata { return d.meta }

// AddNode inserts a node. The node's Meta is initialized if nil.
func (d *DAG) AddNode(n Node) error {
	if n.ID < 0 {
		return ErrInvalidNodeID
	}
	if _, exists := d.nodes[n.ID]; exists {
		return ErrDuplicateNodeID
	}
	if _, gone := d.retired[n.ID]; gone {
		return ErrDuplicateNodeID
	}
	if n.Meta == nil {
		n.Meta = Metadata{}
	}
	node := &n
	d.nodes[n.ID] = node
	if n.ID >= d.nextID {
		d.nextID = n.ID + 1
	}
	return nil
}

// NextID returns a handle that has never been used in this graph.
func (d *DAG) NextID() NodeID { return d.nextID }

// AddEdge connects two existing nodes. The producer must have the output
// slot e.Out; input slots are not bounded.
func (d *DAG) AddEdge(e Edge) error {
	src, ok := d.nodes[e.From]
	if !ok {
		return ErrUnknownNode
	}
	if _, ok := d.nodes[e.To]; !ok {
		return ErrUnknownNode
	}
	if e.Out < 0 || e.Out >= len(src.Outputs) || e.In < 0 {
		return ErrInvalidAnchor
	}
	d.out[e.From] = append(d.out[e.From], e)
	d.in[e.To] = append(d.in[e.To], e)
	return nil
}

// RemoveNode deletes a node and all incident edges. Removing an unknown
// handle is a no-op.
func (d *DAG) RemoveNode(id NodeID) {
	if _, ok := d.nodes[id]; !ok {
		return
	}
	for _, e := range d.out[id] {
		d.in[e.To] = slices.DeleteFunc(d.in[e.To], func(x Edge) bool { return x.From == id })
	}
	for _, e := range d.in[id] {
		d.out[e.From] = slices.DeleteFunc(d.out[e.From], func(x Edge) bool { return x.To == id })
	}
	delete(d.out, id)
	delete(d.in, id)
	delete(d.nodes, id)
	d.retired[id] = struct{}{}
}

// Node returns the node with the given handle.
func (d *DAG) Node(id NodeID) (*Node, bool) {
	n, ok := d.nodes[id]
	return n, ok
}

// Nodes returns all nodes ordered by handle. The pointers refer to the
// nodes in the graph.
func (d *DAG) Nodes() []*Node {
	ids := slices.Sorted(maps.Keys(d.nodes))
	nodes := make([]*Node, len(ids))
	for i, id := range ids {
		nodes[i] = d.nodes[id]
	}
	return nodes
}

// NodeCount returns the number of nodes.
func (d *DAG) NodeCount() int { return len(d.nodes) }

// EdgeCount returns the number of edges.
func (d *DAG) EdgeCount() int {
	n := 0
	for _, es := range d.out {
		n += len(es)
	}
	return n
}

// Edges returns a copy of every edge, ordered by producer handle and then
// insertion order.
func (d *DAG) Edges() []Edge {
	var edges []Edge
	for _, n := range d.Nodes() {
		edges = append(edges, d.out[n.ID]...)
	}
	return edges
}

// InEdges returns the edges entering id ordered by input slot. The
// returned slice must not be modified.
func (d *DAG) InEdges(id NodeID) []Edge {
	es := d.in[id]
	slices.SortStableFunc(es, func(a, b Edge) int { return a.In - b.In })
	return es
}

// OutEdges returns the edges leaving id. The returned slice must not be
// modified.
func (d *DAG) OutEdges(id NodeID) []Edge { return d.out[id] }

// Producers returns the distinct nodes feeding id, ordered by handle.
func (d *DAG) Producers(id NodeID) []NodeID {
	return uniqueSorted(d.in[id], func(e Edge) NodeID { return e.From })
}

// Consumers returns the distinct nodes fed by id, ordered by handle.
func (d *DAG) Consumers(id NodeID) []NodeID {
	return uniqueSorted(d.out[id], func(e Edge) NodeID { return e.To })
}

func uniqueSorted(es []Edge, pick func(Edge) NodeID) []NodeID {
	if len(es) == 0 {
		return nil
	}
	ids := make([]NodeID, 0, len(es))
	for _, e := range es {
		ids = append(ids, pick(e))
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// InDegree returns the number of edges entering id.
func (d *DAG) InDegree(id NodeID) int { return len(d.in[id]) }

// OutDegree returns the number of edges leaving id.
func (d *DAG) OutDegree(id NodeID) int { return len(d.out[id]) }

// HasEdge reports whether some edge connects from to to.
func (d *DAG) HasEdge(from, to NodeID) bool {
	return slices.ContainsFunc(d.out[from], func(e Edge) bool { return e.To == to })
}

// Validate checks that every edge references existing nodes and slots and
// that the graph is acyclic.
func (d *DAG) Validate() error {
	for id, es := range d.out {
		src, ok := d.nodes[id]
		if !ok {
			return ErrUnknownNode
		}
		for _, e := range es {
			if _, ok := d.nodes[e.To]; !ok {
				return ErrUnknownNode
			}
			if e.Out >= len(src.Outputs) {
				return ErrInvalidAnchor
			}
		}
	}
	_, err := d.TopoSort()
	return err
}
