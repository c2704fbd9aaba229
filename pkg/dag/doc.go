// Package dag provides the compute graph consumed by the fusion scheduler.
//
// # Overview
//
// A [DAG] is an arena of operator nodes addressed by stable integer handles
// ([NodeID]). Every node produces zero or more output tensors; a directed
// [Edge] connects one output slot of a producer (an [Anchor]) to one input
// slot of a consumer. Handles are never reused, so references held by other
// packages (ancestor sets, constituent lists) cannot dangle when nodes are
// merged away: a removed handle simply stops resolving.
//
// # Basic Usage
//
//	g := dag.New(nil)
//	g.AddNode(dag.Node{ID: 1, Name: "x", Type: "Data", Outputs: []dag.Tensor{t}})
//	g.AddNode(dag.Node{ID: 2, Name: "relu", Type: "Relu", Outputs: []dag.Tensor{t}})
//	g.AddEdge(dag.Edge{From: 1, Out: 0, To: 2, In: 0})
//	order, err := g.TopoSort()
//
// # Tensors
//
// Output tensors carry symbolic shapes and strides from package sym. An edge
// may carry its own [Tensor] describing the consumer-side view of the data;
// when it does not, the producer's output tensor is used.
//
// # Fusion
//
// [DAG.Merge] replaces two nodes with a single [NodeKindFused] node. Internal
// edges disappear, external inputs are deduplicated per producer anchor, and
// only outputs that are still consumed outside the pair (or not consumed at
// all) survive. The fused node records which original nodes it contains
// ([Node.Members]) and where each of its inputs and outputs came from
// ([Node.InputOrigins], [Node.OutputOrigins]), always in terms of the nodes
// of the unfused graph.
//
// # Metadata
//
// Both nodes and the graph carry [Metadata]; maps are never nil after
// insertion.
//
// # Concurrency
//
// DAG instances are not safe for concurrent use.
package dag
