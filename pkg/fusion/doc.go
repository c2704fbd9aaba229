// Package fusion decides which operators of a compute graph are merged into
// larger fused kernels.
//
// # Overview
//
// A [Solver] runs a bounded number of rounds over a [dag.DAG]. Each round
//
//  1. snapshots the current graph nodes as [FusingNode] aggregates,
//  2. recomputes their ancestor sets,
//  3. enumerates producer/consumer and sibling pairs, filtering them through
//     the backend [Policy], the [CycleOracle] and the resource guards,
//  4. keeps only the highest [Priority] bucket that has candidates,
//  5. ranks the bucket by memory traffic saved and topological proximity,
//  6. greedily commits pairs, resolving each side to its current aggregate,
//  7. re-sorts the graph and refreshes topological bounds.
//
// The pass stops when a round commits nothing or the round budget is spent.
// Afterwards every fused node gets provenance metadata mapping its external
// inputs and outputs back to the original operators.
//
// # Handles
//
// Aggregates live in an arena owned by the pass and are addressed by their
// integer id; ancestor sets and constituent lists hold [dag.NodeID] handles
// of the nodes present when the pass started. Nothing refers to a node by
// pointer once it has been merged away.
//
// # Failures
//
// Structural problems (nil graph, dangling handles, bad provenance, a policy
// that leaves merged nodes behind) abort the pass with an error from
// package errors. Illegal pairs, cycle risk and resource limits are not
// errors: the pair is recorded as rejected and skipped until one side
// grows. The proximity cap depends on topological positions, which move
// every round, so those pairs are checked again each round. Rounds already
// committed stay committed.
//
// # Concurrency
//
// A pass owns its graph exclusively. A Solver may be reused for several
// graphs sequentially; a custom [Counter] shared between goroutines must be
// synchronized by the caller.
package fusion
