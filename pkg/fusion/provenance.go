package fusion

import (
	"github.com/charmbracelet/log"

	"github.com/matzehuels/autofuse/pkg/dag"
	errs "github.com/matzehuels/autofuse/pkg/errors"
)

// Metadata keys written after a pass.
const (
	// MetaProvenance is the graph-level key holding map[dag.NodeID]Provenance.
	MetaProvenance = "fusion.provenance"
	// MetaOriginInputs is the per-node key holding [][]dag.Anchor.
	MetaOriginInputs = "origin_inputs"
	// MetaOriginOutputs is the per-node key holding []dag.Anchor.
	MetaOriginOutputs = "origin_outputs"
	// MetaMemberTypes is the per-node key holding the operator types of the
	// members, in member order.
	MetaMemberTypes = "member_types"
	// MetaInternalBytes is the per-node key holding the sym.Expr size of
	// the intermediates that stay inside a fused node.
	MetaInternalBytes = "internal_bytes"
)

// Provenance maps the external I/O of a fused node back to original
// operators. Inputs[i] lists the (consumer, input slot) anchors fed by input
// slot i; Outputs[i] is the original output forwarded by output slot i.
type Provenance struct {
	Node    dag.NodeID     `json:"node"`
	Members []dag.NodeID   `json:"members"`
	Inputs  [][]dag.Anchor `json:"inputs"`
	Outputs []dag.Anchor   `json:"outputs"`
}

// setOriginInputAndOutput records provenance for every fused node in the
// graph. A fused node whose origins do not line up with its slots is an
// error.
func (p *pass) setOriginInputAndOutput(logger *log.Logger) error {
	prov := make(map[dag.NodeID]Provenance)
	for _, n := range p.g.Nodes() {
		if !n.IsFused() {
			continue
		}
		if len(n.OutputOrigins) != len(n.Outputs) {
			return errs.New(errs.ErrCodeProvenance,
				"node %d: %d output origins for %d outputs", n.ID, len(n.OutputOrigins), len(n.Outputs))
		}
		if slots := inputSlots(p.g, n.ID); len(n.InputOrigins) != slots {
			return errs.New(errs.ErrCodeProvenance,
				"node %d: %d input origins for %d inputs", n.ID, len(n.InputOrigins), slots)
		}
		if len(n.Members) == 0 {
			return errs.New(errs.ErrCodeProvenance, "node %d: fused node has no members", n.ID)
		}

		rec := Provenance{
			Node:    n.ID,
			Members: n.Members,
			Inputs:  n.InputOrigins,
			Outputs: n.OutputOrigins,
		}
		prov[n.ID] = rec
		if n.Meta == nil {
			n.Meta = dag.Metadata{}
		}
		n.Meta[MetaOriginInputs] = rec.Inputs
		n.Meta[MetaOriginOutputs] = rec.Outputs
		if fn, ok := p.arena.byGraph[n.ID]; ok {
			n.Meta[MetaMemberTypes] = fn.Types()
			n.Meta[MetaInternalBytes] = fn.internalBytes(p.arena.snap)
		}
		logger.Debug("provenance", "node", n.ID, "name", n.Name,
			"members", len(rec.Members), "inputs", len(rec.Inputs), "outputs", len(rec.Outputs))
	}
	p.g.Meta()[MetaProvenance] = prov
	p.res.Provenance = prov
	return nil
}

// inputSlots returns the number of input slots of id, one past the highest
// slot index in use.
func inputSlots(g *dag.DAG, id dag.NodeID) int {
	n := 0
	for _, e := range g.InEdges(id) {
		n = max(n, e.In+1)
	}
	return n
}
