package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/autofuse/pkg/dag"
	"github.com/matzehuels/autofuse/pkg/fusion"
)

var kindToString = map[dag.NodeKind]string{
	dag.NodeKindFused: "fused",
}

type graph struct {
	Meta  dag.Metadata `json:"meta,omitempty"`
	Nodes []node       `json:"nodes"`
	Edges []edge       `json:"edges"`
}

type node struct {
	ID            dag.NodeID     `json:"id"`
	Name          string         `json:"name"`
	Type          string         `json:"type"`
	Kind          string         `json:"kind,omitempty"`
	Outputs       []dag.Tensor   `json:"outputs,omitempty"`
	Members       []dag.NodeID   `json:"members,omitempty"`
	InputOrigins  [][]dag.Anchor `json:"input_origins,omitempty"`
	OutputOrigins []dag.Anchor   `json:"output_origins,omitempty"`
	Meta          dag.Metadata   `json:"meta,omitempty"`
}

type edge struct {
	From   dag.NodeID  `json:"from"`
	Out    int         `json:"out"`
	To     dag.NodeID  `json:"to"`
	In     int         `json:"in"`
	Tensor *dag.Tensor `json:"tensor,omitempty"`
}

func toWire(g *dag.DAG) graph {
	nodes, edges := g.Nodes(), g.Edges()
	out := graph{
		Meta:  g.Meta(),
		Nodes: make([]node, len(nodes)),
		Edges: make([]edge, len(edges)),
	}
	for i, n := range nodes {
		out.Nodes[i] = node{
			ID:            n.ID,
			Name:          n.Name,
			Type:          n.Type,
			Kind:          kindToString[n.Kind],
			Outputs:       n.Outputs,
			Members:       n.Members,
			InputOrigins:  n.InputOrigins,
			OutputOrigins: n.OutputOrigins,
			Meta:          n.Meta,
		}
	}
	for i, e := range edges {
		out.Edges[i] = edge{From: e.From, Out: e.Out, To: e.To, In: e.In, Tensor: e.Tensor}
	}
	return out
}

// MarshalGraph encodes g in the wire format without indentation.
func MarshalGraph(g *dag.DAG) ([]byte, error) {
	return json.Marshal(toWire(g))
}

// WriteJSON encodes a DAG as indented JSON and writes it to w. The output
// can be re-imported with [ReadJSON].
func WriteJSON(g *dag.DAG, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(toWire(g)); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportJSON writes a DAG to a JSON file at path.
func ExportJSON(g *dag.DAG, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteJSON(g, f)
}

// Report is the summary of one fusion run as written by the CLI and the
// HTTP service.
type Report struct {
	Policy      string         `json:"policy"`
	NodesBefore int            `json:"nodes_before"`
	NodesAfter  int            `json:"nodes_after"`
	Cached      bool           `json:"cached,omitempty"`
	Result      *fusion.Result `json:"result"`
}

// WriteReport encodes r as indented JSON.
func WriteReport(r Report, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
