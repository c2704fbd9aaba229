package io

import (
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/matzehuels/autofuse/pkg/dag"
	errs "github.com/matzehuels/autofuse/pkg/errors"
)

var kindFromString = map[string]dag.NodeKind{
	"":        dag.NodeKindRegular,
	"regular": dag.NodeKindRegular,
	"fused":   dag.NodeKindFused,
}

// ReadJSON decodes a JSON graph from r into a DAG.
//
// Each node needs an "id"; "name" defaults to the type, "type" must be set.
// Each edge must reference existing nodes and an existing output slot of
// its producer. The graph must be acyclic.
//
// The returned DAG is independent of r. ReadJSON does not close r.
func ReadJSON(r io.Reader) (*dag.DAG, error) {
	var data graph
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&data); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidFormat, err, "decode graph")
	}

	g := dag.New(data.Meta)
	for _, n := range data.Nodes {
		if n.Type == "" {
			return nil, errs.New(errs.ErrCodeInvalidGraph, "node %d: missing type", n.ID)
		}
		if n.Name == "" {
			n.Name = n.Type
		}
		if err := errs.ValidateNodeName(n.Name); err != nil {
			return nil, errs.Wrap(errs.ErrCodeInvalidGraph, err, "node %d", n.ID)
		}
		kind, ok := kindFromString[n.Kind]
		if !ok {
			return nil, errs.New(errs.ErrCodeInvalidGraph, "node %d: unknown kind %q", n.ID, n.Kind)
		}
		if kind == dag.NodeKindFused && len(n.Members) == 0 {
			return nil, errs.New(errs.ErrCodeInvalidGraph, "node %d: fused node without members", n.ID)
		}
		nd := dag.Node{
			ID:            n.ID,
			Name:          n.Name,
			Type:          n.Type,
			Kind:          kind,
			Outputs:       n.Outputs,
			Members:       n.Members,
			InputOrigins:  n.InputOrigins,
			OutputOrigins: n.OutputOrigins,
			Meta:          n.Meta,
		}
		if err := g.AddNode(nd); err != nil {
			return nil, errs.Wrap(errs.ErrCodeInvalidGraph, err, "node %d", n.ID)
		}
	}
	for _, e := range data.Edges {
		if err := g.AddEdge(dag.Edge{From: e.From, Out: e.Out, To: e.To, In: e.In, Tensor: e.Tensor}); err != nil {
			return nil, errs.Wrap(errs.ErrCodeInvalidGraph, err, "edge %d->%d", e.From, e.To)
		}
	}
	if err := g.Validate(); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidGraph, err, "graph")
	}
	return g, nil
}

// UnmarshalGraph decodes a graph from data.
func UnmarshalGraph(data []byte) (*dag.DAG, error) {
	return ReadJSON(bytes.NewReader(data))
}

// ImportJSON reads a JSON file at path and returns the decoded DAG.
func ImportJSON(path string) (*dag.DAG, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.ErrCodeFileNotFound, err, "open %s", path)
		}
		return nil, errs.Wrap(errs.ErrCodeInvalidPath, err, "open %s", path)
	}
	defer f.Close()
	return ReadJSON(f)
}
