// Package io provides JSON import and export for compute graphs and fusion
// reports.
//
// # JSON Format
//
// A graph has two top-level arrays:
//
//	{
//	  "nodes": [
//	    {"id": 1, "name": "x", "type": "Data",
//	     "outputs": [{"shape": ["s0", "128"], "elem_bytes": 4}]},
//	    {"id": 2, "name": "relu", "type": "Relu",
//	     "outputs": [{"shape": ["s0", "128"], "elem_bytes": 4}]}
//	  ],
//	  "edges": [
//	    {"from": 1, "out": 0, "to": 2, "in": 0}
//	  ]
//	}
//
// Shapes and strides are symbolic size expressions in the syntax accepted
// by [sym.Parse]. An edge may carry its own "tensor" when the consumer sees
// a different view of the data.
//
// # Fused Nodes
//
// Exported fused nodes carry "kind": "fused" plus "members",
// "input_origins" and "output_origins", so a fused graph re-imports with its
// provenance intact and can be fused again.
//
// # Validation
//
// [ReadJSON] rejects malformed JSON, duplicate or negative ids, edges to
// unknown nodes or slots, node names with control characters, and cycles.
// Errors carry codes from package errors.
//
// [sym.Parse]: github.com/matzehuels/autofuse/pkg/sym.Parse
package io
