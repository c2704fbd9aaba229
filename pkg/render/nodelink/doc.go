// Package nodelink renders operator graphs as node-link diagrams.
//
// Nodes appear as boxes connected by arrows in producer-to-consumer
// order. Fused nodes are highlighted so the effect of a fusion pass is
// visible at a glance.
//
// # Usage
//
//	dot := nodelink.ToDOT(g, nodelink.Options{Detailed: true})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// The DOT source can also be saved and processed with external Graphviz
// tools.
//
// # Dependencies
//
// [RenderSVG] uses [github.com/goccy/go-graphviz], which runs Graphviz
// in-process, so no system installation is needed.
package nodelink
