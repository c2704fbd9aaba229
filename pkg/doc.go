// Package pkg provides the core libraries for autofuse operator fusion.
//
// # Overview
//
// autofuse takes a data-flow graph of compute operators and decides which
// operators should be merged into larger fused kernels. Decisions follow a
// backend policy, a symbolic cost model and a cycle-safety check. The pkg
// directory is organized into three areas:
//
//  1. Domain logic: [sym], [dag], [fusion] and [policy]
//  2. Plumbing: [io], [cache], [config], [errors] and [observability]
//  3. Orchestration: [pipeline] and [render/nodelink]
//
// # Architecture
//
// The typical data flow:
//
//	graph JSON
//	     ↓
//	[io] package (decode into a dag.DAG)
//	     ↓
//	[fusion] package (rounds of generate → rank → commit, driven by a [policy])
//	     ↓
//	[io] report + [render/nodelink] DOT/SVG
//
// # Quick Start
//
//	import (
//	    "context"
//	    "github.com/matzehuels/autofuse/pkg/fusion"
//	    "github.com/matzehuels/autofuse/pkg/io"
//	    "github.com/matzehuels/autofuse/pkg/policy"
//	)
//
//	g, _ := io.ImportJSON("model.json")
//	p, _ := policy.New("generic")
//	solver, _ := fusion.NewSolver(p)
//	res, _ := solver.Fuse(context.Background(), g)
//
// The [pipeline] package wraps the same steps with caching and rendering and
// is shared by the CLI and the HTTP server.
//
// # Main Packages
//
// [sym] - Polynomial size expressions with tri-state equality. Sizes are
// compared symbolically where possible and by hint evaluation otherwise.
//
// [dag] - Operator graph with stable integer handles, output anchors,
// topological sort, reachability and graph-level merge.
//
// [fusion] - FusingNode aggregates, pair scoring, the round scheduler and
// provenance recording.
//
// [policy] - Backend fusibility rules (generic, permissive) and the name
// registry.
//
// [cache] - Content-addressed result cache with file, null and Redis
// backends.
//
// [render/nodelink] - Graphviz DOT and SVG diagrams of fused graphs.
//
// # Testing
//
//	go test ./pkg/...           # All tests
//	go test ./pkg/fusion/...    # Specific package
//	go test -run Example ./...  # Examples only
//
// [sym]: https://pkg.go.dev/github.com/matzehuels/autofuse/pkg/sym
// [dag]: https://pkg.go.dev/github.com/matzehuels/autofuse/pkg/dag
// [fusion]: https://pkg.go.dev/github.com/matzehuels/autofuse/pkg/fusion
// [policy]: https://pkg.go.dev/github.com/matzehuels/autofuse/pkg/policy
// [io]: https://pkg.go.dev/github.com/matzehuels/autofuse/pkg/io
// [cache]: https://pkg.go.dev/github.com/matzehuels/autofuse/pkg/cache
// [config]: https://pkg.go.dev/github.com/matzehuels/autofuse/pkg/config
// [errors]: https://pkg.go.dev/github.com/matzehuels/autofuse/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/autofuse/pkg/observability
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/autofuse/pkg/pipeline
// [render/nodelink]: https://pkg.go.dev/github.com/matzehuels/autofuse/pkg/render/nodelink
package pkg
