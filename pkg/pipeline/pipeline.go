// Package pipeline runs the load → fuse → render sequence shared by the
// CLI and the HTTP service.
//
// Fusion results are cached by content: the key covers the canonical JSON
// of the input graph, the resolved policy name and the pass limits, so
// identical requests are answered without running the solver.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	g, err := pipeline.Load("model.json")
//	res, err := runner.Execute(ctx, g, pipeline.Options{
//	    Policy:  "generic",
//	    Formats: []string{pipeline.FormatJSON, pipeline.FormatSVG},
//	})
//	svg := res.Artifacts[pipeline.FormatSVG]
//
// Run the stages separately:
//
//	res, err := runner.Fuse(ctx, g, opts)
//	artifacts, err := pipeline.Render(ctx, res.Graph, opts)
package pipeline

import (
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/autofuse/pkg/dag"
	"github.com/matzehuels/autofuse/pkg/fusion"
	"github.com/matzehuels/autofuse/pkg/io"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatDOT  = "dot"
	FormatSVG  = "svg"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = []string{FormatJSON, FormatDOT, FormatSVG}

// DefaultTTL is how long a cached fusion result stays valid when
// Options.TTL is zero.
const DefaultTTL = 24 * time.Hour

// Options configures one pipeline run.
type Options struct {
	// Policy is a backend name or alias; empty selects the default.
	Policy string `json:"policy,omitempty"`
	// Config holds the pass limits.
	Config fusion.Config `json:"config"`
	// Formats lists the artifacts to render after fusion.
	Formats []string `json:"formats,omitempty"`
	// Detailed adds shapes and metadata to DOT/SVG labels.
	Detailed bool `json:"detailed,omitempty"`
	// Refresh ignores cached results but still stores the new one.
	Refresh bool `json:"refresh,omitempty"`
	// TTL of the cached result.
	TTL time.Duration `json:"-"`

	Logger *log.Logger `json:"-"`
}

// Result is the outcome of a pipeline run.
type Result struct {
	// Graph is the fused graph.
	Graph *dag.DAG

	// GraphHash is the content hash of the input graph.
	GraphHash string

	// Report summarizes the pass.
	Report io.Report

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	// CacheHit reports whether the fusion result came from the cache.
	CacheHit bool
}

// ValidateFormat checks that a format is supported.
func ValidateFormat(format string) error {
	if !slices.Contains(ValidFormats, format) {
		return fmt.Errorf("invalid format: %q (must be one of: json, dot, svg)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are supported.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// Load reads a graph JSON file.
func Load(path string) (*dag.DAG, error) {
	return io.ImportJSON(path)
}
