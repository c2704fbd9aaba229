package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	graphio "github.com/matzehuels/autofuse/pkg/io"
	"github.com/matzehuels/autofuse/pkg/observability"
	"github.com/matzehuels/autofuse/pkg/pipeline"
)

type fuseFlags struct {
	policy   string
	rounds   uint
	output   string
	report   string
	dot      string
	svg      string
	detailed bool
	noCache  bool
	refresh  bool
}

// fuseCommand creates the fuse command.
func (c *CLI) fuseCommand() *cobra.Command {
	var f fuseFlags

	cmd := &cobra.Command{
		Use:   "fuse <graph.json>",
		Short: "Run a fusion pass over a graph",
		Long: `Run a fusion pass over a compute graph and write the fused graph.

The result is cached by graph content, policy and limits; --refresh
recomputes it and --no-cache skips the cache entirely.`,
		Example: `  autofuse fuse model.json -o model.fused.json
  autofuse fuse model.json --policy permissive --rounds 3 --svg fused.svg
  autofuse fuse model.json --report - > report.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runFuse(cmd.Context(), args[0], f, cmd.Flags().Changed("rounds"))
		},
	}

	cmd.Flags().StringVarP(&f.policy, "policy", "p", "", "fusion policy (default from config)")
	cmd.Flags().UintVar(&f.rounds, "rounds", 0, "maximum fusion rounds (0 = policy default)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "write the fused graph JSON to this file")
	cmd.Flags().StringVar(&f.report, "report", "", "write the JSON report to this file (- for stdout)")
	cmd.Flags().StringVar(&f.dot, "dot", "", "write a Graphviz DOT diagram to this file")
	cmd.Flags().StringVar(&f.svg, "svg", "", "write an SVG diagram to this file")
	cmd.Flags().BoolVar(&f.detailed, "detailed", false, "include shapes and metadata in diagrams")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable the result cache")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "recompute even if a cached result exists")

	return cmd
}

func (c *CLI) runFuse(ctx context.Context, path string, f fuseFlags, roundsSet bool) error {
	logger := loggerFromContext(ctx)

	g, err := pipeline.Load(path)
	if err != nil {
		return err
	}
	logger.Debug("loaded graph", "path", path, "nodes", g.NodeCount(), "edges", g.EdgeCount())

	runner, err := c.newRunner(ctx, f.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	opts := c.pipelineOptions()
	opts.Logger = logger
	if f.policy != "" {
		opts.Policy = f.policy
	}
	if roundsSet {
		opts.Config.MaxFuseRounds = f.rounds
	}
	opts.Refresh = f.refresh
	opts.Detailed = f.detailed
	targets := map[string]string{}
	for _, t := range [][2]string{
		{pipeline.FormatJSON, f.output},
		{pipeline.FormatDOT, f.dot},
		{pipeline.FormatSVG, f.svg},
	} {
		if t[1] != "" {
			opts.Formats = append(opts.Formats, t[0])
			targets[t[0]] = t[1]
		}
	}

	prog := newProgress(logger)
	var res *pipeline.Result
	err = c.withSpinner(ctx, "Fusing...", func() error {
		var err error
		res, err = runner.Execute(ctx, g, opts)
		return err
	})
	if err != nil {
		return err
	}
	prog.done("fused", "nodes", res.Report.NodesBefore, "fused_nodes", res.Report.NodesAfter, "cached", res.CacheHit)

	for _, format := range opts.Formats {
		if err := os.WriteFile(targets[format], res.Artifacts[format], 0o644); err != nil {
			return fmt.Errorf("write %s: %w", targets[format], err)
		}
	}

	if f.report == "-" {
		return graphio.WriteReport(res.Report, c.out)
	}
	if f.report != "" {
		var buf bytes.Buffer
		if err := graphio.WriteReport(res.Report, &buf); err != nil {
			return err
		}
		if err := os.WriteFile(f.report, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", f.report, err)
		}
	}

	fmt.Fprint(c.out, renderSummary(res.Report))
	for _, format := range opts.Formats {
		printFile(c.out, targets[format])
	}
	if f.report != "" {
		printFile(c.out, f.report)
	}
	return nil
}

// withSpinner runs fn behind a spinner that follows the solver's rounds.
// Verbose runs log instead, so the spinner is skipped.
func (c *CLI) withSpinner(ctx context.Context, message string, fn func() error) error {
	if c.verbose {
		return fn()
	}
	s := newSpinner(ctx, os.Stderr, message)
	observability.SetFusionHooks(spinnerHooks{s: s})
	defer observability.SetFusionHooks(observability.NoopFusionHooks{})

	s.Start()
	defer s.Stop()
	return fn()
}

// spinnerHooks reports round progress on a spinner.
type spinnerHooks struct {
	observability.NoopFusionHooks
	s *Spinner
}

func (h spinnerHooks) OnRoundComplete(_ context.Context, _ string, round, fused, nodeCount int, _ time.Duration) {
	h.s.Update(fmt.Sprintf("Fusing... round %d: %d merged, %d nodes", round, fused, nodeCount))
}
