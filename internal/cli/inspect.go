package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matzehuels/autofuse/pkg/dag"
	"github.com/matzehuels/autofuse/pkg/pipeline"
	"github.com/matzehuels/autofuse/pkg/policy"
	"github.com/matzehuels/autofuse/pkg/sym"
)

// inspectCommand creates the inspect command.
func (c *CLI) inspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <graph.json>",
		Short: "Validate a graph and print its statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := pipeline.Load(args[0])
			if err != nil {
				return err
			}
			printInspect(c.out, args[0], g)
			return nil
		},
	}
}

func printInspect(w io.Writer, path string, g *dag.DAG) {
	var (
		fused, ops int
		bytes      []sym.Expr
		types      = map[string]int{}
	)
	for _, n := range g.Nodes() {
		if n.IsFused() {
			fused++
		}
		ops += len(n.Leaves())
		types[n.Type]++
		for _, t := range n.Outputs {
			bytes = append(bytes, t.Bytes())
		}
	}

	printSuccess(w, "%s is a valid graph", path)
	fmt.Fprintln(w, keyValue("nodes", strconv.Itoa(g.NodeCount())))
	fmt.Fprintln(w, keyValue("edges", strconv.Itoa(g.EdgeCount())))
	fmt.Fprintln(w, keyValue("fused nodes", strconv.Itoa(fused)))
	fmt.Fprintln(w, keyValue("operators", strconv.Itoa(ops)))
	fmt.Fprintln(w, keyValue("output bytes", sym.Sum(bytes...).String()))

	if len(types) == 0 {
		return
	}
	t := newTable("type", "nodes", "class")
	for _, typ := range slices.Sorted(maps.Keys(types)) {
		class := policy.Classify(typ).String()
		if typ == dag.FusedType {
			class = "-"
		}
		t.Row(typ, strconv.Itoa(types[typ]), class)
	}
	fmt.Fprintln(w, t.String())
}
