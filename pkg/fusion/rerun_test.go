package fusion_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/autofuse/pkg/dag"
	"github.com/matzehuels/autofuse/pkg/fusion"
	graphio "github.com/matzehuels/autofuse/pkg/io"
	"github.com/matzehuels/autofuse/pkg/policy"
	"github.com/matzehuels/autofuse/pkg/sym"
)

// chain builds a graph with one float32 output per node; elems maps node
// ids to output lengths.
func chain(t *testing.T, elems map[dag.NodeID]int64, edges ...[2]dag.NodeID) *dag.DAG {
	t.Helper()
	g := dag.New(nil)
	for id := dag.NodeID(1); int(id) <= len(elems); id++ {
		require.NoError(t, g.AddNode(dag.Node{
			ID:      id,
			Type:    "Relu",
			Name:    fmt.Sprintf("n%d", id),
			Outputs: []dag.Tensor{{Shape: []sym.Expr{sym.Const(elems[id])}, ElemBytes: 4}},
		}))
	}
	slots := map[dag.NodeID]int{}
	for _, e := range edges {
		require.NoError(t, g.AddEdge(dag.Edge{From: e[0], To: e[1], In: slots[e[1]]}))
		slots[e[1]]++
	}
	return g
}

func fuseOnce(t *testing.T, g *dag.DAG, cfg fusion.Config) *fusion.Result {
	t.Helper()
	solver, err := fusion.NewSolver(policy.Permissive{}, fusion.WithConfig(cfg))
	require.NoError(t, err)
	res, err := solver.Fuse(context.Background(), g)
	require.NoError(t, err)
	return res
}

func roundTrip(t *testing.T, g *dag.DAG) *dag.DAG {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, graphio.WriteJSON(g, &buf))
	out, err := graphio.ReadJSON(&buf)
	require.NoError(t, err)
	return out
}

func TestRerunAfterRoundTripIsNoop(t *testing.T) {
	elems := map[dag.NodeID]int64{1: 4, 2: 8, 3: 4, 4: 16, 5: 4, 6: 8, 7: 2}
	edges := [][2]dag.NodeID{{1, 2}, {1, 3}, {2, 4}, {3, 4}, {4, 5}, {5, 6}, {1, 7}}

	tests := []struct {
		name string
		cfg  fusion.Config
	}{
		{"unbounded", fusion.Config{}},
		{"fusion size", fusion.Config{MaxFusionSize: 2}},
		{"input count", fusion.Config{MaxInputNumsAfterFuse: 1}},
		{"proximity", fusion.Config{MaxProximity: 1}},
		{"peak memory", fusion.Config{MaxPeakMemory: 64}},
		{"write memory", fusion.Config{MaxWriteMemory: 24}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := chain(t, elems, edges...)
			fuseOnce(t, g, tt.cfg)
			want := g.NodeCount()

			again := roundTrip(t, g)
			res := fuseOnce(t, again, tt.cfg)

			assert.Zero(t, res.Fusions)
			assert.Equal(t, want, again.NodeCount())
		})
	}
}

func TestPeakMemoryCountsPriorFusions(t *testing.T) {
	g := chain(t, map[dag.NodeID]int64{1: 4, 2: 4, 3: 4}, [2]dag.NodeID{1, 2}, [2]dag.NodeID{2, 3})
	cfg := fusion.Config{MaxPeakMemory: 40}

	res := fuseOnce(t, g, cfg)
	require.Equal(t, 1, res.Fusions)
	require.Equal(t, 2, g.NodeCount())
	assert.Positive(t, res.Rejections[fusion.RejectPeakMemory])

	again := roundTrip(t, g)
	var fused *dag.Node
	for _, n := range again.Nodes() {
		if n.IsFused() {
			fused = n
		}
	}
	require.NotNil(t, fused)
	assert.Equal(t, "16", fused.Meta[fusion.MetaInternalBytes])

	res = fuseOnce(t, again, cfg)
	assert.Zero(t, res.Fusions)
	assert.Equal(t, 2, again.NodeCount())
	assert.Positive(t, res.Rejections[fusion.RejectPeakMemory])
}
