package dag_test

import (
	"fmt"

	"github.com/matzehuels/autofuse/pkg/dag"
	"github.com/matzehuels/autofuse/pkg/sym"
)

// Merging the middle of x -> a -> b -> y leaves a single fused node whose
// only output forwards b's.
func ExampleDAG_Merge() {
	g := dag.New(nil)
	out := []dag.Tensor{{Shape: []sym.Expr{sym.Var("s0")}, ElemBytes: 4}}
	for i, name := range []string{"x", "a", "b", "y"} {
		_ = g.AddNode(dag.Node{ID: dag.NodeID(i + 1), Name: name, Type: "Relu", Outputs: out})
	}
	_ = g.AddEdge(dag.Edge{From: 1, To: 2})
	_ = g.AddEdge(dag.Edge{From: 2, To: 3})
	_ = g.AddEdge(dag.Edge{From: 3, To: 4})

	fused, err := g.Merge(2, 3, 10)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(fused.Name, fused.Members)
	fmt.Println(g.NodeCount(), g.Producers(10), g.Consumers(10))
	fmt.Println(fused.OutputOrigin(0), fused.Outputs[0].Bytes())
	// Output:
	// a+b [2 3]
	// 3 [1] [4]
	// {3 0} 4*s0
}
