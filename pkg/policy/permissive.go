package policy

import (
	"github.com/matzehuels/autofuse/pkg/dag"
	"github.com/matzehuels/autofuse/pkg/fusion"
)

// Permissive allows every pair at default priority. Cycle safety and the
// resource guards still apply.
type Permissive struct {
	fusion.BasePolicy
}

func (Permissive) CanFuseVertical(a, b *fusion.FusingNode) bool   { return true }
func (Permissive) CanFuseHorizontal(a, b *fusion.FusingNode) bool { return true }

func (Permissive) Fuse(g *dag.DAG, a, b *fusion.FusingNode, ids fusion.Counter) (*dag.Node, error) {
	return fusion.MergeNodes(g, a, b, ids)
}
