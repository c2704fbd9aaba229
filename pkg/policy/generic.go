package policy

import (
	"github.com/matzehuels/autofuse/pkg/dag"
	"github.com/matzehuels/autofuse/pkg/fusion"
	"github.com/matzehuels/autofuse/pkg/sym"
)

// GenericRounds is the generic backend's round budget.
const GenericRounds uint = 8

// Generic is a hardware-neutral policy built on operator classes.
type Generic struct {
	fusion.BasePolicy
}

// profile summarizes the classes present in an aggregate.
type profile map[Class]int

func profileOf(n *fusion.FusingNode) profile {
	p := profile{}
	for _, t := range n.Types() {
		p[Classify(t)]++
	}
	return p
}

func (p profile) has(c Class) bool { return p[c] > 0 }

// only reports whether every member belongs to one of cs.
func (p profile) only(cs ...Class) bool {
	n := 0
	for _, c := range cs {
		n += p[c]
	}
	total := 0
	for _, v := range p {
		total += v
	}
	return n == total
}

func (p profile) fusible() bool { return !p.has(Opaque) && !p.has(Data) }

func (Generic) CanFuse(a, b *fusion.FusingNode) bool {
	return profileOf(a).fusible() && profileOf(b).fusible()
}

// CanFuseVertical applies the producer/consumer rules. Elementwise and
// broadcast producers feed anything; a reduction feeds only elementwise work;
// a split feeds pointwise work or another split; concat absorbs pointwise
// producers only.
func (Generic) CanFuseVertical(a, b *fusion.FusingNode) bool {
	pa, pb := profileOf(a), profileOf(b)
	pointwise := []Class{Elementwise, Broadcast}
	switch {
	case pa.has(Reduce) && pb.has(Reduce):
		return false
	case pa.has(Reduce) && !pb.only(Elementwise):
		return false
	case pa.has(Split) && !pb.only(Elementwise, Broadcast, Split):
		return false
	case pa.has(Concat) && !pb.only(pointwise...):
		return false
	case pb.has(Concat) && !pa.only(pointwise...):
		return false
	}
	return true
}

// CanFuseHorizontal allows pointwise siblings, split siblings, and
// reductions whose outputs are provably the same size.
func (Generic) CanFuseHorizontal(a, b *fusion.FusingNode) bool {
	pa, pb := profileOf(a), profileOf(b)
	switch {
	case pa.only(Elementwise, Broadcast) && pb.only(Elementwise, Broadcast):
		return true
	case pa.only(Split) && pb.only(Split):
		return true
	case pa.has(Reduce) && pb.has(Reduce):
		return sym.Eq(a.Writes().Total(), b.Writes().Total()) == sym.Equal
	}
	return false
}

func (Generic) Priority(a, b *fusion.FusingNode) fusion.Priority {
	pa, pb := profileOf(a), profileOf(b)
	switch {
	case pa.only(Split) && pb.only(Split):
		return fusion.PriorityHighest
	case pa.has(Split) || pb.has(Split) || pa.has(Concat) || pb.has(Concat):
		return fusion.PriorityHigh
	case !connected(a, b):
		return fusion.PriorityLow
	}
	return fusion.PriorityDefault
}

func (Generic) Fuse(g *dag.DAG, a, b *fusion.FusingNode, ids fusion.Counter) (*dag.Node, error) {
	return fusion.MergeNodes(g, a, b, ids)
}

func (Generic) MaxFuseRounds() uint { return GenericRounds }

// connected reports whether one side reads a buffer the other writes.
func connected(a, b *fusion.FusingNode) bool {
	for _, pair := range [][2]*fusion.FusingNode{{a, b}, {b, a}} {
		reads := pair[1].Reads()
		for anchor := range pair[0].Writes() {
			if reads.Has(anchor) {
				return true
			}
		}
	}
	return false
}
