package dag

import "fmt"

// FusedType is the Type assigned to nodes created by Merge.
const FusedType = "Fused"

type inputSlot struct {
	src     Anchor
	tensor  *Tensor
	origins []Anchor
}

// Merge replaces nodes a and b with a single fused node using handle id.
//
// The fused node's inputs are the distinct producer anchors feeding a or b
// from outside the pair, in first-seen order (a's inputs before b's). Its
// outputs are the outputs of a then b that are consumed outside the pair or
// not consumed at all; outputs consumed only by the other member become
// internal and disappear. Members, InputOrigins and OutputOrigins are
// expressed in terms of original (unfused) nodes.
//
// Merge does not check whether the result is acyclic; the caller must
// ensure no path a→x→b (or b→x→a) exists through a third node x.
func (d *DAG) Merge(a, b, id NodeID) (*Node, error) {
	if a == b {
		return nil, ErrSelfMerge
	}
	na, ok := d.nodes[a]
	if !ok {
		return nil, fmt.Errorf("merge %d: %w", a, ErrUnknownNode)
	}
	nb, ok := d.nodes[b]
	if !ok {
		return nil, fmt.Errorf("merge %d: %w", b, ErrUnknownNode)
	}
	if _, exists := d.nodes[id]; exists {
		return nil, ErrDuplicateNodeID
	}
	if _, gone := d.retired[id]; gone {
		return nil, ErrDuplicateNodeID
	}
	inPair := func(x NodeID) bool { return x == a || x == b }

	var slots []inputSlot
	slotIndex := map[Anchor]int{}
	for _, n := range []*Node{na, nb} {
		for _, e := range d.InEdges(n.ID) {
			if inPair(e.From) {
				continue
			}
			i, ok := slotIndex[e.Source()]
			if !ok {
				i = len(slots)
				slotIndex[e.Source()] = i
				slots = append(slots, inputSlot{src: e.Source(), tensor: e.Tensor})
			}
			slots[i].origins = append(slots[i].origins, inputOrigins(n, e.In)...)
		}
	}

	fused := Node{
		ID:   id,
		Name: fmt.Sprintf("%s+%s", na.Name, nb.Name),
		Type: FusedType,
		Kind: NodeKindFused,
	}
	fused.Members = append(append(fused.Members, na.Leaves()...), nb.Leaves()...)

	outIndex := map[Anchor]int{}
	for _, n := range []*Node{na, nb} {
		for i, t := range n.Outputs {
			external, internal := 0, 0
			for _, e := range d.out[n.ID] {
				if e.Out != i {
					continue
				}
				if inPair(e.To) {
					internal++
				} else {
					external++
				}
			}
			if external == 0 && internal > 0 {
				continue
			}
			outIndex[Anchor{Node: n.ID, Index: i}] = len(fused.Outputs)
			fused.Outputs = append(fused.Outputs, t)
			fused.OutputOrigins = append(fused.OutputOrigins, n.OutputOrigin(i))
		}
	}

	var rewired []Edge
	for _, s := range slots {
		fused.InputOrigins = append(fused.InputOrigins, s.origins)
	}
	for i, s := range slots {
		rewired = append(rewired, Edge{From: s.src.Node, Out: s.src.Index, To: id, In: i, Tensor: s.tensor})
	}
	for _, n := range []*Node{na, nb} {
		for _, e := range d.out[n.ID] {
			if inPair(e.To) {
				continue
			}
			out := outIndex[Anchor{Node: n.ID, Index: e.Out}]
			rewired = append(rewired, Edge{From: id, Out: out, To: e.To, In: e.In, Tensor: e.Tensor})
		}
	}

	if err := d.AddNode(fused); err != nil {
		return nil, err
	}
	d.RemoveNode(a)
	d.RemoveNode(b)
	for _, e := range rewired {
		if err := d.AddEdge(e); err != nil {
			return nil, fmt.Errorf("rewire %d->%d: %w", e.From, e.To, err)
		}
	}

	node := d.nodes[id]
	return node, nil
}

func inputOrigins(n *Node, in int) []Anchor {
	if n.IsFused() {
		if in < len(n.InputOrigins) {
			return n.InputOrigins[in]
		}
		return nil
	}
	return []Anchor{{Node: n.ID, Index: in}}
}
