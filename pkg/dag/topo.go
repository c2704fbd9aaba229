package dag

import "slices"

// TopoSort returns every node handle in topological order using Kahn's
// algorithm. Among ready nodes the lowest handle is emitted first, so the
// order is deterministic. Returns ErrGraphHasCycle if some node never
// becomes ready.
func (d *DAG) TopoSort() ([]NodeID, error) {
	inDegree := make(map[NodeID]int, len(d.nodes))
	var ready []NodeID
	for id := range d.nodes {
		inDegree[id] = len(d.in[id])
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	slices.Sort(ready)

	order := make([]NodeID, 0, len(d.nodes))
	for len(ready) > 0 {
		curr := ready[0]
		ready = ready[1:]
		order = append(order, curr)

		for _, e := range d.out[curr] {
			inDegree[e.To]--
			if inDegree[e.To] == 0 {
				i, _ := slices.BinarySearch(ready, e.To)
				ready = slices.Insert(ready, i, e.To)
			}
		}
	}

	if len(order) != len(d.nodes) {
		return nil, ErrGraphHasCycle
	}
	return order, nil
}

// HasPath reports whether to is reachable from from. With skipDirect set,
// edges that lead directly from from to to are ignored, so the result
// answers whether an indirect path of length two or more exists.
//
// The traversal uses an explicit worklist and is safe on deep graphs.
func (d *DAG) HasPath(from, to NodeID, skipDirect bool) bool {
	visited := map[NodeID]bool{from: true}
	stack := make([]NodeID, 0, len(d.out[from]))
	for _, e := range d.out[from] {
		if skipDirect && e.To == to {
			continue
		}
		stack = append(stack, e.To)
	}

	for len(stack) > 0 {
		curr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if curr == to {
			return true
		}
		if visited[curr] {
			continue
		}
		visited[curr] = true
		for _, e := range d.out[curr] {
			if !visited[e.To] {
				stack = append(stack, e.To)
			}
		}
	}
	return false
}

// Descendants returns every node reachable from id, excluding id itself,
// ordered by handle.
func (d *DAG) Descendants(id NodeID) []NodeID {
	visited := map[NodeID]bool{id: true}
	stack := []NodeID{id}
	var out []NodeID
	for len(stack) > 0 {
		curr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range d.out[curr] {
			if !visited[e.To] {
				visited[e.To] = true
				out = append(out, e.To)
				stack = append(stack, e.To)
			}
		}
	}
	slices.Sort(out)
	return out
}
