package dag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vk/pipecanvas/internal/model"
)

// CycleError reports that the node set could not be fully ordered. Nodes
// holds every node id still caught in a cycle when the walk stalled, in
// node-array order.
type CycleError struct {
	Nodes []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected involving node(s): %s", strings.Join(e.Nodes, ", "))
}

// Sort returns a linear execution order over the nodes such that for every
// edge (s, t), s precedes t. Ties between simultaneously-ready nodes break by
// node-array insertion order. Edges referencing unknown nodes are the
// caller's invariant (model.Pipeline.Validate) and are ignored here;
// duplicate edges contribute a single dependency. A self-loop is reported as
// a cycle of length one.
func Sort(nodes []*model.PipelineNode, edges []model.Edge) ([]string, error) {
	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		index[n.ID] = i
	}

	inDegree := make([]int, len(nodes))
	dependents := make([][]int, len(nodes))
	seen := make(map[[2]int]struct{}, len(edges))
	for _, e := range edges {
		s, okS := index[e.Source]
		t, okT := index[e.Target]
		if !okS || !okT {
			continue
		}
		if s == t {
			return nil, &CycleError{Nodes: []string{e.Source}}
		}
		key := [2]int{s, t}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		inDegree[t]++
		dependents[s] = append(dependents[s], t)
	}

	// ready is kept sorted by insertion index so the head is always the
	// earliest-declared satisfiable node.
	var ready []int
	for i := range nodes {
		if inDegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]string, 0, len(nodes))
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		order = append(order, nodes[next].ID)

		for _, dep := range dependents[next] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
		sort.Ints(ready)
	}

	if len(order) != len(nodes) {
		var stuck []string
		for i, n := range nodes {
			if inDegree[i] > 0 {
				stuck = append(stuck, n.ID)
			}
		}
		return nil, &CycleError{Nodes: stuck}
	}

	return order, nil
}
