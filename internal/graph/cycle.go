package graph

import (
	"slices"
	"sort"
	"strings"
)

// derivationCycles returns every strongly connected component of adj that
// is a cycle: more than one node, or one node with a self-loop. Each cycle
// starts at its smallest id; cycles are sorted. Iteration is over sorted
// ids so the result is deterministic.
func derivationCycles(adj map[string][]string) [][]string {
	var cycles [][]string
	for _, scc := range tarjanSCC(adj) {
		if len(scc) > 1 || (len(scc) == 1 && slices.Contains(adj[scc[0]], scc[0])) {
			cycles = append(cycles, rotate(scc))
		}
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })
	return cycles
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
func tarjanSCC(adj map[string][]string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		succ := append([]string(nil), adj[v]...)
		sort.Strings(succ)
		for _, w := range succ {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(adj))
	for v := range adj {
		nodes = append(nodes, v)
	}
	sort.Strings(nodes)
	for _, v := range nodes {
		if _, visited := indices[v]; !visited {
			strongConnect(v)
		}
	}
	return sccs
}

// rotate orders an SCC so it starts at its smallest member. Tarjan pops
// members in reverse discovery order, so reversing first yields path order.
func rotate(scc []string) []string {
	out := slices.Clone(scc)
	slices.Reverse(out)
	i := slices.Index(out, slices.Min(out))
	return append(slices.Clone(out[i:]), out[:i]...)
}

// formatCycle renders a cycle as "a -> b -> a".
func formatCycle(c []string) string {
	return strings.Join(append(slices.Clone(c), c[0]), " -> ")
}
