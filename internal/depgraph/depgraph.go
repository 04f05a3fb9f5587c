// Package depgraph analyses provider dependency graphs: transitive closures,
// cycle detection and topological initialization ordering.
//
// The algorithms are generic over the node type; edges are supplied as a
// function from a node to its direct dependencies.
package depgraph

import (
	"slices"

	"github.com/alecthomas/errors"
)

// Closure returns the transitive dependencies of root, excluding root
// itself. It tolerates cycles; the result order is unspecified.
func Closure[N comparable](root N, edges func(N) []N) []N {
	visited := map[N]bool{root: true}
	var out []N
	stack := slices.Clone(edges(root))
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[n] {
			continue
		}
		visited[n] = true
		out = append(out, n)
		stack = append(stack, edges(n)...)
	}
	return out
}

// Cycle performs a depth-first search from root, maintaining a visited set
// and the current recursion stack. Encountering a node already on the stack
// signals a cycle, and the stack contents are returned: every node on the
// offending path, in traversal order.
func Cycle[N comparable](root N, edges func(N) []N) ([]N, bool) {
	visited := map[N]bool{}
	onStack := map[N]bool{}
	var stack []N
	var visit func(n N) bool
	visit = func(n N) bool {
		if onStack[n] {
			return true
		}
		if visited[n] {
			// Fully explored already, no cycle through it.
			return false
		}
		visited[n] = true
		onStack[n] = true
		stack = append(stack, n)
		for _, dep := range edges(n) {
			if visit(dep) {
				return true
			}
		}
		stack = stack[:len(stack)-1]
		onStack[n] = false
		return false
	}
	if visit(root) {
		return slices.Clone(stack), true
	}
	return nil, false
}

// Sort returns a topological ordering of root and its transitive
// dependencies using Kahn's algorithm, such that every node's dependencies
// precede it. Tie-breaking among ready candidates is unspecified; callers
// must only rely on the partial order.
//
// Sort assumes the graph has already passed [Cycle]; a graph that cannot be
// fully ordered is reported as an error, but this is an internal consistency
// failure, not a user error.
func Sort[N comparable](root N, edges func(N) []N) ([]N, error) {
	nodes := append(Closure(root, edges), root)

	inDegree := map[N]int{}
	dependents := map[N][]N{}
	for _, n := range nodes {
		// Edge direction: dependency points to dependent.
		for _, dep := range edges(n) {
			dependents[dep] = append(dependents[dep], n)
			inDegree[n]++
		}
	}

	var queue []N
	for _, n := range nodes {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}

	order := make([]N, 0, len(nodes))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, dependent := range dependents[n] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(order) != len(nodes) {
		return nil, errors.Errorf("ordered %d of %d nodes, the graph must contain a cycle", len(order), len(nodes))
	}
	return order, nil
}
