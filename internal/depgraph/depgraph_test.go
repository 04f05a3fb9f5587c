package depgraph

import (
	"slices"
	"strconv"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func edgesOf(graph map[string][]string) func(string) []string {
	return func(n string) []string { return graph[n] }
}

func TestClosure(t *testing.T) {
	graph := map[string][]string{
		"c": {"a", "b"},
		"b": {"a"},
	}
	closure := Closure("c", edgesOf(graph))
	slices.Sort(closure)
	assert.Equal(t, []string{"a", "b"}, closure)

	assert.Equal(t, 0, len(Closure("a", edgesOf(graph))))
}

func TestClosureDiamond(t *testing.T) {
	graph := map[string][]string{
		"d": {"b", "c"},
		"b": {"a"},
		"c": {"a"},
	}
	closure := Closure("d", edgesOf(graph))
	slices.Sort(closure)
	assert.Equal(t, []string{"a", "b", "c"}, closure)
}

func TestClosureToleratesCycles(t *testing.T) {
	graph := map[string][]string{
		"a": {"b"},
		"b": {"a"},
	}
	closure := Closure("a", edgesOf(graph))
	assert.Equal(t, []string{"b"}, closure)
}

func TestCycle(t *testing.T) {
	t.Run("None", func(t *testing.T) {
		graph := map[string][]string{
			"c": {"a", "b"},
			"b": {"a"},
		}
		_, ok := Cycle("c", edgesOf(graph))
		assert.False(t, ok)
	})

	t.Run("Direct", func(t *testing.T) {
		graph := map[string][]string{
			"x": {"y"},
			"y": {"x"},
		}
		stack, ok := Cycle("x", edgesOf(graph))
		assert.True(t, ok)
		slices.Sort(stack)
		assert.Equal(t, []string{"x", "y"}, stack)
	})

	t.Run("SelfEdge", func(t *testing.T) {
		graph := map[string][]string{"a": {"a"}}
		stack, ok := Cycle("a", edgesOf(graph))
		assert.True(t, ok)
		assert.Equal(t, []string{"a"}, stack)
	})

	t.Run("Deep", func(t *testing.T) {
		graph := map[string][]string{
			"a": {"b"},
			"b": {"c"},
			"c": {"d"},
			"d": {"b"},
		}
		stack, ok := Cycle("a", edgesOf(graph))
		assert.True(t, ok)
		// The stack holds the whole offending path, including nodes
		// upstream of the cycle itself.
		slices.Sort(stack)
		assert.Equal(t, []string{"a", "b", "c", "d"}, stack)
	})

	t.Run("DiamondIsNotACycle", func(t *testing.T) {
		graph := map[string][]string{
			"d": {"b", "c"},
			"b": {"a"},
			"c": {"a"},
		}
		_, ok := Cycle("d", edgesOf(graph))
		assert.False(t, ok)
	})
}

// assertPartialOrder asserts that every dependency of every node precedes it
// in order. Exact sequences are deliberately never asserted: tie-breaking is
// unspecified.
func assertPartialOrder(t *testing.T, order []string, graph map[string][]string) {
	t.Helper()
	for _, n := range order {
		for _, dep := range graph[n] {
			assert.True(t, slices.Index(order, dep) < slices.Index(order, n),
				"%s must precede %s in %v", dep, n, order)
		}
	}
}

func TestSort(t *testing.T) {
	graph := map[string][]string{
		"c": {"a", "b"},
		"b": {"a"},
	}
	order, err := Sort("c", edgesOf(graph))
	assert.NoError(t, err)
	// This graph has a unique order.
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestSortDiamond(t *testing.T) {
	graph := map[string][]string{
		"d": {"b", "c"},
		"b": {"a"},
		"c": {"a"},
	}
	order, err := Sort("d", edgesOf(graph))
	assert.NoError(t, err)
	assert.Equal(t, 4, len(order))
	assertPartialOrder(t, order, graph)
	assert.Equal(t, "a", order[0])
	assert.Equal(t, "d", order[3])
}

func TestSortSingleNode(t *testing.T) {
	order, err := Sort("a", edgesOf(nil))
	assert.NoError(t, err)
	assert.Equal(t, []string{"a"}, order)
}

func TestSortDeepChain(t *testing.T) {
	graph := map[string][]string{}
	prev := "n0"
	for i := 1; i < 500; i++ {
		n := "n" + strconv.Itoa(i)
		graph[n] = []string{prev}
		prev = n
	}
	order, err := Sort(prev, edgesOf(graph))
	assert.NoError(t, err)
	assert.Equal(t, 500, len(order))
	assertPartialOrder(t, order, graph)
}

func TestSortCycleIsAnError(t *testing.T) {
	graph := map[string][]string{
		"a": {"b"},
		"b": {"a"},
	}
	_, err := Sort("a", edgesOf(graph))
	assert.Error(t, err)
}
