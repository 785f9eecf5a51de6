package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/peephole/internal/combine"
)

// CycleWarning represents a potential rewrite loop between rules.
//
// Cycles are warnings, not errors, because most are harmless:
//   - A normalizing rule that stops matching once applied
//   - A rule whose output only re-enters its own anchor with a guard that
//     rejects it the second time
//
// The driver's iteration budget bounds the ones that are not.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["rule-a", "rule-b", "rule-a"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeCycles performs static interaction analysis over enabled rules.
//
// Rule A feeds rule B when one of the opcodes A may create or mutate into
// is B's anchor. Any strongly connected component of that graph, or a rule
// that feeds itself, is a potential loop.
//
// The algorithm:
//  1. Build rule -> rule edges from Produces and anchor opcodes
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or self-loops as a potential cycle warning
//
// Nodes are visited in table order, so the output is deterministic.
func AnalyzeCycles(rs []combine.Rule) []CycleWarning {
	if len(rs) == 0 {
		return []CycleWarning{}
	}

	graph, order := buildDependencyGraph(rs)
	sccs := tarjanSCC(graph, order)

	warnings := []CycleWarning{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph, order))
		}
	}
	return warnings
}

// EnabledRules returns the rules c runs, in table order.
func EnabledRules(c *combine.Combiner) []combine.Rule {
	var out []combine.Rule
	for _, r := range c.Table().Rules() {
		if c.Enabled(r.Number) {
			out = append(out, r)
		}
	}
	return out
}

// dependencyGraph maps rule ID -> rules that could fire on its output.
type dependencyGraph map[string][]string

func buildDependencyGraph(rs []combine.Rule) (dependencyGraph, []string) {
	graph := make(dependencyGraph, len(rs))
	order := make([]string, 0, len(rs))

	for _, r := range rs {
		order = append(order, r.ID)
		graph[r.ID] = []string{}
	}
	for _, from := range rs {
		for _, to := range rs {
			if slices.Contains(from.Produces, to.Opcode) {
				graph[from.ID] = append(graph[from.ID], to.ID)
			}
		}
	}
	return graph, order
}

func hasSelfLoop(node string, graph dependencyGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
func tarjanSCC(graph dependencyGraph, order []string) [][]string {
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

		for _, w := range graph[v] {
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

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// cycleSCCToWarning converts an SCC to a CycleWarning. The path starts at
// the member declared first.
func cycleSCCToWarning(scc []string, graph dependencyGraph, order []string) CycleWarning {
	if len(scc) == 1 {
		id := scc[0]
		return CycleWarning{
			Path:    []string{id, id},
			Message: fmt.Sprintf("Rule may re-trigger itself: %s -> %s", id, id),
			Level:   "warning",
		}
	}

	slices.SortFunc(scc, func(a, b string) int {
		return slices.Index(order, a) - slices.Index(order, b)
	})
	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("Potential rewrite cycle: %s", strings.Join(path, " -> ")),
		Level:   "warning",
	}
}

// reconstructCyclePath follows edges inside the SCC from its first member
// until it returns there.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool, len(scc))
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
