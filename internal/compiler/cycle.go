package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/soqlkit/internal/ir"
)

// CycleWarning represents a loop in the belongs-to graph of a catalog.
//
// Loops are warnings, not errors. A self-reference such as Account.Parent is
// common and reported at info level; a loop through several entities means
// following associations from a hydrated record can come back to its start.
type CycleWarning struct {
	Path    []string `json:"path"`    // Entity path: ["Account", "Contact", "Account"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeCycles reports loops in the belongs-to graph.
//
// The algorithm:
//  1. Build entity → associated entity edges from BelongsTo
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or self-loops
//
// Associations to entities outside the catalog are ignored. Output is
// ordered by the first entity name of each loop.
func AnalyzeCycles(catalog ir.Catalog) []CycleWarning {
	graph := buildAssociationGraph(catalog)

	warnings := []CycleWarning{}
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	slices.SortFunc(warnings, func(a, b CycleWarning) int {
		return strings.Compare(a.Path[0], b.Path[0])
	})
	return warnings
}

// associationGraph maps entity name → names of entities it belongs to.
type associationGraph map[string][]string

func buildAssociationGraph(catalog ir.Catalog) associationGraph {
	graph := make(associationGraph, len(catalog))
	for name, e := range catalog {
		edges := []string{}
		for _, a := range e.BelongsTo {
			if _, ok := catalog[a.Entity]; ok && !slices.Contains(edges, a.Entity) {
				edges = append(edges, a.Entity)
			}
		}
		slices.Sort(edges)
		graph[name] = edges
	}
	return graph
}

func hasSelfLoop(node string, graph associationGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in name order so results are stable.
func tarjanSCC(graph associationGraph) [][]string {
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
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

func cycleSCCToWarning(scc []string, graph associationGraph) CycleWarning {
	if len(scc) == 1 {
		name := scc[0]
		return CycleWarning{
			Path:    []string{name, name},
			Message: fmt.Sprintf("Self-referencing association: %s → %s", name, name),
			Level:   "info",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("Association loop: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}

// reconstructCyclePath follows edges inside the SCC from its first member
// until it returns there.
func reconstructCyclePath(scc []string, graph associationGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool)
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
			if neighbor == current {
				continue
			}
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
