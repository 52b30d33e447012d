package scheduler

import "fmt"

// Graph is a dependency graph over task names. Edges point from a task to
// the tasks it depends on.
type Graph struct {
	order    []string
	nodes    map[string]bool
	edges    map[string][]string // node -> list of nodes it depends on
	inDegree map[string]int      // node -> number of incoming edges
}

// NewGraph creates a new empty dependency graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[string]bool),
		edges:    make(map[string][]string),
		inDegree: make(map[string]int),
	}
}

// AddNode adds a node to the graph.
func (g *Graph) AddNode(id string) {
	if !g.nodes[id] {
		g.nodes[id] = true
		g.order = append(g.order, id)
		g.inDegree[id] = 0
	}
}

// AddEdge records that 'from' depends on 'to'.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)

	g.edges[from] = append(g.edges[from], to)
	g.inDegree[from]++
}

// TopologicalSort returns the nodes in a valid execution order, resolving
// ties by insertion order so that output is deterministic. Returns an error
// if a cycle is detected.
func (g *Graph) TopologicalSort() ([]string, error) {
	inDegree := make(map[string]int)
	for node, degree := range g.inDegree {
		inDegree[node] = degree
	}

	var queue []string
	for _, node := range g.order {
		if inDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	var result []string
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)

		// Reduce the in-degree of every node that depends on current
		for _, node := range g.order {
			for _, depID := range g.edges[node] {
				if depID == current {
					inDegree[node]--
					if inDegree[node] == 0 {
						queue = append(queue, node)
					}
				}
			}
		}
	}

	if len(result) != len(g.nodes) {
		return nil, fmt.Errorf("circular dependency detected among tasks %v", g.Unsortable())
	}

	return result, nil
}

// Unsortable returns the nodes that can never be scheduled: participants in
// a dependency cycle, plus anything downstream of one.
func (g *Graph) Unsortable() []string {
	inDegree := make(map[string]int)
	for node, degree := range g.inDegree {
		inDegree[node] = degree
	}

	var queue []string
	for _, node := range g.order {
		if inDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	sorted := make(map[string]bool)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		sorted[current] = true

		for _, node := range g.order {
			for _, depID := range g.edges[node] {
				if depID == current {
					inDegree[node]--
					if inDegree[node] == 0 {
						queue = append(queue, node)
					}
				}
			}
		}
	}

	var stuck []string
	for _, node := range g.order {
		if !sorted[node] {
			stuck = append(stuck, node)
		}
	}
	return stuck
}

// missingDependencies returns, per task, the declared dependencies that were
// never registered as tasks in their own right.
func missingDependencies(tasks map[string]*Task, order []string) map[string][]string {
	missing := make(map[string][]string)
	for _, name := range order {
		for _, dep := range tasks[name].DependsOn {
			if _, ok := tasks[dep]; !ok {
				missing[name] = append(missing[name], dep)
			}
		}
	}
	return missing
}
