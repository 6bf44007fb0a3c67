// Package graph builds the bipartite claim -> relationship dependency graph
// the scheduler walks.
package graph

import (
	"strings"

	"github.com/ppiankov/veracity/internal/model"
)

// NodeKind distinguishes claim and relationship nodes
type NodeKind int

const (
	ClaimNode NodeKind = iota
	RelationNode
)

// Node is one marker in the graph
type Node struct {
	ID   string
	Kind NodeKind
}

// Graph is a DAG with claims as sources and relationships as sinks
type Graph struct {
	Claims     []string            // claim ids in document order
	Relations  []string            // relationship ids in document order
	Required   map[string][]string // relationship id -> premise claim ids
	Dependents map[string][]string // claim id -> relationships that depend on it
	Order      []Node              // topological order
}

// Build constructs the dependency graph. A dependency on an id that is not a
// parsed claim is ErrUnknownDependency; a cycle is ErrCyclicDependency.
func Build(markers *model.Markers) (*Graph, error) {
	g := &Graph{
		Required:   make(map[string][]string, len(markers.Relationships)),
		Dependents: make(map[string][]string, len(markers.Claims)),
	}

	claims := make(map[string]bool, len(markers.Claims))
	for _, c := range markers.Claims {
		claims[c.ID] = true
		g.Claims = append(g.Claims, c.ID)
	}
	relations := make(map[string]bool, len(markers.Relationships))
	for _, r := range markers.Relationships {
		relations[r.ID] = true
	}

	// adjacency over every node, keyed by id
	edges := make(map[string][]string)
	for _, r := range markers.Relationships {
		span := r.Span
		for _, dep := range r.DependsOn {
			switch {
			case claims[dep]:
			case relations[dep] || strings.HasPrefix(dep, "R"):
				return nil, model.NewStructuralError(model.ErrUnknownDependency, r.ID, &span, "%s is a relationship; dependencies must be claims", dep)
			default:
				return nil, model.NewStructuralError(model.ErrUnknownDependency, r.ID, &span, "%s is not a claim in this document", dep)
			}
			edges[dep] = append(edges[dep], r.ID)
			g.Dependents[dep] = append(g.Dependents[dep], r.ID)
		}
		g.Relations = append(g.Relations, r.ID)
		g.Required[r.ID] = append([]string(nil), r.DependsOn...)
	}

	order, err := topoSort(g.Claims, g.Relations, g.Required, edges)
	if err != nil {
		return nil, err
	}
	g.Order = order

	return g, nil
}

// topoSort runs Kahn's algorithm. With claim-only dependencies the graph is
// acyclic by construction, so a leftover node means the input was corrupt.
func topoSort(claims, relations []string, required, edges map[string][]string) ([]Node, error) {
	indegree := make(map[string]int, len(claims)+len(relations))
	kind := make(map[string]NodeKind, len(claims)+len(relations))
	var queue []string

	for _, id := range claims {
		kind[id] = ClaimNode
		indegree[id] = 0
	}
	for _, id := range relations {
		kind[id] = RelationNode
		indegree[id] = len(required[id])
	}
	for _, id := range claims {
		queue = append(queue, id)
	}
	for _, id := range relations {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]Node, 0, len(indegree))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, Node{ID: id, Kind: kind[id]})

		for _, next := range edges[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(indegree) {
		var stuck []string
		for _, id := range relations {
			if indegree[id] > 0 {
				stuck = append(stuck, id)
			}
		}
		return nil, model.NewStructuralError(model.ErrCyclicDependency, strings.Join(stuck, ","), nil, "%d nodes unreachable in topological order", len(indegree)-len(order))
	}
	return order, nil
}
