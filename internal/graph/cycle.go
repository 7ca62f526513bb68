package graph

import "github.com/ldi/nodeflow/pkg/models"

// WouldCreateCycle reports whether inserting proposed into the DEPENDS_ON
// subgraph formed by existing would close a loop. Edges of other relations
// are never checked and always return false. A self-loop counts as a cycle.
func WouldCreateCycle(existing []models.Edge, proposed models.Edge) bool {
	_, found := FindCyclePath(existing, proposed)
	return found
}

// FindCyclePath returns the path from proposed.ToNodeID to proposed.FromNodeID
// that the proposed DEPENDS_ON edge would close, or nil and false.
func FindCyclePath(existing []models.Edge, proposed models.Edge) ([]string, bool) {
	if proposed.Relation != models.RelationDependsOn {
		return nil, false
	}
	if proposed.FromNodeID == proposed.ToNodeID {
		return []string{proposed.FromNodeID}, true
	}

	adjacency := dependsOnAdjacency(existing)
	adjacency[proposed.FromNodeID] = append(adjacency[proposed.FromNodeID], proposed.ToNodeID)

	start, goal := proposed.ToNodeID, proposed.FromNodeID
	parent := map[string]string{}
	visited := map[string]bool{start: true}
	queue := []string{start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current == goal {
			return walkBack(parent, start, goal), true
		}

		for _, next := range adjacency[current] {
			if visited[next] {
				continue
			}
			visited[next] = true
			parent[next] = current
			queue = append(queue, next)
		}
	}

	return nil, false
}

// ValidateEdge returns the typed rejection for proposed against existing, or
// nil if the edge may be inserted.
func ValidateEdge(existing []models.Edge, proposed models.Edge) error {
	if !proposed.Relation.IsValid() {
		return ErrInvalidRelation
	}
	if proposed.FromNodeID == proposed.ToNodeID {
		return ErrSelfLoop
	}
	key := proposed.Key()
	for _, e := range existing {
		if e.Key() == key {
			return ErrDuplicateEdge
		}
	}
	if path, found := FindCyclePath(existing, proposed); found {
		return &CycleError{Path: path}
	}
	return nil
}

func dependsOnAdjacency(edges []models.Edge) map[string][]string {
	adjacency := make(map[string][]string, len(edges))
	for _, e := range edges {
		if e.Relation != models.RelationDependsOn {
			continue
		}
		adjacency[e.FromNodeID] = append(adjacency[e.FromNodeID], e.ToNodeID)
	}
	return adjacency
}

func walkBack(parent map[string]string, start, goal string) []string {
	path := []string{goal}
	for current := goal; current != start; {
		current = parent[current]
		path = append(path, current)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
