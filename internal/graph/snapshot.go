// Package graph derives computed node statuses, cycle checks and per-user
// views from an immutable snapshot of a project's nodes, edges and requests.
// Nothing in this package performs I/O or keeps state between calls.
package graph

import "github.com/ldi/nodeflow/pkg/models"

// Snapshot is everything loaded for one project scope.
type Snapshot struct {
	Nodes    []models.Node    `json:"nodes"`
	Edges    []models.Edge    `json:"edges"`
	Requests []models.Request `json:"requests"`
	Teams    []models.Team    `json:"teams,omitempty"`
	Users    []models.User    `json:"users,omitempty"`
}

// Index holds lookup maps built once per call over a Snapshot.
// The maps point into the snapshot's slices and must be treated as read-only.
type Index struct {
	nodes     map[string]*models.Node
	outgoing  map[string]map[models.Relation][]string // node -> relation -> targets
	requests  map[string][]*models.Request            // node -> linked requests
	teams     map[string]*models.Team
	userNames map[string]string
	dangling  []models.Edge
}

// NewIndex builds the lookup structures for s. Edges whose endpoints are
// missing from s.Nodes are skipped and reported through Dangling.
func NewIndex(s Snapshot) *Index {
	idx := &Index{
		nodes:     make(map[string]*models.Node, len(s.Nodes)),
		outgoing:  make(map[string]map[models.Relation][]string, len(s.Nodes)),
		requests:  make(map[string][]*models.Request),
		teams:     make(map[string]*models.Team, len(s.Teams)),
		userNames: make(map[string]string, len(s.Users)),
	}

	for i := range s.Nodes {
		idx.nodes[s.Nodes[i].ID] = &s.Nodes[i]
	}

	for _, e := range s.Edges {
		if _, ok := idx.nodes[e.FromNodeID]; !ok {
			idx.dangling = append(idx.dangling, e)
			continue
		}
		if _, ok := idx.nodes[e.ToNodeID]; !ok {
			idx.dangling = append(idx.dangling, e)
			continue
		}
		byRelation, ok := idx.outgoing[e.FromNodeID]
		if !ok {
			byRelation = make(map[models.Relation][]string)
			idx.outgoing[e.FromNodeID] = byRelation
		}
		byRelation[e.Relation] = append(byRelation[e.Relation], e.ToNodeID)
	}

	for i := range s.Requests {
		r := &s.Requests[i]
		idx.requests[r.NodeID] = append(idx.requests[r.NodeID], r)
	}

	for i := range s.Teams {
		idx.teams[s.Teams[i].ID] = &s.Teams[i]
	}
	for _, u := range s.Users {
		idx.userNames[u.ID] = u.Name
	}

	return idx
}

// Node returns the node with the given id.
func (idx *Index) Node(id string) (models.Node, bool) {
	n, ok := idx.nodes[id]
	if !ok {
		return models.Node{}, false
	}
	return *n, true
}

// Targets returns the ids a node points at through edges of the given relation.
func (idx *Index) Targets(nodeID string, rel models.Relation) []string {
	return idx.outgoing[nodeID][rel]
}

// Requests returns the requests linked to a node.
func (idx *Index) Requests(nodeID string) []*models.Request {
	return idx.requests[nodeID]
}

// Team returns the team with the given id.
func (idx *Index) Team(id string) (*models.Team, bool) {
	t, ok := idx.teams[id]
	return t, ok
}

// Dangling returns edges that reference nodes absent from the snapshot.
func (idx *Index) Dangling() []models.Edge {
	return idx.dangling
}

// UserName returns the display name for a user id, falling back to the id.
func (idx *Index) UserName(id string) string {
	if name, ok := idx.userNames[id]; ok && name != "" {
		return name
	}
	return id
}

// TeamName returns the display name for a team id, falling back to the id.
func (idx *Index) TeamName(id string) string {
	if t, ok := idx.teams[id]; ok && t.Name != "" {
		return t.Name
	}
	return id
}
