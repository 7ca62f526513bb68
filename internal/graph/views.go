package graph

import (
	"sort"

	"github.com/ldi/nodeflow/pkg/models"
)

// BlockingPair is one DEPENDS_ON edge where another person's node waits on
// a node owned by the viewing user.
type BlockingPair struct {
	BlockedNode     models.Node `json:"blocked_node"`
	WaitingOnMyNode models.Node `json:"waiting_on_my_node"`
}

// Actionable returns the nodes userID owns that are TODO or DOING and not held
// by a dependency or request. A nil statuses map is computed from s.
func Actionable(s Snapshot, statuses map[string]models.ComputedStatus, userID string) []models.Node {
	statuses = ensureStatuses(s, statuses)
	return filterNodes(s.Nodes, func(n models.Node) bool {
		return n.OwnedBy(userID) && isWorkable(n, statuses)
	})
}

// Waiting returns the nodes userID owns whose computed status is BLOCKED or WAITING.
func Waiting(s Snapshot, statuses map[string]models.ComputedStatus, userID string) []models.Node {
	statuses = ensureStatuses(s, statuses)
	return filterNodes(s.Nodes, func(n models.Node) bool {
		return n.OwnedBy(userID) && statuses[n.ID].IsHeld()
	})
}

// ActionableForTeam is Actionable keyed by team association instead of ownership.
func ActionableForTeam(s Snapshot, statuses map[string]models.ComputedStatus, teamID string) []models.Node {
	statuses = ensureStatuses(s, statuses)
	return filterNodes(s.Nodes, func(n models.Node) bool {
		return n.InTeam(teamID) && isWorkable(n, statuses)
	})
}

// WaitingForTeam is Waiting keyed by team association instead of ownership.
func WaitingForTeam(s Snapshot, statuses map[string]models.ComputedStatus, teamID string) []models.Node {
	statuses = ensureStatuses(s, statuses)
	return filterNodes(s.Nodes, func(n models.Node) bool {
		return n.InTeam(teamID) && statuses[n.ID].IsHeld()
	})
}

// Blocking returns one pair per DEPENDS_ON edge from a node not owned by userID
// onto a node owned by userID whose manual status is not DONE. Blocked nodes
// without any user or team assigned are left out since nobody is waiting on them.
// Pairs follow the order of s.Edges.
func Blocking(s Snapshot, userID string) []BlockingPair {
	idx := NewIndex(s)
	pairs := []BlockingPair{}
	for _, e := range s.Edges {
		if e.Relation != models.RelationDependsOn {
			continue
		}
		blocked, ok := idx.nodes[e.FromNodeID]
		if !ok {
			continue
		}
		mine, ok := idx.nodes[e.ToNodeID]
		if !ok {
			continue
		}
		if !mine.OwnedBy(userID) || mine.ManualStatus == models.ManualStatusDone {
			continue
		}
		if blocked.OwnedBy(userID) || !blocked.HasAssignee() {
			continue
		}
		pairs = append(pairs, BlockingPair{BlockedNode: *blocked, WaitingOnMyNode: *mine})
	}
	return pairs
}

func isWorkable(n models.Node, statuses map[string]models.ComputedStatus) bool {
	if s := n.ManualStatus.OrDefault(); s != models.ManualStatusTodo && s != models.ManualStatusDoing {
		return false
	}
	return !statuses[n.ID].IsHeld()
}

func ensureStatuses(s Snapshot, statuses map[string]models.ComputedStatus) map[string]models.ComputedStatus {
	if statuses != nil {
		return statuses
	}
	return ComputeAll(s)
}

func filterNodes(nodes []models.Node, keep func(models.Node) bool) []models.Node {
	result := make([]models.Node, 0)
	for _, n := range nodes {
		if keep(n) {
			result = append(result, n)
		}
	}
	sortNodes(result)
	return result
}

// sortNodes orders by priority descending, then due date (undated last),
// creation time and id.
func sortNodes(nodes []models.Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if (a.DueAt == nil) != (b.DueAt == nil) {
			return a.DueAt != nil
		}
		if a.DueAt != nil && !a.DueAt.Equal(*b.DueAt) {
			return a.DueAt.Before(*b.DueAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
