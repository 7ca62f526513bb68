package graph

import (
	"fmt"

	"github.com/ldi/nodeflow/pkg/models"
)

const (
	ReasonWaitingForResponse = "Waiting for response"
	ReasonWaitingForApproval = "Waiting for approval"
)

// WaitingItem explains why a held node is held and who can release it.
type WaitingItem struct {
	Node        models.Node           `json:"node"`
	Status      models.ComputedStatus `json:"status"`
	Reason      string                `json:"reason"`
	Responsible []string              `json:"responsible"`
}

// WaitingReasons lists every BLOCKED or WAITING node in s with a readable
// reason. Requests are checked first, then unmet dependencies, then approvals.
// Responsible names are deduplicated in order of first appearance.
func WaitingReasons(s Snapshot, statuses map[string]models.ComputedStatus) []WaitingItem {
	idx := NewIndex(s)
	if statuses == nil {
		statuses = idx.StatusMap()
	}

	held := filterNodes(s.Nodes, func(n models.Node) bool {
		return statuses[n.ID].IsHeld()
	})

	items := make([]WaitingItem, 0, len(held))
	for _, n := range held {
		reason, responsible := idx.reason(n, statuses[n.ID])
		if reason == "" {
			continue
		}
		items = append(items, WaitingItem{
			Node:        n,
			Status:      statuses[n.ID],
			Reason:      reason,
			Responsible: responsible,
		})
	}
	return items
}

func (idx *Index) reason(n models.Node, status models.ComputedStatus) (string, []string) {
	names := newNameSet()

	open := false
	for _, r := range idx.requests[n.ID] {
		if !r.Status.IsOpen() {
			continue
		}
		open = true
		if r.TargetUserID != "" {
			names.add(idx.UserName(r.TargetUserID))
		} else if r.TargetTeamID != "" {
			names.add(idx.TeamName(r.TargetTeamID))
		}
	}
	// An open request holds the node even when its target no longer resolves.
	if open {
		return ReasonWaitingForResponse, names.list()
	}

	if status == models.StatusBlocked {
		unmet := idx.unmetDependencies(n.ID)
		for _, depID := range unmet {
			idx.addResponsible(names, *idx.nodes[depID])
		}
		return fmt.Sprintf("Blocked by %d task(s)", len(unmet)), names.list()
	}

	if idx.awaitingApproval(n.ID) {
		for _, targetID := range idx.Targets(n.ID, models.RelationApprovalBy) {
			idx.addResponsible(names, *idx.nodes[targetID])
		}
		return ReasonWaitingForApproval, names.list()
	}

	return "", nil
}

// addResponsible adds the owners of n, or its teams when nobody owns it.
func (idx *Index) addResponsible(names *nameSet, n models.Node) {
	owners := n.Owners()
	for _, id := range owners {
		names.add(idx.UserName(id))
	}
	if len(owners) > 0 {
		return
	}
	for _, id := range n.TeamIDs {
		names.add(idx.TeamName(id))
	}
}

type nameSet struct {
	seen  map[string]struct{}
	names []string
}

func newNameSet() *nameSet {
	return &nameSet{seen: make(map[string]struct{})}
}

func (s *nameSet) add(name string) {
	if name == "" {
		return
	}
	if _, ok := s.seen[name]; ok {
		return
	}
	s.seen[name] = struct{}{}
	s.names = append(s.names, name)
}

func (s *nameSet) list() []string {
	if s.names == nil {
		return []string{}
	}
	return s.names
}
