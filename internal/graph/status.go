package graph

import "github.com/ldi/nodeflow/pkg/models"

// ComputeStatus derives the status of node from the snapshot s.
// Callers evaluating many nodes should build an Index once and use Index.Status.
func ComputeStatus(node models.Node, s Snapshot) models.ComputedStatus {
	return NewIndex(s).Status(node)
}

// ComputeAll evaluates every node in s independently.
func ComputeAll(s Snapshot) map[string]models.ComputedStatus {
	return NewIndex(s).StatusMap()
}

// StatusMap returns the computed status of every indexed node.
func (idx *Index) StatusMap() map[string]models.ComputedStatus {
	statuses := make(map[string]models.ComputedStatus, len(idx.nodes))
	for id, n := range idx.nodes {
		statuses[id] = idx.Status(*n)
	}
	return statuses
}

// Status applies the derivation rules in order, first match wins:
//  1. BLOCKED if a DEPENDS_ON target's manual status is not DONE
//  2. WAITING if a linked request is OPEN or RESPONDED
//  3. WAITING if the node has an APPROVAL_BY edge and no linked request is APPROVED
//  4. the manual status
//
// Only the direct dependency's manual status is consulted, never its computed status.
func (idx *Index) Status(node models.Node) models.ComputedStatus {
	if len(idx.unmetDependencies(node.ID)) > 0 {
		return models.StatusBlocked
	}
	if idx.hasOpenRequest(node.ID) {
		return models.StatusWaiting
	}
	if idx.awaitingApproval(node.ID) {
		return models.StatusWaiting
	}
	return passthrough(node.ManualStatus)
}

func (idx *Index) unmetDependencies(nodeID string) []string {
	var unmet []string
	for _, depID := range idx.Targets(nodeID, models.RelationDependsOn) {
		dep, ok := idx.nodes[depID]
		if !ok {
			continue
		}
		if dep.ManualStatus != models.ManualStatusDone {
			unmet = append(unmet, depID)
		}
	}
	return unmet
}

func (idx *Index) hasOpenRequest(nodeID string) bool {
	for _, r := range idx.requests[nodeID] {
		if r.Status.IsOpen() {
			return true
		}
	}
	return false
}

func (idx *Index) awaitingApproval(nodeID string) bool {
	if len(idx.Targets(nodeID, models.RelationApprovalBy)) == 0 {
		return false
	}
	for _, r := range idx.requests[nodeID] {
		if r.Status == models.RequestStatusApproved {
			return false
		}
	}
	return true
}

func passthrough(s models.ManualStatus) models.ComputedStatus {
	return models.ComputedStatus(s.OrDefault())
}
