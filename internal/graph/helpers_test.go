package graph

import (
	"github.com/ldi/nodeflow/pkg/models"
)

func node(id string, status models.ManualStatus, owner string) models.Node {
	return models.Node{ID: id, ProjectID: "p1", Title: id, ManualStatus: status, OwnerID: owner}
}

func dependsOn(from, to string) models.Edge {
	return models.Edge{FromNodeID: from, ToNodeID: to, Relation: models.RelationDependsOn}
}

func approvalBy(from, to string) models.Edge {
	return models.Edge{FromNodeID: from, ToNodeID: to, Relation: models.RelationApprovalBy}
}

func request(id, nodeID string, status models.RequestStatus, targetUser string) models.Request {
	return models.Request{ID: id, NodeID: nodeID, Status: status, TargetUserID: targetUser}
}

func nodeIDs(nodes []models.Node) []string {
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	return ids
}
