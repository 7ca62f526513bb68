package models

import "time"

type Edge struct {
	FromNodeID string    `json:"from_node_id"`
	ToNodeID   string    `json:"to_node_id"`
	Relation   Relation  `json:"relation"`
	CreatedAt  time.Time `json:"created_at"`
}

// EdgeKey is the identity of an edge. Two edges with the same key cannot coexist.
type EdgeKey struct {
	From     string
	To       string
	Relation Relation
}

func (e Edge) Key() EdgeKey {
	return EdgeKey{From: e.FromNodeID, To: e.ToNodeID, Relation: e.Relation}
}
