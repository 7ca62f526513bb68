package graph

import (
	"sort"

	"github.com/ldi/nodeflow/pkg/models"
)

// Transition is a change in one node's computed status between two status maps.
// From is empty for nodes that did not exist before; To is empty for removed nodes.
type Transition struct {
	NodeID string                `json:"node_id"`
	From   models.ComputedStatus `json:"from"`
	To     models.ComputedStatus `json:"to"`
}

// Unblocked reports whether the node left BLOCKED or WAITING for a workable status.
func (t Transition) Unblocked() bool {
	return t.From.IsHeld() && t.To != "" && !t.To.IsHeld()
}

// DiffStatuses lists the nodes whose computed status differs between before and after,
// ordered by node id.
func DiffStatuses(before, after map[string]models.ComputedStatus) []Transition {
	var transitions []Transition
	for id, from := range before {
		to := after[id]
		if from != to {
			transitions = append(transitions, Transition{NodeID: id, From: from, To: to})
		}
	}
	for id, to := range after {
		if _, ok := before[id]; !ok {
			transitions = append(transitions, Transition{NodeID: id, To: to})
		}
	}
	sort.Slice(transitions, func(i, j int) bool {
		return transitions[i].NodeID < transitions[j].NodeID
	})
	return transitions
}
