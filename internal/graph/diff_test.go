package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ldi/nodeflow/pkg/models"
)

func TestDiffStatuses(t *testing.T) {
	before := Snapshot{
		Nodes: []models.Node{node("a", models.ManualStatusDoing, "u1"), node("b", models.ManualStatusTodo, "u2")},
		Edges: []models.Edge{dependsOn("b", "a")},
	}
	after := Snapshot{
		Nodes: []models.Node{
			node("a", models.ManualStatusDone, "u1"),
			node("b", models.ManualStatusTodo, "u2"),
			node("c", models.ManualStatusTodo, "u2"),
		},
		Edges: []models.Edge{dependsOn("b", "a")},
	}

	transitions := DiffStatuses(ComputeAll(before), ComputeAll(after))
	require.Len(t, transitions, 3)

	assert.Equal(t, Transition{NodeID: "a", From: models.StatusDoing, To: models.StatusDone}, transitions[0])
	assert.Equal(t, Transition{NodeID: "b", From: models.StatusBlocked, To: models.StatusTodo}, transitions[1])
	assert.True(t, transitions[1].Unblocked())
	assert.Equal(t, Transition{NodeID: "c", To: models.StatusTodo}, transitions[2])
	assert.False(t, transitions[2].Unblocked())
}

func TestDiffStatuses_RemovedNode(t *testing.T) {
	transitions := DiffStatuses(
		map[string]models.ComputedStatus{"a": models.StatusWaiting},
		map[string]models.ComputedStatus{},
	)
	require.Len(t, transitions, 1)
	assert.Equal(t, models.ComputedStatus(""), transitions[0].To)
	assert.False(t, transitions[0].Unblocked())
}
