package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ldi/nodeflow/pkg/models"
)

func TestWaitingReasons(t *testing.T) {
	designer := node("design", models.ManualStatusTodo, "alice")
	designer.OwnerIDs = []string{"bob"}
	legal := node("legal", models.ManualStatusDoing, "")
	legal.TeamIDs = []string{"t-legal"}

	s := Snapshot{
		Nodes: []models.Node{
			node("asking", models.ManualStatusDoing, "carol"),
			node("blocked", models.ManualStatusTodo, "carol"),
			node("approval", models.ManualStatusTodo, "carol"),
			node("free", models.ManualStatusTodo, "carol"),
			designer,
			legal,
		},
		Edges: []models.Edge{
			dependsOn("blocked", "design"),
			dependsOn("blocked", "legal"),
			approvalBy("approval", "design"),
		},
		Requests: []models.Request{
			request("r1", "asking", models.RequestStatusOpen, "alice"),
			{ID: "r2", NodeID: "asking", Status: models.RequestStatusResponded, TargetTeamID: "t-legal"},
			request("r3", "asking", models.RequestStatusOpen, "alice"),
			request("r4", "free", models.RequestStatusClosed, "alice"),
		},
		Teams: []models.Team{{ID: "t-legal", Name: "Legal"}},
		Users: []models.User{{ID: "alice", Name: "Alice"}, {ID: "bob", Name: "Bob"}},
	}

	items := WaitingReasons(s, nil)
	byID := make(map[string]WaitingItem, len(items))
	for _, item := range items {
		byID[item.Node.ID] = item
	}
	require.Len(t, byID, 3)

	asking := byID["asking"]
	assert.Equal(t, models.StatusWaiting, asking.Status)
	assert.Equal(t, ReasonWaitingForResponse, asking.Reason)
	assert.Equal(t, []string{"Alice", "Legal"}, asking.Responsible)

	blocked := byID["blocked"]
	assert.Equal(t, models.StatusBlocked, blocked.Status)
	assert.Equal(t, "Blocked by 2 task(s)", blocked.Reason)
	assert.Equal(t, []string{"Alice", "Bob", "Legal"}, blocked.Responsible)

	approval := byID["approval"]
	assert.Equal(t, ReasonWaitingForApproval, approval.Reason)
	assert.Equal(t, []string{"Alice", "Bob"}, approval.Responsible)
}

func TestWaitingReasons_RequestsCheckedBeforeDependencies(t *testing.T) {
	s := Snapshot{
		Nodes: []models.Node{
			node("a", models.ManualStatusTodo, "u1"),
			node("b", models.ManualStatusTodo, "u2"),
		},
		Edges:    []models.Edge{dependsOn("a", "b")},
		Requests: []models.Request{request("r1", "a", models.RequestStatusOpen, "u3")},
	}

	items := WaitingReasons(s, nil)
	require.Len(t, items, 1)
	assert.Equal(t, models.StatusBlocked, items[0].Status)
	assert.Equal(t, ReasonWaitingForResponse, items[0].Reason)
	assert.Equal(t, []string{"u3"}, items[0].Responsible, "unknown users fall back to their id")
}

func TestWaitingReasons_NothingHeld(t *testing.T) {
	s := Snapshot{Nodes: []models.Node{node("a", models.ManualStatusTodo, "u1")}}
	assert.Empty(t, WaitingReasons(s, nil))
}

func TestWaitingReasons_OpenRequestWithoutTarget(t *testing.T) {
	s := Snapshot{
		Nodes:    []models.Node{node("asking", models.ManualStatusTodo, "carol")},
		Requests: []models.Request{{ID: "r1", NodeID: "asking", Status: models.RequestStatusOpen}},
	}

	items := WaitingReasons(s, nil)
	require.Len(t, items, 1)
	assert.Equal(t, "asking", items[0].Node.ID)
	assert.Equal(t, models.StatusWaiting, items[0].Status)
	assert.Equal(t, ReasonWaitingForResponse, items[0].Reason)
	assert.NotNil(t, items[0].Responsible)
	assert.Empty(t, items[0].Responsible)
}
