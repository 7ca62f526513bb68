package db

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ldi/nodeflow/internal/graph"
	"github.com/ldi/nodeflow/pkg/models"
)

func TestCreateEdge_Rejections(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	p := mustProject(t, db, "Launch")

	a := mustNode(t, db, p.ID, "A", "alice", models.ManualStatusTodo)
	b := mustNode(t, db, p.ID, "B", "bob", models.ManualStatusTodo)
	c := mustNode(t, db, p.ID, "C", "carol", models.ManualStatusTodo)
	mustEdge(t, db, a.ID, b.ID, models.RelationDependsOn)
	mustEdge(t, db, b.ID, c.ID, models.RelationDependsOn)

	err := db.CreateEdge(ctx, &models.Edge{FromNodeID: c.ID, ToNodeID: a.ID, Relation: models.RelationDependsOn})
	require.ErrorIs(t, err, graph.ErrCycle)
	var cycleErr *graph.CycleError
	require.True(t, errors.As(err, &cycleErr))
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, cycleErr.Path)

	err = db.CreateEdge(ctx, &models.Edge{FromNodeID: a.ID, ToNodeID: b.ID, Relation: models.RelationDependsOn})
	assert.ErrorIs(t, err, graph.ErrDuplicateEdge)

	err = db.CreateEdge(ctx, &models.Edge{FromNodeID: a.ID, ToNodeID: a.ID, Relation: models.RelationRelatesTo})
	assert.ErrorIs(t, err, graph.ErrSelfLoop)

	err = db.CreateEdge(ctx, &models.Edge{FromNodeID: a.ID, ToNodeID: "missing", Relation: models.RelationDependsOn})
	assert.ErrorIs(t, err, ErrNotFound)

	edges, err := db.ListEdges(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, edges, 2, "rejected edges must not be written")

	// The reverse direction under another relation is not a dependency cycle.
	require.NoError(t, db.CreateEdge(ctx, &models.Edge{FromNodeID: c.ID, ToNodeID: a.ID, Relation: models.RelationApprovalBy}))
}

func TestCreateEdge_CrossProject(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a := mustNode(t, db, mustProject(t, db, "One").ID, "A", "alice", models.ManualStatusTodo)
	b := mustNode(t, db, mustProject(t, db, "Two").ID, "B", "bob", models.ManualStatusTodo)

	err := db.CreateEdge(ctx, &models.Edge{FromNodeID: a.ID, ToNodeID: b.ID, Relation: models.RelationDependsOn})
	assert.ErrorIs(t, err, ErrCrossProject)
}

func TestCheckEdge_DoesNotWrite(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	p := mustProject(t, db, "Launch")

	a := mustNode(t, db, p.ID, "A", "alice", models.ManualStatusTodo)
	b := mustNode(t, db, p.ID, "B", "bob", models.ManualStatusTodo)
	mustEdge(t, db, a.ID, b.ID, models.RelationDependsOn)

	assert.ErrorIs(t, db.CheckEdge(ctx, models.Edge{FromNodeID: b.ID, ToNodeID: a.ID, Relation: models.RelationDependsOn}), graph.ErrCycle)
	assert.NoError(t, db.CheckEdge(ctx, models.Edge{FromNodeID: b.ID, ToNodeID: a.ID, Relation: models.RelationRelatesTo}))

	edges, err := db.ListEdges(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, edges, 1)
}

func TestUpdateEdgeRelation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	p := mustProject(t, db, "Launch")

	a := mustNode(t, db, p.ID, "A", "alice", models.ManualStatusTodo)
	b := mustNode(t, db, p.ID, "B", "bob", models.ManualStatusTodo)
	mustEdge(t, db, a.ID, b.ID, models.RelationDependsOn)
	mustEdge(t, db, b.ID, a.ID, models.RelationRelatesTo)

	err := db.UpdateEdgeRelation(ctx, b.ID, a.ID, models.RelationRelatesTo, models.RelationDependsOn)
	assert.ErrorIs(t, err, graph.ErrCycle)

	require.NoError(t, db.UpdateEdgeRelation(ctx, b.ID, a.ID, models.RelationRelatesTo, models.RelationApprovalBy))
	edges, err := db.ListEdges(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, edges, 2)
	relations := map[string]models.Relation{}
	for _, e := range edges {
		relations[e.FromNodeID] = e.Relation
	}
	assert.Equal(t, models.RelationApprovalBy, relations[b.ID])

	err = db.UpdateEdgeRelation(ctx, b.ID, a.ID, models.RelationRelatesTo, models.RelationDependsOn)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteEdge(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	p := mustProject(t, db, "Launch")

	a := mustNode(t, db, p.ID, "A", "alice", models.ManualStatusTodo)
	b := mustNode(t, db, p.ID, "B", "bob", models.ManualStatusTodo)
	mustEdge(t, db, a.ID, b.ID, models.RelationDependsOn)

	require.NoError(t, db.DeleteEdge(ctx, a.ID, b.ID, models.RelationDependsOn))
	assert.ErrorIs(t, db.DeleteEdge(ctx, a.ID, b.ID, models.RelationDependsOn), ErrNotFound)

	// With the edge gone the reverse dependency is allowed.
	mustEdge(t, db, b.ID, a.ID, models.RelationDependsOn)
}
