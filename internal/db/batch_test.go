package db

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ldi/nodeflow/internal/graph"
	"github.com/ldi/nodeflow/pkg/models"
)

func TestCommitBatch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	p := mustProject(t, db, "Launch")
	existing := mustNode(t, db, p.ID, "Existing", "alice", models.ManualStatusTodo)

	session := "s1"
	db.Staging.AddNode(session, &models.Node{ProjectID: p.ID, Title: "Draft", OwnerID: "bob"})
	db.Staging.AddNode(session, &models.Node{ProjectID: p.ID, Title: "Review", OwnerID: "carol"})
	db.Staging.AddEdge(session, &StagedEdge{ProjectID: p.ID, FromTitle: "Review", ToTitle: "Draft", Relation: models.RelationDependsOn})
	db.Staging.AddEdge(session, &StagedEdge{ProjectID: p.ID, FromTitle: "Draft", ToNodeID: existing.ID, Relation: models.RelationDependsOn})

	if err := db.CommitBatch(ctx, session); err != nil {
		t.Fatalf("CommitBatch failed: %v", err)
	}

	nodes, _ := db.ListNodes(ctx, p.ID, nil)
	edges, _ := db.ListEdges(ctx, p.ID)
	if len(nodes) != 3 || len(edges) != 2 {
		t.Errorf("expected 3 nodes and 2 edges, got %d and %d", len(nodes), len(edges))
	}

	if staged := db.Staging.Peek(session); len(staged.Nodes) != 0 {
		t.Errorf("expected session to be cleared after commit, got %v", staged.Nodes)
	}
}

func TestCommitBatch_RollsBackOnCycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	p := mustProject(t, db, "Launch")

	session := "s1"
	db.Staging.AddNode(session, &models.Node{ProjectID: p.ID, Title: "A"})
	db.Staging.AddNode(session, &models.Node{ProjectID: p.ID, Title: "B"})
	db.Staging.AddEdge(session, &StagedEdge{ProjectID: p.ID, FromTitle: "A", ToTitle: "B", Relation: models.RelationDependsOn})
	db.Staging.AddEdge(session, &StagedEdge{ProjectID: p.ID, FromTitle: "B", ToTitle: "A", Relation: models.RelationDependsOn})

	err := db.CommitBatch(ctx, session)
	if !errors.Is(err, graph.ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", err)
	}

	nodes, _ := db.ListNodes(ctx, p.ID, nil)
	edges, _ := db.ListEdges(ctx, p.ID)
	if len(nodes) != 0 || len(edges) != 0 {
		t.Errorf("expected nothing written, got %d nodes and %d edges", len(nodes), len(edges))
	}

	if staged := db.Staging.Peek(session); len(staged.Nodes) != 2 {
		t.Errorf("expected staged items to be kept after a failed commit, got %d nodes", len(staged.Nodes))
	}
}

func TestCommitBatch_UnknownTitle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	p := mustProject(t, db, "Launch")

	db.Staging.AddNode("s1", &models.Node{ProjectID: p.ID, Title: "A"})
	db.Staging.AddEdge("s1", &StagedEdge{ProjectID: p.ID, FromTitle: "A", ToTitle: "Nope", Relation: models.RelationDependsOn})

	if err := db.CommitBatch(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCommitBatch_KeepsNodesStagedDuringCommit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	p := mustProject(t, db, "Launch")

	const rounds = 20
	for i := 0; i < rounds; i++ {
		session := fmt.Sprintf("s%d", i)
		for j := 0; j < 50; j++ {
			db.Staging.AddNode(session, &models.Node{ProjectID: p.ID, Title: fmt.Sprintf("n%d-%d", i, j)})
		}

		late := &models.Node{ProjectID: p.ID, Title: fmt.Sprintf("late-%d", i)}
		var wg sync.WaitGroup
		var commitErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			commitErr = db.CommitBatch(ctx, session)
		}()
		go func() {
			defer wg.Done()
			db.Staging.AddNode(session, late)
		}()
		wg.Wait()
		if commitErr != nil {
			t.Fatalf("CommitBatch failed: %v", commitErr)
		}

		committed, err := db.GetNodeByTitle(ctx, p.ID, late.Title)
		if err != nil {
			t.Fatalf("GetNodeByTitle failed: %v", err)
		}
		stillStaged := false
		for _, n := range db.Staging.Peek(session).Nodes {
			if n == late {
				stillStaged = true
			}
		}
		if committed == nil && !stillStaged {
			t.Fatalf("round %d: node staged during commit was neither committed nor kept staged", i)
		}
	}
}

func TestCommitBatch_FailureKeepsLaterStagedItems(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	p := mustProject(t, db, "Launch")

	session := "s1"
	db.Staging.AddNode(session, &models.Node{ProjectID: p.ID, Title: "A"})
	db.Staging.AddEdge(session, &StagedEdge{ProjectID: p.ID, FromTitle: "A", ToTitle: "Nope", Relation: models.RelationDependsOn})

	if err := db.CommitBatch(ctx, session); err == nil {
		t.Fatal("expected commit to fail")
	}
	db.Staging.AddNode(session, &models.Node{ProjectID: p.ID, Title: "B"})

	staged := db.Staging.Peek(session)
	if len(staged.Nodes) != 2 || staged.Nodes[0].Title != "A" || staged.Nodes[1].Title != "B" {
		t.Errorf("expected restored A before later B, got %v", staged.Nodes)
	}
	if len(staged.Edges) != 1 {
		t.Errorf("expected restored edge, got %v", staged.Edges)
	}
}
