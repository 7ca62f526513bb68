package db

import (
	"context"
	"errors"
	"testing"

	"github.com/ldi/nodeflow/pkg/models"
)

func TestProjectCRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	p := &models.Project{Name: "Launch", Description: "Q3 launch"}
	if err := db.CreateProject(ctx, p); err != nil {
		t.Fatalf("Failed to create project: %v", err)
	}
	if p.ID == "" {
		t.Fatal("expected project ID to be generated")
	}

	got, err := db.GetProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("Failed to get project: %v", err)
	}
	if got == nil || got.Name != "Launch" || got.Description != "Q3 launch" {
		t.Errorf("unexpected project: %+v", got)
	}

	byName, err := db.ResolveProject(ctx, "Launch")
	if err != nil {
		t.Fatalf("Failed to resolve project: %v", err)
	}
	if byName == nil || byName.ID != p.ID {
		t.Errorf("expected ResolveProject to find %s by name, got %+v", p.ID, byName)
	}

	p.Description = "Q4 launch"
	if err := db.UpdateProject(ctx, p); err != nil {
		t.Fatalf("Failed to update project: %v", err)
	}
	got, _ = db.GetProject(ctx, p.ID)
	if got.Description != "Q4 launch" {
		t.Errorf("expected updated description, got %q", got.Description)
	}

	projects, err := db.ListProjects(ctx)
	if err != nil {
		t.Fatalf("Failed to list projects: %v", err)
	}
	if len(projects) != 1 {
		t.Errorf("expected 1 project, got %d", len(projects))
	}

	if err := db.DeleteProject(ctx, p.ID); err != nil {
		t.Fatalf("Failed to delete project: %v", err)
	}
	got, err = db.GetProject(ctx, p.ID)
	if err != nil || got != nil {
		t.Errorf("expected deleted project to be missing, got %+v, %v", got, err)
	}

	if err := db.DeleteProject(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestProjectNameUnique(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	mustProject(t, db, "Launch")
	if err := db.CreateProject(ctx, &models.Project{Name: "Launch"}); err == nil {
		t.Error("expected duplicate project name to be rejected")
	}
}
