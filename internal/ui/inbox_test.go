package ui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ldi/nodeflow/internal/graph"
	"github.com/ldi/nodeflow/pkg/models"
)

func inboxSnapshot() graph.Snapshot {
	return graph.Snapshot{
		Nodes: []models.Node{
			{ID: "a", Title: "draft contract", OwnerID: "alice", ManualStatus: models.ManualStatusDoing},
			{ID: "b", Title: "sign contract", OwnerID: "bob", ManualStatus: models.ManualStatusTodo},
			{ID: "c", Title: "book venue", OwnerID: "alice", ManualStatus: models.ManualStatusTodo},
		},
		Edges: []models.Edge{
			{FromNodeID: "b", ToNodeID: "a", Relation: models.RelationDependsOn},
		},
		Requests: []models.Request{
			{ID: "r1", NodeID: "c", Status: models.RequestStatusOpen, TargetUserID: "carol"},
		},
		Users: []models.User{{ID: "bob", Name: "Bob"}, {ID: "carol", Name: "Carol"}},
	}
}

func TestBuildInbox(t *testing.T) {
	inbox := BuildInbox(inboxSnapshot(), "alice", 80)

	if len(inbox.Todos) != 1 || inbox.Todos[0].Title != "draft contract" {
		t.Errorf("expected draft contract as only todo, got %+v", inbox.Todos)
	}
	if len(inbox.Waiting) != 1 || inbox.Waiting[0].Title != "book venue" {
		t.Fatalf("expected book venue as only waiting node, got %+v", inbox.Waiting)
	}
	if !strings.Contains(inbox.Waiting[0].Detail, "Waiting for response") || !strings.Contains(inbox.Waiting[0].Detail, "Carol") {
		t.Errorf("unexpected waiting detail: %q", inbox.Waiting[0].Detail)
	}
	if len(inbox.Blocking) != 1 || inbox.Blocking[0].Title != "sign contract" {
		t.Fatalf("expected sign contract to be blocked by alice, got %+v", inbox.Blocking)
	}
	if !strings.Contains(inbox.Blocking[0].Detail, "Bob") {
		t.Errorf("expected blocking detail to name Bob, got %q", inbox.Blocking[0].Detail)
	}
}

func TestBuildInboxOtherUser(t *testing.T) {
	inbox := BuildInbox(inboxSnapshot(), "bob", 80)

	if len(inbox.Todos) != 0 {
		t.Errorf("expected no todos for bob, got %+v", inbox.Todos)
	}
	if len(inbox.Waiting) != 1 || !strings.Contains(inbox.Waiting[0].Detail, "Blocked by 1 task(s)") {
		t.Errorf("expected sign contract blocked, got %+v", inbox.Waiting)
	}
	if len(inbox.Blocking) != 0 {
		t.Errorf("expected bob to block nobody, got %+v", inbox.Blocking)
	}
}

func TestInboxModel(t *testing.T) {
	calls := 0
	m := NewInboxModel("alice", func() (graph.Snapshot, error) {
		calls++
		return inboxSnapshot(), nil
	})

	model, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = model.(InboxModel)

	msg := m.Init()()
	model, _ = m.Update(msg)
	m = model.(InboxModel)

	if calls != 1 {
		t.Errorf("expected one load, got %d", calls)
	}
	view := m.View()
	if !strings.Contains(view, "draft contract") {
		t.Errorf("expected view to contain todo, got %q", view)
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if cmd == nil {
		t.Fatal("expected refresh command after 'r'")
	}
	cmd()
	if calls != 2 {
		t.Errorf("expected reload after 'r', got %d loads", calls)
	}

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Error("expected quit command after 'q'")
	}
}

func TestInboxModelLoadError(t *testing.T) {
	m := NewInboxModel("alice", func() (graph.Snapshot, error) {
		return graph.Snapshot{}, errors.New("database locked")
	})

	model, _ := m.Update(m.Init()())
	m = model.(InboxModel)

	if !strings.Contains(m.View(), "database locked") {
		t.Errorf("expected error in view, got %q", m.View())
	}
}
