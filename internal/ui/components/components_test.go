package components

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestInbox(t *testing.T) {
	c := NewInbox(80)
	c.Title = "alice"

	c.Todos = append(c.Todos, InboxItem{Title: "write copy"})
	c.Waiting = append(c.Waiting, InboxItem{Title: "ship", Detail: "Blocked by 1 task(s)"})
	c.Blocking = append(c.Blocking, InboxItem{Title: "review", Detail: "bob is waiting"})

	view := c.View()

	for _, want := range []string{"alice", "To do (1)", "Waiting (1)", "Blocking others (1)", "• write copy", "… ship", "! review", "Blocked by 1 task(s)"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}
}

func TestInboxOrder(t *testing.T) {
	c := NewInbox(40)
	c.Todos = []InboxItem{{Title: "first"}, {Title: "second"}, {Title: "third"}}

	view := c.View()
	firstIdx := strings.Index(view, "first")
	secondIdx := strings.Index(view, "second")
	thirdIdx := strings.Index(view, "third")

	if firstIdx == -1 || secondIdx == -1 || thirdIdx == -1 {
		t.Fatalf("expected all items to be present")
	}
	if !(firstIdx < secondIdx && secondIdx < thirdIdx) {
		t.Errorf("expected items in input order, got indices: %d, %d, %d", firstIdx, secondIdx, thirdIdx)
	}
}

func TestInboxEmptyState(t *testing.T) {
	c := NewInbox(80)
	if !c.Empty() {
		t.Error("expected new inbox to be empty")
	}
	if !strings.Contains(c.View(), "Nothing to do") {
		t.Errorf("expected placeholder when inbox is empty")
	}

	c.Todos = append(c.Todos, InboxItem{Title: "task1"})
	view := c.View()
	if !strings.Contains(view, "To do") {
		t.Errorf("expected To do box")
	}
	if strings.Contains(view, "Waiting") {
		t.Errorf("expected NO Waiting box when empty")
	}
}

func TestInboxWidth(t *testing.T) {
	width := 20
	c := NewInbox(width)
	c.Todos = append(c.Todos, InboxItem{Title: "a rather long node title that must wrap"})

	for _, line := range strings.Split(c.View(), "\n") {
		if line == "" {
			continue
		}
		if w := lipgloss.Width(line); w > width {
			t.Errorf("line too wide: %d > %d. Line: %q", w, width, line)
		}
	}
}

func TestInboxWidthAllSections(t *testing.T) {
	for _, width := range []int{20, 33, 60} {
		c := NewInbox(width)
		c.Todos = []InboxItem{{Title: "write the launch announcement", Detail: "TODO"}}
		c.Waiting = []InboxItem{{Title: "ship", Detail: "Waiting for response (Legal, Carol)"}}
		c.Blocking = []InboxItem{{Title: "review", Detail: "review waits on draft for bob"}}

		view := c.View()
		maxWidth := 0
		for _, line := range strings.Split(view, "\n") {
			maxWidth = max(maxWidth, lipgloss.Width(line))
		}
		if maxWidth > width {
			t.Errorf("width %d: widest line is %d columns", width, maxWidth)
		}
		if maxWidth != width {
			t.Errorf("width %d: expected boxes to fill the width, widest line is %d", width, maxWidth)
		}
	}
}

func TestScrollPaneScrollbar(t *testing.T) {
	width, height := 20, 5
	p := NewScrollPane(width, height)
	p.SetContent(strings.Repeat("line\n", 10))

	view := p.View()
	if !strings.Contains(view, "┃") {
		t.Errorf("expected view to contain scrollbar handle '┃'")
	}
	if !strings.Contains(view, "│") {
		t.Errorf("expected view to contain scrollbar track '│'")
	}
}

func TestScrollPaneNoScrollbar(t *testing.T) {
	p := NewScrollPane(20, 10)
	p.SetContent("short content")

	view := p.View()
	if !strings.Contains(view, "short content") {
		t.Errorf("expected view to contain content")
	}
	if strings.Contains(view, "┃") || strings.Contains(view, "│") {
		t.Errorf("expected view to NOT contain scrollbar when content fits")
	}
}

func TestScrollPaneResize(t *testing.T) {
	p := NewScrollPane(80, 10)
	p.SetContent("content")
	p.SetSize(40, 3)

	if p.Height() != 3 {
		t.Errorf("expected height 3 after resize, got %d", p.Height())
	}
}
