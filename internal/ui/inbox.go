package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ldi/nodeflow/internal/graph"
	"github.com/ldi/nodeflow/internal/ui/components"
)

var (
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// BuildInbox renders the todos, waiting and blocking views of s for userID.
func BuildInbox(s graph.Snapshot, userID string, width int) *components.Inbox {
	inbox := components.NewInbox(width)
	inbox.Title = fmt.Sprintf("Inbox for %s", userID)

	statuses := graph.ComputeAll(s)
	for _, n := range graph.Actionable(s, statuses, userID) {
		inbox.Todos = append(inbox.Todos, components.InboxItem{Title: n.Title, Detail: string(statuses[n.ID])})
	}

	reasons := make(map[string]graph.WaitingItem)
	for _, item := range graph.WaitingReasons(s, statuses) {
		reasons[item.Node.ID] = item
	}
	for _, n := range graph.Waiting(s, statuses, userID) {
		detail := string(statuses[n.ID])
		if r, ok := reasons[n.ID]; ok {
			detail = r.Reason
			if len(r.Responsible) > 0 {
				detail += " (" + strings.Join(r.Responsible, ", ") + ")"
			}
		}
		inbox.Waiting = append(inbox.Waiting, components.InboxItem{Title: n.Title, Detail: detail})
	}

	idx := graph.NewIndex(s)
	for _, pair := range graph.Blocking(s, userID) {
		names := make([]string, 0, len(pair.BlockedNode.Owners()))
		for _, id := range pair.BlockedNode.Owners() {
			names = append(names, idx.UserName(id))
		}
		detail := fmt.Sprintf("%s waits on %s", pair.BlockedNode.Title, pair.WaitingOnMyNode.Title)
		if len(names) > 0 {
			detail += " for " + strings.Join(names, ", ")
		}
		inbox.Blocking = append(inbox.Blocking, components.InboxItem{Title: pair.BlockedNode.Title, Detail: detail})
	}

	return inbox
}

// LoadFunc loads a fresh snapshot for the inbox.
type LoadFunc func() (graph.Snapshot, error)

type inboxLoadedMsg struct {
	snapshot graph.Snapshot
	err      error
}

// InboxModel is a scrollable, refreshable inbox for one user.
type InboxModel struct {
	load   LoadFunc
	userID string
	pane   *components.ScrollPane
	width  int
	err    error
}

func NewInboxModel(userID string, load LoadFunc) InboxModel {
	return InboxModel{
		load:   load,
		userID: userID,
		pane:   components.NewScrollPane(80, 20),
		width:  80,
	}
}

func (m InboxModel) Init() tea.Cmd {
	return m.refresh
}

func (m InboxModel) refresh() tea.Msg {
	s, err := m.load()
	return inboxLoadedMsg{snapshot: s, err: err}
}

func (m InboxModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			return m, m.refresh
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		// leave a line for the help text
		m.pane.SetSize(msg.Width, max(msg.Height-1, 1))
		return m, nil

	case inboxLoadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.pane.SetContent(BuildInbox(msg.snapshot, m.userID, max(m.width-1, 10)).View())
		}
		return m, nil
	}

	return m, m.pane.Update(msg)
}

func (m InboxModel) View() string {
	var s strings.Builder
	if m.err != nil {
		s.WriteString(errorStyle.Render(fmt.Sprintf("failed to load inbox: %v", m.err)))
		s.WriteString("\n")
	} else {
		s.WriteString(m.pane.View())
		s.WriteString("\n")
	}
	s.WriteString(helpStyle.Render("(r to refresh, arrows to scroll, q to quit)"))
	return s.String()
}

// RunInbox runs the interactive inbox until the user quits.
func RunInbox(userID string, load LoadFunc) error {
	p := tea.NewProgram(NewInboxModel(userID, load), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
