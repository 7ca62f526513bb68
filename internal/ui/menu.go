package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	logoStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	itemStyle         = lipgloss.NewStyle().PaddingLeft(2)
	selectedItemStyle = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("12")).Bold(true)
)

const logo = `
 ███╗   ██╗ ██████╗ ██████╗ ███████╗███████╗██╗      ██████╗ ██╗    ██╗
 ████╗  ██║██╔═══██╗██╔══██╗██╔════╝██╔════╝██║     ██╔═══██╗██║    ██║
 ██╔██╗ ██║██║   ██║██║  ██║█████╗  █████╗  ██║     ██║   ██║██║ █╗ ██║
 ██║╚██╗██║██║   ██║██║  ██║██╔══╝  ██╔══╝  ██║     ██║   ██║██║███╗██║
 ██║ ╚████║╚██████╔╝██████╔╝███████╗██║     ███████╗╚██████╔╝╚███╔███╔╝
 ╚═╝  ╚═══╝ ╚═════╝ ╚═════╝ ╚══════╝╚═╝     ╚══════╝ ╚═════╝  ╚══╝╚══╝
`

// allProjects is the project step entry that leaves the project argument off.
const allProjects = "(all projects)"

// projectCommands take an optional project argument the menu asks for.
var projectCommands = map[string]bool{"status": true, "reasons": true}

// Selection is the command picked from the menu and its arguments.
type Selection struct {
	Command string
	Args    []string
}

// MenuModel lets the user pick a command when nodeflow runs without arguments.
// Commands scoped to a project get a second step listing the known projects.
type MenuModel struct {
	choices  []string
	projects []string
	cursor   int

	// command is set while the project step is shown.
	command  string
	selected Selection
	quitting bool
}

func NewMenuModel(projects []string) MenuModel {
	return MenuModel{
		choices:  []string{"init", "status", "reasons", "serve", "mcp", "export"},
		projects: projects,
	}
}

func (m MenuModel) Init() tea.Cmd {
	return nil
}

// items returns the entries of the current step.
func (m MenuModel) items() []string {
	if m.command == "" {
		return m.choices
	}
	return append([]string{allProjects}, m.projects...)
}

func (m MenuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit

		case "esc":
			if m.command != "" {
				m.cursor = indexOf(m.choices, m.command)
				m.command = ""
			}

		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}

		case "down", "j":
			if m.cursor < len(m.items())-1 {
				m.cursor++
			}

		case "enter":
			return m.choose()
		}
	}

	return m, nil
}

func (m MenuModel) choose() (tea.Model, tea.Cmd) {
	if m.command == "" {
		choice := m.choices[m.cursor]
		if projectCommands[choice] && len(m.projects) > 0 {
			m.command = choice
			m.cursor = 0
			return m, nil
		}
		m.selected = Selection{Command: choice}
		return m, tea.Quit
	}

	m.selected = Selection{Command: m.command}
	if m.cursor > 0 {
		m.selected.Args = []string{m.projects[m.cursor-1]}
	}
	return m, tea.Quit
}

func (m MenuModel) View() string {
	if m.quitting {
		return ""
	}

	var s strings.Builder

	s.WriteString(logoStyle.Render(logo))
	s.WriteString("\n\n")

	if m.command != "" {
		s.WriteString(fmt.Sprintf("%s: choose a project\n\n", m.command))
	}

	for i, item := range m.items() {
		if m.cursor == i {
			s.WriteString(selectedItemStyle.Render(fmt.Sprintf("> %s", item)))
		} else {
			s.WriteString(itemStyle.Render(fmt.Sprintf("  %s", item)))
		}
		s.WriteString("\n")
	}

	if m.command != "" {
		s.WriteString("\n(enter to select, esc to go back, q to quit)\n")
	} else {
		s.WriteString("\n(use arrow keys or j/k to navigate, enter to select, q to quit)\n")
	}

	return s.String()
}

func (m MenuModel) Selected() Selection {
	return m.selected
}

func indexOf(items []string, item string) int {
	for i, v := range items {
		if v == item {
			return i
		}
	}
	return 0
}

// RunMenu shows the menu and returns the selection. An empty Command means
// the user quit.
func RunMenu(projects []string) (Selection, error) {
	m := NewMenuModel(projects)
	p := tea.NewProgram(m)
	finalModel, err := p.Run()
	if err != nil {
		return Selection{}, err
	}
	return finalModel.(MenuModel).Selected(), nil
}
