package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	todoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("42")).
			Padding(0, 1)

	waitingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("214")).
			Padding(0, 1)

	blockingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("196")).
			Padding(0, 1)

	inboxHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("252")).
				Padding(0, 1)

	subTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	detailStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	placeholderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Italic(true).
				Padding(0, 1)
)

// InboxItem is one line in an inbox section.
type InboxItem struct {
	Title  string
	Detail string
}

// Inbox renders a user's todos, held nodes and the nodes they are holding up.
type Inbox struct {
	Todos    []InboxItem
	Waiting  []InboxItem
	Blocking []InboxItem
	Width    int
	Title    string
}

func NewInbox(width int) *Inbox {
	return &Inbox{
		Todos:    make([]InboxItem, 0),
		Waiting:  make([]InboxItem, 0),
		Blocking: make([]InboxItem, 0),
		Width:    width,
		Title:    "Inbox",
	}
}

func (c *Inbox) Empty() bool {
	return len(c.Todos) == 0 && len(c.Waiting) == 0 && len(c.Blocking) == 0
}

func (c *Inbox) View() string {
	var boxes []string

	if len(c.Todos) > 0 {
		boxes = append(boxes, c.renderBox("To do", c.Todos, todoStyle, "•"))
	}

	if len(c.Waiting) > 0 {
		boxes = append(boxes, c.renderBox("Waiting", c.Waiting, waitingStyle, "…"))
	}

	if len(c.Blocking) > 0 {
		boxes = append(boxes, c.renderBox("Blocking others", c.Blocking, blockingStyle, "!"))
	}

	var content string
	if len(boxes) == 0 {
		content = placeholderStyle.Render("Nothing to do")
	} else {
		content = strings.Join(boxes, "\n")
	}

	if c.Title != "" {
		return inboxHeaderStyle.Render(c.Title) + "\n" + content
	}
	return content
}

func (c *Inbox) renderBox(title string, items []InboxItem, style lipgloss.Style, icon string) string {
	subTitle := subTitleStyle.Foreground(style.GetForeground()).Render(fmt.Sprintf("%s (%d)", title, len(items)))

	// Width excludes the border, which adds one column on each side.
	boxWidth := max(c.Width-2, 0)
	innerWidth := max(boxWidth-2, 0)
	nameWidth := max(innerWidth-2, 0)

	var lines []string
	for _, item := range items {
		text := item.Title
		if item.Detail != "" {
			text += " " + detailStyle.Render(item.Detail)
		}
		wrapped := lipgloss.NewStyle().Width(nameWidth).Render(text)
		for i, line := range strings.Split(wrapped, "\n") {
			if i == 0 {
				lines = append(lines, fmt.Sprintf("%s %s", icon, line))
			} else {
				lines = append(lines, fmt.Sprintf("  %s", line))
			}
		}
	}

	body := strings.Join(lines, "\n")
	return style.Width(boxWidth).Render(subTitle + "\n" + body)
}
