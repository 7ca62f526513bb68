package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	scrollbarTrackStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("236"))

	scrollbarHandleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241"))
)

// ScrollPane shows pre-rendered content in a viewport with a scrollbar.
type ScrollPane struct {
	viewport viewport.Model
	content  string
	ready    bool
}

func NewScrollPane(width, height int) *ScrollPane {
	p := &ScrollPane{}
	p.SetSize(width, height)
	return p
}

// SetSize resizes the pane, leaving one column for the scrollbar.
func (p *ScrollPane) SetSize(width, height int) {
	vpWidth := width
	if width > 0 {
		vpWidth = width - 1
	}
	if !p.ready {
		p.viewport = viewport.New(vpWidth, height)
		p.ready = true
	} else {
		p.viewport.Width = vpWidth
		p.viewport.Height = height
	}
	p.viewport.SetContent(p.content)
}

func (p *ScrollPane) SetContent(content string) {
	p.content = content
	p.viewport.SetContent(content)
	p.viewport.GotoTop()
}

func (p *ScrollPane) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	p.viewport, cmd = p.viewport.Update(msg)
	return cmd
}

func (p *ScrollPane) View() string {
	if !p.ready {
		return ""
	}

	if p.viewport.TotalLineCount() <= p.viewport.Height {
		return p.viewport.View()
	}

	h := p.viewport.Height
	handlePos := int(float64(h-1) * p.viewport.ScrollPercent())

	var sb strings.Builder
	for i := 0; i < h; i++ {
		if i == handlePos {
			sb.WriteString(scrollbarHandleStyle.Render("┃"))
		} else {
			sb.WriteString(scrollbarTrackStyle.Render("│"))
		}
		if i < h-1 {
			sb.WriteString("\n")
		}
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, p.viewport.View(), sb.String())
}

func (p *ScrollPane) Height() int {
	return p.viewport.Height
}
