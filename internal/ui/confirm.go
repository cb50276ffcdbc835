package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// maxDetails caps the detail lines shown under a confirmation prompt.
const maxDetails = 8

// ConfirmModel asks a yes/no question about a destructive action. The
// detail lines name what the action touches.
type ConfirmModel struct {
	prompt    string
	details   []string
	yes       bool
	answered  bool
	cancelled bool
}

// NewConfirm creates a confirmation prompt with yes preselected when
// defaultYes is set.
func NewConfirm(prompt string, defaultYes bool, details ...string) ConfirmModel {
	return ConfirmModel{
		prompt:  prompt,
		details: details,
		yes:     defaultYes,
	}
}

func (m ConfirmModel) Init() tea.Cmd {
	return nil
}

func (m ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "y", "Y":
		m.yes = true
	case "n", "N":
		m.yes = false
	case "enter":
	case "left", "right", "h", "l", "tab":
		m.yes = !m.yes
		return m, nil
	case "ctrl+c", "esc", "q":
		m.cancelled = true
		return m, tea.Quit
	default:
		return m, nil
	}
	m.answered = true
	return m, tea.Quit
}

func (m ConfirmModel) View() string {
	if m.answered || m.cancelled {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", IconAsk, SubtitleStyle.Render(m.prompt))
	for i, d := range m.details {
		if i == maxDetails {
			fmt.Fprintf(&b, "    %s\n", HelpStyle.Render(fmt.Sprintf("and %d more", len(m.details)-maxDetails)))
			break
		}
		fmt.Fprintf(&b, "    %s\n", d)
	}

	yes, no := UnselectedStyle.Render("yes"), SelectedStyle.Render("no")
	if m.yes {
		yes, no = SelectedStyle.Render("yes"), UnselectedStyle.Render("no")
	}
	fmt.Fprintf(&b, "\n  %s / %s\n\n", yes, no)
	b.WriteString(HelpStyle.Render("y/n: answer • ←/→: toggle • enter: accept • esc: cancel"))
	return b.String()
}

// Answer reports the decision. A dismissed prompt returns ErrCancelled.
func (m ConfirmModel) Answer() (bool, error) {
	if m.cancelled {
		return false, ErrCancelled
	}
	return m.answered && m.yes, nil
}
