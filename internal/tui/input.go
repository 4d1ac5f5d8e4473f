package tui

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type inputModel struct {
	input textinput.Model
	label string
}

func newInputModel(label, placeholder, prefill string) inputModel {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 512
	ti.Width = 60
	ti.Prompt = "> "
	if prefill != "" {
		ti.SetValue(prefill)
	}
	return inputModel{input: ti, label: label}
}

func (m inputModel) Update(msg tea.Msg) (inputModel, tea.Cmd) {
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *inputModel) Focus() tea.Cmd { return m.input.Focus() }
func (m *inputModel) Blur()          { m.input.Blur() }

func (m inputModel) View() string {
	label := m.label
	if m.input.Focused() {
		label = focusedLabelStyle.Render(label)
	}
	return label + "\n" + m.input.View()
}

// Value returns the trimmed input. Paths dragged into a terminal arrive
// quoted, so surrounding quotes are removed too.
func (m inputModel) Value() string {
	return strings.Trim(strings.TrimSpace(m.input.Value()), `'"`)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
