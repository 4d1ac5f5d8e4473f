package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/christopherklint97/shiftcal/internal/calendar"
)

const calPickerVisible = 8

// calPickerModel chooses one calendar from a filterable list.
type calPickerModel struct {
	cals     []calendar.Calendar
	filtered []int // indices into cals
	cursor   int
	filter   textinput.Model
}

func newCalPicker(cals []calendar.Calendar, preselectID string) calPickerModel {
	ti := textinput.New()
	ti.Placeholder = "Filter calendars..."
	ti.Prompt = "/ "

	m := calPickerModel{cals: cals, filter: ti}
	m.applyFilter()
	for vi, idx := range m.filtered {
		if cals[idx].ID == preselectID {
			m.cursor = vi
		}
	}
	return m
}

func (m calPickerModel) Update(msg tea.Msg) (calPickerModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down":
			if m.cursor < len(m.filtered)-1 {
				m.cursor++
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	prevFilter := m.filter.Value()
	m.filter, cmd = m.filter.Update(msg)

	if m.filter.Value() != prevFilter {
		m.applyFilter()
	}

	return m, cmd
}

func (m *calPickerModel) Focus() tea.Cmd { return m.filter.Focus() }
func (m *calPickerModel) Blur()          { m.filter.Blur() }

func (m *calPickerModel) applyFilter() {
	query := strings.ToLower(m.filter.Value())
	m.filtered = m.filtered[:0]
	for i, c := range m.cals {
		if query == "" || strings.Contains(strings.ToLower(c.Summary), query) {
			m.filtered = append(m.filtered, i)
		}
	}
	if m.cursor >= len(m.filtered) {
		m.cursor = max(0, len(m.filtered)-1)
	}
}

// Selected returns the calendar under the cursor.
func (m calPickerModel) Selected() (calendar.Calendar, bool) {
	if len(m.filtered) == 0 {
		return calendar.Calendar{}, false
	}
	return m.cals[m.filtered[m.cursor]], true
}

func (m calPickerModel) View() string {
	var b strings.Builder

	label := "Calendar"
	if m.filter.Focused() {
		label = focusedLabelStyle.Render(label)
	}
	b.WriteString(label)
	b.WriteString("\n")
	b.WriteString(m.filter.View())
	b.WriteString("\n")

	if len(m.filtered) == 0 {
		b.WriteString(dimStyle.Render("  No writable calendars match"))
		b.WriteString("\n")
		return b.String()
	}

	start := 0
	if m.cursor >= calPickerVisible {
		start = m.cursor - calPickerVisible + 1
	}
	end := min(start+calPickerVisible, len(m.filtered))

	for vi := start; vi < end; vi++ {
		c := m.cals[m.filtered[vi]]
		line := fmt.Sprintf("  ( ) %s %s", c.Summary, dimStyle.Render(c.AccessRole))
		if vi == m.cursor {
			line = highlightStyle.Render("> (*) "+c.Summary) + " " + dimStyle.Render(c.AccessRole)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
