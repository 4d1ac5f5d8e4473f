package tui

import (
	"fmt"
	"strings"

	"github.com/christopherklint97/shiftcal/internal/selection"
	"github.com/christopherklint97/shiftcal/internal/writer"
)

// renderShifts lists the review records. When res is non-nil each record
// that took part in the last write is marked with its outcome.
func renderShifts(sel *selection.State, cursor int, res *writer.BatchResult) string {
	var sb strings.Builder

	if sel == nil || sel.Len() == 0 {
		sb.WriteString(dimStyle.Render("No shifts were found for you in this schedule."))
		sb.WriteString("\n")
		return sb.String()
	}

	outcomes := outcomesByRow(sel, res)

	for i := 0; i < sel.Len(); i++ {
		s := sel.At(i)
		prefix := "  "
		if i == cursor {
			prefix = "> "
		}
		check := "[ ]"
		if s.Selected {
			check = "[x]"
		}

		line := fmt.Sprintf("%s%s %s %-9s %s-%s  %s", prefix, check, s.Date, s.DayOfWeek, s.StartTime, s.EndTime, s.Location)
		if i == cursor {
			line = highlightStyle.Render(line)
		}
		if s.Conflicting {
			line += " " + warningStyle.Render("! conflict")
		}
		if err, ok := outcomes[i]; ok {
			if err != nil {
				line += " " + errorStyle.Render("failed")
			} else {
				line += " " + successStyle.Render("added")
			}
		}

		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

func renderOutcomes(res *writer.BatchResult) string {
	var sb strings.Builder
	for _, o := range res.Outcomes {
		s := o.Shift
		label := fmt.Sprintf("%s %s-%s  %s", s.Date, s.StartTime, s.EndTime, s.Location)
		if o.Err != nil {
			sb.WriteString(errorStyle.Render("  x ") + label + "\n")
			continue
		}
		sb.WriteString(successStyle.Render("  + ") + label + "\n")
	}
	return sb.String()
}

// outcomesByRow maps review rows to write outcomes. Outcomes are in the
// order of the selected rows, so identical shifts keep separate results.
func outcomesByRow(sel *selection.State, res *writer.BatchResult) map[int]error {
	rows := map[int]error{}
	if res == nil {
		return rows
	}
	var selected []int
	for i := 0; i < sel.Len(); i++ {
		if sel.At(i).Selected {
			selected = append(selected, i)
		}
	}
	if len(selected) != len(res.Outcomes) {
		return rows
	}
	for n, row := range selected {
		rows[row] = res.Outcomes[n].Err
	}
	return rows
}
