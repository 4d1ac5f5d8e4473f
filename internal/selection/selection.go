// Package selection holds the reconciled shifts while the user chooses which
// ones to import.
package selection

import (
	"fmt"

	"github.com/christopherklint97/shiftcal/internal/shift"
)

// State is the review list. Records are never added, removed or reordered.
type State struct {
	shifts []shift.Shift
}

// New copies shifts into a fresh State.
func New(shifts []shift.Shift) *State {
	cp := make([]shift.Shift, len(shifts))
	copy(cp, shifts)
	return &State{shifts: cp}
}

// Len returns the number of records.
func (s *State) Len() int { return len(s.shifts) }

// At returns record i.
func (s *State) At(i int) shift.Shift { return s.shifts[i] }

// Toggle flips the selected flag of record i.
func (s *State) Toggle(i int) error {
	if i < 0 || i >= len(s.shifts) {
		return fmt.Errorf("shift index %d out of range [0,%d)", i, len(s.shifts))
	}
	s.shifts[i].Selected = !s.shifts[i].Selected
	return nil
}

// SetAll selects or deselects every record.
func (s *State) SetAll(selected bool) {
	for i := range s.shifts {
		s.shifts[i].Selected = selected
	}
}

// DeselectConflicts clears the selected flag on conflicting records.
func (s *State) DeselectConflicts() {
	for i := range s.shifts {
		if s.shifts[i].Conflicting {
			s.shifts[i].Selected = false
		}
	}
}

// Shifts returns a copy of all records.
func (s *State) Shifts() []shift.Shift {
	cp := make([]shift.Shift, len(s.shifts))
	copy(cp, s.shifts)
	return cp
}

// Selected returns the selected records in list order.
func (s *State) Selected() []shift.Shift {
	var out []shift.Shift
	for _, sh := range s.shifts {
		if sh.Selected {
			out = append(out, sh)
		}
	}
	return out
}

// CanWrite reports whether at least one record is selected.
func (s *State) CanWrite() bool {
	for _, sh := range s.shifts {
		if sh.Selected {
			return true
		}
	}
	return false
}
