// Package wizard drives the extract, review and write pipeline and tracks
// which step the user is on.
package wizard

import (
	"errors"
	"fmt"

	"github.com/christopherklint97/shiftcal/internal/selection"
	"github.com/christopherklint97/shiftcal/internal/shift"
	"github.com/christopherklint97/shiftcal/internal/writer"
)

// Step is a wizard screen.
type Step int

const (
	StepSetup Step = iota
	StepUpload
	StepAnalyzing
	StepReview
	StepWriting
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepSetup:
		return "setup"
	case StepUpload:
		return "upload"
	case StepAnalyzing:
		return "analyzing"
	case StepReview:
		return "review"
	case StepWriting:
		return "writing"
	case StepDone:
		return "done"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

var ErrInvalidTransition = errors.New("invalid wizard transition")

// Session is the state of one wizard run. Transition methods move it between
// steps and reject moves that are not allowed from the current step.
type Session struct {
	step       Step
	userName   string
	calendarID string

	selection *selection.State
	advisory  error
	result    *writer.BatchResult
	lastErr   error
}

// NewSession starts at StepSetup.
func NewSession() *Session {
	return &Session{step: StepSetup}
}

func (s *Session) Step() Step                  { return s.step }
func (s *Session) UserName() string            { return s.userName }
func (s *Session) CalendarID() string          { return s.calendarID }
func (s *Session) Selection() *selection.State { return s.selection }
func (s *Session) Result() *writer.BatchResult { return s.result }

// Advisory is the non-fatal conflict check failure of the last analysis.
func (s *Session) Advisory() error { return s.advisory }

// Err is the failure that sent the session back a step, if any.
func (s *Session) Err() error { return s.lastErr }

func (s *Session) move(from []Step, to Step) error {
	for _, f := range from {
		if s.step == f {
			s.step = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.step, to)
}

// Configure records the user name and target calendar and advances to
// upload. It is also how the user returns to setup from upload to change
// either value.
func (s *Session) Configure(userName, calendarID string) error {
	if userName == "" {
		return errors.New("user name is required")
	}
	if calendarID == "" {
		return errors.New("a calendar must be selected")
	}
	if err := s.move([]Step{StepSetup, StepUpload}, StepUpload); err != nil {
		return err
	}
	s.userName = userName
	s.calendarID = calendarID
	return nil
}

// EditSetup goes back to setup from upload.
func (s *Session) EditSetup() error {
	return s.move([]Step{StepUpload}, StepSetup)
}

// StartAnalysis moves from upload to analyzing.
func (s *Session) StartAnalysis() error {
	if err := s.move([]Step{StepUpload}, StepAnalyzing); err != nil {
		return err
	}
	s.lastErr = nil
	return nil
}

// AnalysisDone moves to review with the reconciled shifts. advisory is the
// conflict check failure, if any.
func (s *Session) AnalysisDone(shifts []shift.Shift, advisory error) error {
	if err := s.move([]Step{StepAnalyzing}, StepReview); err != nil {
		return err
	}
	s.selection = selection.New(shifts)
	s.advisory = advisory
	s.result = nil
	return nil
}

// AnalysisFailed returns to upload and keeps err for display.
func (s *Session) AnalysisFailed(err error) error {
	if err := s.move([]Step{StepAnalyzing}, StepUpload); err != nil {
		return err
	}
	s.lastErr = err
	return nil
}

// Toggle flips the selection of shift i during review.
func (s *Session) Toggle(i int) error {
	if s.step != StepReview {
		return fmt.Errorf("%w: toggle outside review", ErrInvalidTransition)
	}
	return s.selection.Toggle(i)
}

// StartWrite moves from review to writing and returns the shifts to insert.
// It fails with writer.ErrNothingSelected when the selection is empty.
func (s *Session) StartWrite() ([]shift.Shift, error) {
	if s.step != StepReview {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.step, StepWriting)
	}
	if !s.selection.CanWrite() {
		return nil, writer.ErrNothingSelected
	}
	s.step = StepWriting
	s.lastErr = nil
	return s.selection.Selected(), nil
}

// WriteDone moves to done.
func (s *Session) WriteDone(res *writer.BatchResult) error {
	if err := s.move([]Step{StepWriting}, StepDone); err != nil {
		return err
	}
	s.result = res
	return nil
}

// WriteFailed returns to review. res may hold the per-shift outcomes.
func (s *Session) WriteFailed(res *writer.BatchResult, err error) error {
	if err := s.move([]Step{StepWriting}, StepReview); err != nil {
		return err
	}
	s.result = res
	s.lastErr = err
	return nil
}

// Restart discards the current analysis and returns to upload, or to setup
// when the session was never configured. It is allowed from every step and
// does not cancel requests already in flight.
func (s *Session) Restart() {
	s.selection = nil
	s.advisory = nil
	s.result = nil
	s.lastErr = nil
	if s.userName == "" || s.calendarID == "" {
		s.step = StepSetup
		return
	}
	s.step = StepUpload
}
