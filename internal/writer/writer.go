// Package writer inserts the selected shifts into a calendar.
package writer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/christopherklint97/shiftcal/internal/calendar"
	"github.com/christopherklint97/shiftcal/internal/shift"
)

var (
	ErrNothingSelected = errors.New("nothing selected")
	// ErrBatchFailed is returned when at least one insert in a batch failed.
	// Inserts that succeeded are not rolled back.
	ErrBatchFailed = errors.New("some shifts could not be added to the calendar")
)

const DefaultTitlePrefix = "Shift: "

// Inserter is the part of calendar.Provider the writer needs.
type Inserter interface {
	InsertEvent(ctx context.Context, calendarID string, ev calendar.NewEvent) (string, error)
}

// Options tune a Writer. Zero values give the defaults.
type Options struct {
	TimeZone      string // IANA name; empty resolves from the environment
	TitlePrefix   string
	MaxConcurrent int // 0 issues every insert at once
}

// Writer submits one insert per shift.
type Writer struct {
	inserter    Inserter
	calendarID  string
	zone        string
	titlePrefix string
	limit       int
	logger      *slog.Logger
}

// New creates a Writer targeting calendarID.
func New(inserter Inserter, calendarID string, opts Options, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	zone, _ := ResolveZone(opts.TimeZone, logger)
	prefix := opts.TitlePrefix
	if prefix == "" {
		prefix = DefaultTitlePrefix
	}
	return &Writer{
		inserter:    inserter,
		calendarID:  calendarID,
		zone:        zone,
		titlePrefix: prefix,
		limit:       opts.MaxConcurrent,
		logger:      logger,
	}
}

// Zone returns the zone name events are tagged with.
func (w *Writer) Zone() string { return w.zone }

// Outcome is the result of inserting one shift.
type Outcome struct {
	Shift   shift.Shift
	EventID string
	Err     error
}

// BatchResult lists outcomes in the order the shifts were given.
type BatchResult struct {
	Outcomes []Outcome
}

// Succeeded returns the outcomes without an error.
func (r *BatchResult) Succeeded() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err == nil {
			out = append(out, o)
		}
	}
	return out
}

// Failed returns the outcomes with an error.
func (r *BatchResult) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Payload builds the insert request for s.
func (w *Writer) Payload(s shift.Shift) calendar.NewEvent {
	return calendar.NewEvent{
		Summary:     w.titlePrefix + s.Location,
		Location:    s.Location,
		Description: fmt.Sprintf("Work shift at %s (%s %s-%s)", s.Location, s.DayOfWeek, s.StartTime, s.EndTime),
		Start:       calendar.EventTime{DateTime: s.Date + "T" + s.StartTime + ":00", TimeZone: w.zone},
		End:         calendar.EventTime{DateTime: s.EndDate() + "T" + s.EndTime + ":00", TimeZone: w.zone},
	}
}

// Write inserts every shift concurrently and waits for all of them to
// settle. The returned result is always non-nil once any insert was issued;
// the error wraps ErrBatchFailed if any insert failed. There is no
// cancellation between inserts: one failure does not stop the others.
func (w *Writer) Write(ctx context.Context, shifts []shift.Shift) (*BatchResult, error) {
	if len(shifts) == 0 {
		return nil, ErrNothingSelected
	}

	res := &BatchResult{Outcomes: make([]Outcome, len(shifts))}
	var g errgroup.Group
	if w.limit > 0 {
		g.SetLimit(w.limit)
	}

	for i, s := range shifts {
		res.Outcomes[i].Shift = s
		g.Go(func() error {
			id, err := w.inserter.InsertEvent(ctx, w.calendarID, w.Payload(s))
			if err != nil {
				w.logger.Error("inserting shift", "date", s.Date, "start", s.StartTime, "location", s.Location, "error", err)
				res.Outcomes[i].Err = err
				return err
			}
			w.logger.Debug("inserted shift", "date", s.Date, "start", s.StartTime, "event_id", id)
			res.Outcomes[i].EventID = id
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return res, fmt.Errorf("%w (%d of %d failed): %w", ErrBatchFailed, len(res.Failed()), len(shifts), err)
	}
	return res, nil
}
