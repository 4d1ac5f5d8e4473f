// Package reconcile marks extracted shifts that overlap existing calendar
// events.
package reconcile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/christopherklint97/shiftcal/internal/calendar"
	"github.com/christopherklint97/shiftcal/internal/shift"
)

// EventLister is the part of calendar.Provider the reconciler needs.
type EventLister interface {
	ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]calendar.Event, error)
}

// Reconcile returns copies of shifts with Selected set and Conflicting set
// on those that overlap an event in calendarID. Shift instants are built in
// loc; a nil loc means time.Local.
//
// A failed event query is not fatal: the copies are returned without
// conflict information together with a non-nil advisory error.
func Reconcile(ctx context.Context, events EventLister, calendarID string, shifts []shift.Shift, loc *time.Location, logger *slog.Logger) ([]shift.Shift, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if len(shifts) == 0 {
		return []shift.Shift{}, nil
	}

	out := make([]shift.Shift, len(shifts))
	for i, s := range shifts {
		s.Selected = true
		s.Conflicting = false
		out[i] = s
	}

	minDate, _, _ := shift.DateRange(out)
	maxDate := lastEndDate(out)
	timeMin, timeMax, err := calendar.DayBounds(minDate, maxDate)
	if err != nil {
		return out, fmt.Errorf("computing conflict window: %w", err)
	}

	existing, err := events.ListEvents(ctx, calendarID, timeMin, timeMax)
	if err != nil {
		logger.Warn("conflict check failed", "calendar", calendarID, "error", err)
		return out, fmt.Errorf("checking calendar for conflicts: %w", err)
	}
	logger.Debug("conflict check", "calendar", calendarID, "from", minDate, "to", maxDate, "events", len(existing))
	if len(existing) == 0 {
		return out, nil
	}

	for i := range out {
		start, end, err := out[i].Interval(loc)
		if err != nil {
			logger.Warn("skipping conflict check for shift", "date", out[i].Date, "error", err)
			continue
		}
		for _, ev := range existing {
			if shift.Overlaps(start, end, ev.StartTime, ev.EndTime) {
				out[i].Conflicting = true
				logger.Debug("shift conflicts", "date", out[i].Date, "start", out[i].StartTime, "event", ev.Summary)
				break
			}
		}
	}
	return out, nil
}

// lastEndDate is the latest date any shift ends on. Overnight shifts end
// the day after their start date.
func lastEndDate(shifts []shift.Shift) string {
	var last string
	for _, s := range shifts {
		if d := s.EndDate(); d > last {
			last = d
		}
	}
	return last
}
