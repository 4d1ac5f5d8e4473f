package calendar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	ical "github.com/emersion/go-ical"
	"github.com/google/uuid"
)

const icsProdID = "-//shiftcal//shiftcal//EN"

// ICSFile is a provider backed by a single local .ics file. It exposes one
// calendar whose id is the file path. Inserts rewrite the file atomically.
type ICSFile struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

func NewICSFile(path string, logger *slog.Logger) *ICSFile {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ICSFile{path: path, logger: logger}
}

func (f *ICSFile) ListCalendars(ctx context.Context) ([]Calendar, error) {
	name := strings.TrimSuffix(filepath.Base(f.path), filepath.Ext(f.path))
	return []Calendar{{ID: f.path, Summary: name, AccessRole: RoleOwner}}, nil
}

// ListEvents returns timed events from the file that overlap the window.
func (f *ICSFile) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cal, err := f.load()
	if err != nil {
		return nil, err
	}

	var events []Event
	for _, component := range cal.Children {
		if component.Name != ical.CompEvent {
			continue
		}
		event := ical.Event{Component: component}

		// All-day events carry a DATE value and are not time conflicts.
		if prop := event.Props.Get(ical.PropDateTimeStart); prop == nil || prop.ValueType() == ical.ValueDate {
			continue
		}
		start, err := event.DateTimeStart(time.Local)
		if err != nil {
			f.logger.Debug("skipping event with unparseable start", "error", err)
			continue
		}
		end, err := event.DateTimeEnd(time.Local)
		if err != nil {
			f.logger.Debug("skipping event with unparseable end", "error", err)
			continue
		}

		if start.Before(timeMax) && end.After(timeMin) {
			summary, _ := event.Props.Text(ical.PropSummary)
			events = append(events, Event{Summary: summary, StartTime: start, EndTime: end})
		}
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].StartTime.Before(events[j].StartTime) })
	return events, nil
}

// InsertEvent appends ev to the file and returns its UID.
func (f *ICSFile) InsertEvent(ctx context.Context, calendarID string, ev NewEvent) (string, error) {
	start, err := ev.Start.Time()
	if err != nil {
		return "", err
	}
	end, err := ev.End.Time()
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	cal, err := f.load()
	if err != nil {
		return "", err
	}

	uid := uuid.NewString() + "@shiftcal"
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, uid)
	event.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	event.Props.SetDateTime(ical.PropDateTimeStart, start)
	event.Props.SetDateTime(ical.PropDateTimeEnd, end)
	event.Props.SetText(ical.PropSummary, ev.Summary)
	if ev.Location != "" {
		event.Props.SetText(ical.PropLocation, ev.Location)
	}
	if ev.Description != "" {
		event.Props.SetText(ical.PropDescription, ev.Description)
	}
	cal.Children = append(cal.Children, event.Component)

	if err := f.save(cal); err != nil {
		return "", err
	}
	f.logger.Debug("ics event written", "uid", uid, "path", f.path)
	return uid, nil
}

func (f *ICSFile) load() (*ical.Calendar, error) {
	file, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return newICSCalendar(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening calendar file: %w", err)
	}
	defer file.Close()

	cal, err := ical.NewDecoder(file).Decode()
	if err == io.EOF {
		return newICSCalendar(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("parsing calendar: %w", err)
	}
	return cal, nil
}

func (f *ICSFile) save(cal *ical.Calendar) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("creating calendar directory: %w", err)
	}

	tmp := f.path + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating temp calendar file: %w", err)
	}
	if err := ical.NewEncoder(out).Encode(cal); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("encoding calendar: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing calendar file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming calendar file: %w", err)
	}
	return nil
}

func newICSCalendar() *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, icsProdID)
	return cal
}

// Time resolves the wall-clock time in its zone.
func (t EventTime) Time() (time.Time, error) {
	loc := time.Local
	if t.TimeZone != "" {
		l, err := time.LoadLocation(t.TimeZone)
		if err != nil {
			return time.Time{}, fmt.Errorf("loading time zone %q: %w", t.TimeZone, err)
		}
		loc = l
	}
	v, err := time.ParseInLocation("2006-01-02T15:04:05", t.DateTime, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing event time %q: %w", t.DateTime, err)
	}
	return v, nil
}
