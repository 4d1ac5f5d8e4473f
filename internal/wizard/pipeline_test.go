package wizard

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christopherklint97/shiftcal/internal/ai"
	"github.com/christopherklint97/shiftcal/internal/calendar"
	"github.com/christopherklint97/shiftcal/internal/config"
	"github.com/christopherklint97/shiftcal/internal/notify"
	"github.com/christopherklint97/shiftcal/internal/shift"
	"github.com/christopherklint97/shiftcal/internal/store"
	"github.com/christopherklint97/shiftcal/internal/upload"
	"github.com/christopherklint97/shiftcal/internal/writer"
)

type fakeExtractor struct {
	shifts []shift.Shift
	err    error
	name   string
}

func (f *fakeExtractor) ExtractShifts(ctx context.Context, img *upload.Image, userName string) ([]shift.Shift, error) {
	f.name = userName
	return f.shifts, f.err
}

type fakeCalendar struct {
	mu        sync.Mutex
	cals      []calendar.Calendar
	listErr   error
	events    []calendar.Event
	eventsErr error
	failOn    string
	inserted  []calendar.NewEvent
}

func (f *fakeCalendar) ListCalendars(ctx context.Context) ([]calendar.Calendar, error) {
	return f.cals, f.listErr
}

func (f *fakeCalendar) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]calendar.Event, error) {
	return f.events, f.eventsErr
}

func (f *fakeCalendar) InsertEvent(ctx context.Context, calendarID string, ev calendar.NewEvent) (string, error) {
	if strings.HasPrefix(ev.Start.DateTime, f.failOn+"T") {
		return "", errors.New("insert rejected")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, ev)
	return fmt.Sprintf("id-%d", len(f.inserted)), nil
}

type memHistory struct {
	imports []store.Import
}

func (m *memHistory) RecordImports(imports []store.Import) error {
	m.imports = append(m.imports, imports...)
	return nil
}

func threeShifts() []shift.Shift {
	return []shift.Shift{
		{Date: "2025-08-18", DayOfWeek: "Monday", StartTime: "15:30", EndTime: "22:00", Location: "Bar"},
		{Date: "2025-08-19", DayOfWeek: "Tuesday", StartTime: "15:30", EndTime: "22:00", Location: "Bar"},
		{Date: "2025-08-20", DayOfWeek: "Wednesday", StartTime: "15:30", EndTime: "22:00", Location: "Bar"},
	}
}

func TestPipeline_AnalyzeMarksConflicts(t *testing.T) {
	ext := &fakeExtractor{shifts: threeShifts()}
	cal := &fakeCalendar{events: []calendar.Event{{
		Summary:   "Dentist",
		StartTime: time.Date(2025, 8, 19, 16, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2025, 8, 19, 17, 0, 0, 0, time.UTC),
	}}}
	p := NewPipeline(&Clients{Extractor: ext, Calendar: cal}, Options{TimeZone: "UTC"}, nil, nil, nil)

	shifts, advisory, err := p.Analyze(context.Background(), &upload.Image{Name: "a.png"}, "Ana", "work")

	require.NoError(t, err)
	assert.NoError(t, advisory)
	assert.Equal(t, "Ana", ext.name)
	require.Len(t, shifts, 3)
	assert.False(t, shifts[0].Conflicting)
	assert.True(t, shifts[1].Conflicting)
	for _, s := range shifts {
		assert.True(t, s.Selected)
	}
}

func TestPipeline_AnalyzeAdvisory(t *testing.T) {
	cal := &fakeCalendar{eventsErr: calendar.ErrRateLimited}
	p := NewPipeline(&Clients{Extractor: &fakeExtractor{shifts: threeShifts()}, Calendar: cal}, Options{TimeZone: "UTC"}, nil, nil, nil)

	shifts, advisory, err := p.Analyze(context.Background(), &upload.Image{}, "Ana", "work")

	require.NoError(t, err)
	require.Error(t, advisory)
	assert.NotEmpty(t, AdvisoryMessage(advisory))
	assert.Len(t, shifts, 3)
}

func TestPipeline_AnalyzeExtractionError(t *testing.T) {
	p := NewPipeline(&Clients{Extractor: &fakeExtractor{err: ai.ErrQuota}, Calendar: &fakeCalendar{}}, Options{}, nil, nil, nil)

	_, _, err := p.Analyze(context.Background(), &upload.Image{}, "Ana", "work")

	assert.ErrorIs(t, err, ai.ErrQuota)
}

func TestPipeline_AnalyzeFileUnreadable(t *testing.T) {
	p := NewPipeline(&Clients{Extractor: &fakeExtractor{}, Calendar: &fakeCalendar{}}, Options{}, nil, nil, nil)

	_, _, err := p.AnalyzeFile(context.Background(), filepath.Join(t.TempDir(), "missing.png"), "Ana", "work")

	assert.ErrorIs(t, err, upload.ErrRead)
}

func TestPipeline_WriteRecordsEveryOutcome(t *testing.T) {
	cal := &fakeCalendar{failOn: "2025-08-19"}
	hist := &memHistory{}
	var notes []string
	n := notify.New(true, func(title, msg string) error { notes = append(notes, msg); return nil }, nil)
	p := NewPipeline(&Clients{Extractor: &fakeExtractor{}, Calendar: cal}, Options{TimeZone: "Europe/Stockholm"}, hist, n, nil)

	res, err := p.Write(context.Background(), "work", threeShifts())

	require.ErrorIs(t, err, writer.ErrBatchFailed)
	require.NotNil(t, res)
	assert.Len(t, res.Succeeded(), 2)
	assert.Len(t, cal.inserted, 2)
	assert.Equal(t, "Europe/Stockholm", cal.inserted[0].Start.TimeZone)

	require.Len(t, hist.imports, 3)
	batch := hist.imports[0].BatchID
	for _, im := range hist.imports {
		assert.Equal(t, batch, im.BatchID)
		assert.Equal(t, "work", im.CalendarID)
	}
	assert.Equal(t, store.StatusFailed, hist.imports[1].Status)
	assert.Equal(t, store.StatusImported, hist.imports[2].Status)
	assert.Equal(t, []string{"Added 2 shift(s), 1 failed"}, notes)
}

func TestPipeline_WriteNothingSelected(t *testing.T) {
	hist := &memHistory{}
	p := NewPipeline(&Clients{Extractor: &fakeExtractor{}, Calendar: &fakeCalendar{}}, Options{}, hist, nil, nil)

	_, err := p.Write(context.Background(), "work", nil)

	assert.ErrorIs(t, err, writer.ErrNothingSelected)
	assert.Empty(t, hist.imports)
}

func TestPipeline_Calendars(t *testing.T) {
	cal := &fakeCalendar{cals: []calendar.Calendar{
		{ID: "a", Summary: "Holidays", AccessRole: calendar.RoleReader},
		{ID: "b", Summary: "Work", AccessRole: calendar.RoleWriter},
	}}
	p := NewPipeline(&Clients{Calendar: cal}, Options{}, nil, nil, nil)

	cals, err := p.Calendars(context.Background())
	require.NoError(t, err)
	require.Len(t, cals, 1)
	assert.Equal(t, "b", cals[0].ID)

	cal.listErr = errors.New("socket closed")
	_, err = p.Calendars(context.Background())
	assert.ErrorIs(t, err, ErrCalendar)
}

func TestMessage_DistinctPerCategory(t *testing.T) {
	errs := []error{
		ai.ErrMissingCredential, ai.ErrAuth, ai.ErrQuota, ai.ErrBlocked, ai.ErrMalformedOutput, ai.ErrAnalyze,
		upload.ErrRead, ErrNotReady, writer.ErrNothingSelected, writer.ErrBatchFailed,
		calendar.ErrNotSignedIn, calendar.ErrRateLimited, ErrCalendar,
	}
	seen := map[string]error{}
	for _, e := range errs {
		msg := Message(fmt.Errorf("wrapped: %w", e))
		require.NotEmpty(t, msg)
		if prev, ok := seen[msg]; ok {
			t.Errorf("%v and %v share message %q", prev, e, msg)
		}
		seen[msg] = e
	}
	assert.Empty(t, Message(nil))
	assert.Equal(t, Message(ai.ErrAnalyze), Message(errors.New("unexpected panic text")))
}

func TestReady(t *testing.T) {
	want := &Clients{}
	r := Prepare(context.Background(), func(ctx context.Context) (*Clients, error) { return want, nil })
	got, err := r.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Same(t, want, got)

	release := make(chan struct{})
	slow := Prepare(context.Background(), func(ctx context.Context) (*Clients, error) {
		<-release
		return want, nil
	})
	_, err = slow.Wait(context.Background(), 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrNotReady)
	close(release)
	got, err = slow.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Same(t, want, got)

	boom := errors.New("boom")
	_, err = Resolved(nil, boom).Wait(context.Background(), 0)
	assert.Equal(t, boom, err)
}

func TestNewClients_ICS(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AI.Provider = ai.ProviderClaudeCLI
	cfg.Calendar.Provider = CalendarICS
	dir := t.TempDir()

	c, err := NewClients(context.Background(), &cfg, dir, 2025, nil)
	require.NoError(t, err)
	assert.IsType(t, &calendar.ICSFile{}, c.Calendar)

	auth, err := NewAuthenticator(&cfg, dir, nil)
	require.NoError(t, err)
	assert.Nil(t, auth)
}

func TestNewAuthenticator_Errors(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Calendar.Google.ClientID = ""
	_, err := NewAuthenticator(&cfg, t.TempDir(), nil)
	assert.Error(t, err)

	cfg.Calendar.Provider = "outlook"
	_, err = NewAuthenticator(&cfg, t.TempDir(), nil)
	assert.Error(t, err)

	cfg.Calendar.Provider = CalendarGraph
	cfg.Calendar.Graph.ClientID = "client"
	auth, err := NewAuthenticator(&cfg, t.TempDir(), nil)
	require.NoError(t, err)
	assert.NotNil(t, auth)
}

func TestReferenceYear(t *testing.T) {
	now := time.Date(2025, 12, 31, 12, 0, 0, 0, time.UTC)

	y, err := ReferenceYear(2024, "next monday", now)
	require.NoError(t, err)
	assert.Equal(t, 2024, y)

	y, err = ReferenceYear(0, "", now)
	require.NoError(t, err)
	assert.Equal(t, 2025, y)

	y, err = ReferenceYear(0, "next monday", now)
	require.NoError(t, err)
	assert.Equal(t, 2026, y)
}
