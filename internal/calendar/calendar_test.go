package calendar

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritableAndDefault(t *testing.T) {
	cals := []Calendar{
		{ID: "holidays", Summary: "Holidays", AccessRole: RoleReader},
		{ID: "me", Summary: "me@example.com", AccessRole: RoleOwner},
		{ID: "job", Summary: "My WORK shifts", AccessRole: RoleWriter},
		{ID: "shared", Summary: "Work (shared)", AccessRole: "freeBusyReader"},
	}

	eligible := Writable(cals)
	require.Len(t, eligible, 2)

	def, ok := Default(eligible, "")
	require.True(t, ok)
	assert.Equal(t, "job", def.ID)

	def, _ = Default(eligible, "me")
	assert.Equal(t, "me", def.ID, "last selection wins while eligible")

	def, _ = Default(eligible, "holidays")
	assert.Equal(t, "job", def.ID, "ineligible last selection is ignored")

	def, _ = Default(eligible[:1], "")
	assert.Equal(t, "me", def.ID, "falls back to first")

	_, ok = Default(nil, "")
	assert.False(t, ok)
}

func TestDayBounds(t *testing.T) {
	lo, hi, err := DayBounds("2025-08-17", "2025-08-20")

	require.NoError(t, err)
	assert.Equal(t, "2025-08-17T00:00:00Z", lo.Format(time.RFC3339))
	assert.Equal(t, "2025-08-20T23:59:59Z", hi.Format(time.RFC3339))

	_, _, err = DayBounds("17.08.2025", "2025-08-20")
	assert.Error(t, err)
}

func TestICSFile_InsertThenList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "work.ics")
	f := NewICSFile(path, nil)
	ctx := context.Background()

	cals, err := f.ListCalendars(ctx)
	require.NoError(t, err)
	require.Len(t, cals, 1)
	assert.Equal(t, "work", cals[0].Summary)
	assert.True(t, cals[0].Writable())

	uid, err := f.InsertEvent(ctx, path, NewEvent{
		Summary:  "Shift: Kitchen",
		Location: "Kitchen",
		Start:    EventTime{DateTime: "2025-08-18T09:00:00", TimeZone: "UTC"},
		End:      EventTime{DateTime: "2025-08-18T17:00:00", TimeZone: "UTC"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, uid)

	lo, hi, _ := DayBounds("2025-08-18", "2025-08-18")
	events, err := f.ListEvents(ctx, path, lo, hi)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Shift: Kitchen", events[0].Summary)
	assert.True(t, events[0].StartTime.Equal(time.Date(2025, 8, 18, 9, 0, 0, 0, time.UTC)))
	assert.True(t, events[0].EndTime.Equal(time.Date(2025, 8, 18, 17, 0, 0, 0, time.UTC)))

	lo, hi, _ = DayBounds("2025-08-19", "2025-08-20")
	events, err = f.ListEvents(ctx, path, lo, hi)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestICSFile_SkipsAllDayEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cal.ics")
	data := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//EN\r\n" +
		"BEGIN:VEVENT\r\nUID:1\r\nDTSTAMP:20250801T000000Z\r\nDTSTART;VALUE=DATE:20250818\r\nDTEND;VALUE=DATE:20250819\r\nSUMMARY:Holiday\r\nEND:VEVENT\r\n" +
		"BEGIN:VEVENT\r\nUID:2\r\nDTSTAMP:20250801T000000Z\r\nDTSTART:20250818T080000Z\r\nDTEND:20250818T090000Z\r\nSUMMARY:Dentist\r\nEND:VEVENT\r\n" +
		"END:VCALENDAR\r\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	lo, hi, _ := DayBounds("2025-08-18", "2025-08-18")
	events, err := NewICSFile(path, nil).ListEvents(context.Background(), path, lo, hi)

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Dentist", events[0].Summary)
}

func TestEventTime_Time(t *testing.T) {
	v, err := EventTime{DateTime: "2025-08-18T09:00:00", TimeZone: "Europe/Berlin"}.Time()
	require.NoError(t, err)
	assert.Equal(t, "2025-08-18T07:00:00Z", v.UTC().Format(time.RFC3339))

	_, err = EventTime{DateTime: "2025-08-18T09:00:00", TimeZone: "Not/AZone"}.Time()
	assert.Error(t, err)
}
