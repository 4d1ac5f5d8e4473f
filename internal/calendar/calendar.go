// Package calendar defines the calendar provider contract shared by the
// Google, Microsoft Graph and ICS file backends.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrNotSignedIn is returned when the provider has no usable credentials
	// or rejects the ones it has.
	ErrNotSignedIn = errors.New("not signed in to the calendar provider")
	ErrRateLimited = errors.New("calendar provider rate limit exceeded")
)

// Access roles that allow inserting events.
const (
	RoleOwner  = "owner"
	RoleWriter = "writer"
	RoleReader = "reader"
)

// Calendar is a calendar the signed-in user can see.
type Calendar struct {
	ID         string
	Summary    string
	AccessRole string
}

// Writable reports whether events can be inserted into c.
func (c Calendar) Writable() bool {
	return c.AccessRole == RoleOwner || c.AccessRole == RoleWriter
}

// Event is an existing timed event.
type Event struct {
	Summary   string
	StartTime time.Time
	EndTime   time.Time
}

// EventTime is a local wall-clock time tagged with an IANA zone name.
type EventTime struct {
	DateTime string // 2006-01-02T15:04:05, no offset
	TimeZone string
}

// NewEvent is an event insert request.
type NewEvent struct {
	Summary     string
	Location    string
	Description string
	Start       EventTime
	End         EventTime
}

// Provider is a calendar backend.
type Provider interface {
	ListCalendars(ctx context.Context) ([]Calendar, error)
	// ListEvents returns single-occurrence timed events intersecting
	// [timeMin, timeMax], ordered by start time.
	ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]Event, error)
	// InsertEvent creates ev and returns the new event id.
	InsertEvent(ctx context.Context, calendarID string, ev NewEvent) (string, error)
}

// Writable filters cals down to those that accept new events.
func Writable(cals []Calendar) []Calendar {
	var out []Calendar
	for _, c := range cals {
		if c.Writable() {
			out = append(out, c)
		}
	}
	return out
}

// Default picks the calendar to preselect among eligible ones: lastID if it
// is still present, otherwise the first whose summary mentions "work",
// otherwise the first one.
func Default(eligible []Calendar, lastID string) (Calendar, bool) {
	if len(eligible) == 0 {
		return Calendar{}, false
	}
	if lastID != "" {
		for _, c := range eligible {
			if c.ID == lastID {
				return c, true
			}
		}
	}
	for _, c := range eligible {
		if strings.Contains(strings.ToLower(c.Summary), "work") {
			return c, true
		}
	}
	return eligible[0], true
}

// DayBounds returns the UTC instants used to query events between two ISO
// dates: minDate at 00:00:00Z and maxDate at 23:59:59Z.
func DayBounds(minDate, maxDate string) (time.Time, time.Time, error) {
	lo, err := time.Parse(time.RFC3339, minDate+"T00:00:00Z")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	hi, err := time.Parse(time.RFC3339, maxDate+"T23:59:59Z")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return lo, hi, nil
}

// WrapStatus tags err with ErrNotSignedIn or ErrRateLimited based on the HTTP
// status the provider answered with.
func WrapStatus(err error, status int) error {
	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %v", ErrNotSignedIn, err)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	return err
}
