package shift

import (
	"fmt"
	"regexp"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

var (
	dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeRe = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

// Shift is one work interval read from a schedule image. Conflicting and
// Selected are only populated once the shift has been reconciled against a
// calendar.
type Shift struct {
	Date        string `json:"date"`
	DayOfWeek   string `json:"dayOfWeek"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Location    string `json:"location"`
	Conflicting bool   `json:"isConflicting,omitempty"`
	Selected    bool   `json:"selected"`
}

// Validate reports why a candidate cannot be used, or nil if it can.
func (s Shift) Validate() error {
	switch {
	case s.Date == "":
		return fmt.Errorf("missing date")
	case s.DayOfWeek == "":
		return fmt.Errorf("missing dayOfWeek")
	case s.StartTime == "":
		return fmt.Errorf("missing startTime")
	case s.EndTime == "":
		return fmt.Errorf("missing endTime")
	case s.Location == "":
		return fmt.Errorf("missing location")
	case !dateRe.MatchString(s.Date):
		return fmt.Errorf("date %q is not YYYY-MM-DD", s.Date)
	case !timeRe.MatchString(s.StartTime):
		return fmt.Errorf("startTime %q is not HH:MM", s.StartTime)
	case !timeRe.MatchString(s.EndTime):
		return fmt.Errorf("endTime %q is not HH:MM", s.EndTime)
	}
	return nil
}

// Rejected is a candidate dropped by Filter along with the reason.
type Rejected struct {
	Shift  Shift
	Reason error
}

// Filter splits candidates into valid shifts and rejected ones, preserving
// the input order in both.
func Filter(candidates []Shift) (valid []Shift, rejected []Rejected) {
	valid = make([]Shift, 0, len(candidates))
	for _, c := range candidates {
		if err := c.Validate(); err != nil {
			rejected = append(rejected, Rejected{Shift: c, Reason: err})
			continue
		}
		valid = append(valid, c)
	}
	return valid, rejected
}

// DateRange returns the smallest and largest date among shifts. ISO dates
// compare correctly as strings, so a single scan is enough.
func DateRange(shifts []Shift) (minDate, maxDate string, ok bool) {
	if len(shifts) == 0 {
		return "", "", false
	}
	minDate, maxDate = shifts[0].Date, shifts[0].Date
	for _, s := range shifts[1:] {
		if s.Date < minDate {
			minDate = s.Date
		}
		if s.Date > maxDate {
			maxDate = s.Date
		}
	}
	return minDate, maxDate, true
}

// Interval resolves the shift's wall-clock times to instants in loc. A shift
// whose end is not after its start runs past midnight into the next day.
func (s Shift) Interval(loc *time.Location) (start, end time.Time, err error) {
	if loc == nil {
		loc = time.Local
	}
	start, err = time.ParseInLocation(DateLayout+" "+TimeLayout, s.Date+" "+s.StartTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing start of %s: %w", s.Date, err)
	}
	end, err = time.ParseInLocation(DateLayout+" "+TimeLayout, s.Date+" "+s.EndTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing end of %s: %w", s.Date, err)
	}
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return start, end, nil
}

// EndDate is the calendar date on which the shift ends.
func (s Shift) EndDate() string {
	if s.EndTime > s.StartTime {
		return s.Date
	}
	d, err := time.Parse(DateLayout, s.Date)
	if err != nil {
		return s.Date
	}
	return d.AddDate(0, 0, 1).Format(DateLayout)
}

// Overlaps reports whether [aStart,aEnd) and [bStart,bEnd) intersect.
// Intervals that only touch at an endpoint do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
