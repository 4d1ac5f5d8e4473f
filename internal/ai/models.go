package ai

import "github.com/christopherklint97/shiftcal/internal/shift"

// shiftRecord is one shift as the model is asked to return it.
type shiftRecord struct {
	Date      string `json:"date" jsonschema:"description=Shift date as YYYY-MM-DD"`
	DayOfWeek string `json:"dayOfWeek" jsonschema:"description=Weekday label as printed on the schedule"`
	StartTime string `json:"startTime" jsonschema:"description=Start time as zero-padded 24-hour HH:MM"`
	EndTime   string `json:"endTime" jsonschema:"description=End time as zero-padded 24-hour HH:MM"`
	Location  string `json:"location" jsonschema:"description=Work site taken from the column or section header"`
}

// shiftList is the top-level response object.
type shiftList struct {
	Shifts []shiftRecord `json:"shifts"`
}

func (r shiftRecord) toShift() shift.Shift {
	return shift.Shift{
		Date:      r.Date,
		DayOfWeek: r.DayOfWeek,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		Location:  r.Location,
	}
}
