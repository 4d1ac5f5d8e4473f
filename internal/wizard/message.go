package wizard

import (
	"errors"

	"github.com/christopherklint97/shiftcal/internal/ai"
	"github.com/christopherklint97/shiftcal/internal/calendar"
	"github.com/christopherklint97/shiftcal/internal/upload"
	"github.com/christopherklint97/shiftcal/internal/writer"
)

// Message turns any pipeline error into the text shown to the user.
// Diagnostics stay in the logs.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, upload.ErrRead):
		return "Could not read the image file. Check the path and try again."
	case errors.Is(err, ErrNotReady):
		return "Still connecting to the AI and calendar services. Try again in a moment."
	case errors.Is(err, writer.ErrNothingSelected):
		return "Nothing selected. Select at least one shift to add."
	case errors.Is(err, calendar.ErrNotSignedIn):
		return "You are not signed in to your calendar. Run 'shiftcal auth' and try again."
	case errors.Is(err, calendar.ErrRateLimited):
		return "The calendar service is rate limiting requests. Wait a moment and try again later."
	case errors.Is(err, writer.ErrBatchFailed):
		return "Some shifts could not be added to your calendar. Review the list and try again."
	case errors.Is(err, ErrCalendar):
		return "The calendar request failed. Please try again."
	}
	return ai.UserMessage(err)
}

// AdvisoryMessage describes a failed conflict check.
func AdvisoryMessage(err error) string {
	if err == nil {
		return ""
	}
	return "Could not check your calendar for conflicts. Shifts are shown without conflict information."
}
