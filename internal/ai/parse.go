package ai

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/christopherklint97/shiftcal/internal/shift"
)

// parseShifts decodes a model response into validated shifts. An empty
// response means no shifts were found. Both a bare array and the
// {"shifts": [...]} object are accepted.
func parseShifts(raw string, logger *slog.Logger) ([]shift.Shift, error) {
	raw = stripFence(strings.TrimSpace(raw))
	if raw == "" {
		logger.Debug("empty extraction response")
		return []shift.Shift{}, nil
	}

	var records []shiftRecord
	if raw[0] == '[' {
		if err := json.Unmarshal([]byte(raw), &records); err != nil {
			logger.Error("failed to parse shift array", "error", err, "raw", truncateStr(raw, 2000))
			return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
		}
	} else {
		var list shiftList
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			logger.Error("failed to parse shift object", "error", err, "raw", truncateStr(raw, 2000))
			return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
		}
		records = list.Shifts
	}

	candidates := make([]shift.Shift, len(records))
	for i, r := range records {
		candidates[i] = r.toShift()
	}

	valid, rejected := shift.Filter(candidates)
	for _, r := range rejected {
		logger.Warn("dropping extracted shift",
			"reason", r.Reason,
			"date", r.Shift.Date,
			"start_time", r.Shift.StartTime,
			"end_time", r.Shift.EndTime,
			"location", r.Shift.Location,
		)
	}
	logger.Debug("parsed shifts", "candidates", len(candidates), "valid", len(valid), "dropped", len(rejected))
	return valid, nil
}

// stripFence removes a ```json ... ``` wrapper.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = ""
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
