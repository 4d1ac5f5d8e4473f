package writer

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/thlib/go-timezone-local/tzlocal"
)

// timezoneFile holds a bare zone name on Debian-style systems where
// /etc/localtime is a copy rather than a symlink.
var timezoneFile = "/etc/timezone"

// ResolveZone returns the IANA zone name to tag events with and the matching
// location. configured wins when it loads; otherwise the host zone is used,
// falling back to UTC.
func ResolveZone(configured string, logger *slog.Logger) (string, *time.Location) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if configured != "" {
		if loc, err := time.LoadLocation(configured); err == nil {
			return configured, loc
		}
		logger.Warn("configured time zone not found", "zone", configured)
	}

	name, err := tzlocal.RuntimeTZ()
	if err != nil {
		logger.Debug("host time zone lookup failed", "error", err)
		name = readZoneFile(timezoneFile)
	}
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return name, loc
		}
	}

	logger.Warn("could not determine local time zone, using UTC", "candidate", name)
	return "UTC", time.UTC
}

func readZoneFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
