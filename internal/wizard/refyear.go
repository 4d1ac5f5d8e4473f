package wizard

import (
	"fmt"
	"strings"
	"time"

	"github.com/tj/go-naturaldate"
)

// ReferenceYear picks the year used for dates printed without one:
// configured if set, else the year of the natural-language week expression
// (for example "next monday"), else the year of now.
func ReferenceYear(configured int, week string, now time.Time) (int, error) {
	if configured != 0 {
		return configured, nil
	}
	week = strings.TrimSpace(week)
	if week == "" {
		return now.Year(), nil
	}
	t, err := naturaldate.Parse(week, now, naturaldate.WithDirection(naturaldate.Future))
	if err != nil {
		return 0, fmt.Errorf("parsing week %q: %w", week, err)
	}
	return t.Year(), nil
}
