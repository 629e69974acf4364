package transcript

import (
	"fmt"
	"strings"
	"time"
)

// DisplayLayout is the fixed transcript timestamp shape: 2-digit month/day/year and a
// 12-hour clock, e.g. "11/14/23, 10:13:20 PM".
const DisplayLayout = "01/02/06, 03:04:05 PM"

// InvalidDate is printed when a structured record has no usable date at all.
const InvalidDate = "Invalid Date"

// isoLayout is the local-time "date" field of structured exports.
const isoLayout = "2006-01-02T15:04:05"

// markupLayouts are tried in order against markup date titles.
var markupLayouts = []string{
	"02.01.2006 15:04:05 UTC-07:00",
	"02.01.2006 15:04:05",
	time.RFC3339,
	isoLayout,
	"2006-01-02 15:04:05",
	"January 2, 2006 15:04:05",
	"Jan 2, 2006, 3:04:05 PM",
	"01/02/2006, 3:04:05 PM",
}

// FormatTime renders t in loc using DisplayLayout.
func FormatTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DisplayLayout)
}

// FormatUnix renders epoch seconds using DisplayLayout.
func FormatUnix(seconds int64, loc *time.Location) string {
	return FormatTime(time.Unix(seconds, 0), loc)
}

// ParseDisplayTime parses a human-readable date-time as found in markup exports.
// Layouts without a zone offset are read in loc.
func ParseDisplayTime(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s = strings.TrimSpace(s)
	for _, layout := range markupLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
}
