package infomentor

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// StartOfWeek returns the monday of the week containing `now`, moved back by `offset`
// weeks. The time of day is kept, only the date is ever sent to the portal.
func StartOfWeek(now time.Time, offset int) time.Time {
	// monday = 0
	weekday := (int(now.Weekday()) + 6) % 7
	return now.AddDate(0, 0, -weekday-7*offset)
}

// Weeks returns the range starting at StartOfWeek(now, offset) and ending on the saturday
// of the last of `weeks` weeks.
func Weeks(now time.Time, offset, weeks int) WeekRange {
	if weeks < 1 {
		weeks = 1
	}
	start := StartOfWeek(now, offset)
	return WeekRange{
		Start: start,
		End:   start.AddDate(0, 0, 5+7*(weeks-1)),
	}
}

// UTCOffsetMinutes is the local offset from utc in minutes as the portal expects it.
func UTCOffsetMinutes(now time.Time) int {
	_, seconds := now.Zone()
	return seconds / 60
}

func (w WeekRange) form(now time.Time) map[string]string {
	return map[string]string{
		"UTCOffset": strconv.Itoa(UTCOffsetMinutes(now)),
		"start":     w.Start.Format(time.DateOnly),
		"end":       w.End.Format(time.DateOnly),
	}
}

var portalDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	time.DateOnly,
	"02.01.2006 15:04",
	"02.01.2006",
}

// ParseDate understands the date formats the portal uses in its json documents, including
// the `/Date(<unix millis>)/` form.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, "/Date(") && strings.HasSuffix(value, ")/") {
		inner := strings.TrimSuffix(strings.TrimPrefix(value, "/Date("), ")/")
		// drop a trailing timezone designator like +0100
		if len(inner) > 1 {
			if i := strings.IndexAny(inner[1:], "+-"); i >= 0 {
				inner = inner[:i+1]
			}
		}
		millis, err := strconv.ParseInt(inner, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
		}
		return time.UnixMilli(millis).In(loc), nil
	}
	for _, layout := range portalDateLayouts {
		parsed, err := time.ParseInLocation(layout, value, loc)
		if err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse date %q: unknown format", value)
}
