// Package calendar turns portal calendar occurrences into iCalendar objects and delivers
// them to an external CalDAV calendar or as email invitations.
package calendar

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"infomentor-notifier/internal/scrapers/infomentor"
	"infomentor-notifier/pkg/htmlutil"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"
)

const productId = "infomentor-notifier"

const localTimestampFormat = "20060102T150405"

// EventUid derives the stable UID of an occurrence. Recurring events share the portal id,
// the instance id keeps their occurrences apart.
func EventUid(id int64, instanceId string) string {
	name := fmt.Sprintf("infomentor-calendar/%d/%s", id, instanceId)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

func parseClock(date time.Time, clock string) (time.Time, bool) {
	clock = strings.TrimSpace(clock)
	if clock == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"15:04", "15:04:05"} {
		parsed, err := time.Parse(layout, clock)
		if err == nil {
			return time.Date(
				date.Year(), date.Month(), date.Day(),
				parsed.Hour(), parsed.Minute(), parsed.Second(), 0,
				date.Location(),
			), true
		}
	}
	return time.Time{}, false
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// hasTzid is false for zones that cannot be named in a TZID parameter.
func hasTzid(loc *time.Location) bool {
	name := loc.String()
	return name != "UTC" && name != "Local" && name != ""
}

// Render renders one occurrence as a VCALENDAR holding a single VEVENT. DTSTAMP is left
// out so that the same occurrence always renders to the same bytes, see Stamp.
//
// All-day events use DATE values with an exclusive end, timed events use DATE-TIME values
// in `loc` (with a VTIMEZONE) or in utc when the zone has no usable name.
func Render(event infomentor.CalendarEvent, uid string, loc *time.Location) ([]byte, error) {
	startDay, err := infomentor.ParseDate(event.StartDate, loc)
	if err != nil {
		return nil, fmt.Errorf("start of event %d: %w", event.Id, err)
	}
	startDay = dateOnly(startDay)
	endDay := startDay
	if event.EndDate != "" {
		endDay, err = infomentor.ParseDate(event.EndDate, loc)
		if err != nil {
			return nil, fmt.Errorf("end of event %d: %w", event.Id, err)
		}
		endDay = dateOnly(endDay)
	}

	cal := ics.NewCalendarFor(productId)

	start, timed := parseClock(startDay, event.StartTime)
	allDay := event.AllDay || !timed

	var end time.Time
	if !allDay {
		var ok bool
		end, ok = parseClock(endDay, event.EndTime)
		if !ok || !end.After(start) {
			end = start.Add(time.Hour)
		}
		if hasTzid(loc) {
			vtimezone := Timezone(loc, start.Year())
			if vtimezone != nil {
				cal.AddVTimezone(vtimezone)
			}
		}
	}

	vevent := cal.AddEvent(uid)
	if allDay {
		if endDay.Before(startDay) {
			endDay = startDay
		}
		vevent.SetAllDayStartAt(startDay)
		vevent.SetAllDayEndAt(endDay.AddDate(0, 0, 1))
	} else if hasTzid(loc) {
		tzid := ics.WithTZID(loc.String())
		vevent.SetProperty(ics.ComponentPropertyDtStart, start.Format(localTimestampFormat), tzid)
		vevent.SetProperty(ics.ComponentPropertyDtEnd, end.Format(localTimestampFormat), tzid)
	} else {
		vevent.SetStartAt(start)
		vevent.SetEndAt(end)
	}

	vevent.SetSummary(event.Title)
	notes := htmlutil.ToText(event.Notes)
	if notes != "" {
		vevent.SetDescription(notes)
	}
	if event.Location != "" {
		vevent.SetLocation(event.Location)
	}

	return []byte(cal.Serialize()), nil
}

// Hash is the content hash stored next to a rendered object, a changed hash means the
// occurrence changed on the portal.
func Hash(ical []byte) string {
	sum := sha256.Sum256(ical)
	return hex.EncodeToString(sum[:])
}

func parse(ical []byte) (*ics.Calendar, *ics.VEvent, error) {
	cal, err := ics.ParseCalendar(bytes.NewReader(ical))
	if err != nil {
		return nil, nil, fmt.Errorf("parse calendar object: %w", err)
	}
	events := cal.Events()
	if len(events) != 1 {
		return nil, nil, fmt.Errorf("expected one event in calendar object, got %d", len(events))
	}
	return cal, events[0], nil
}

// Stamp adds the DTSTAMP required by consumers of a rendered object.
func Stamp(ical []byte, now time.Time) ([]byte, error) {
	cal, vevent, err := parse(ical)
	if err != nil {
		return nil, err
	}
	vevent.SetDtStampTime(now)
	return []byte(cal.Serialize()), nil
}
