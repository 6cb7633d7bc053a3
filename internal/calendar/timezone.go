package calendar

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
)

type transition struct {
	// at is the first instant of the new offset.
	at         time.Time
	offsetFrom int
	offsetTo   int
	name       string
	dst        bool
}

// transitions lists the offset changes of loc in [from, to). Days are scanned one at a time
// and a change is narrowed down to the second by bisection.
func transitions(loc *time.Location, from, to time.Time) []transition {
	var out []transition
	prev := from.In(loc)
	for day := from.AddDate(0, 0, 1); !day.After(to); day = day.AddDate(0, 0, 1) {
		cur := day.In(loc)
		_, prevOffset := prev.Zone()
		_, curOffset := cur.Zone()
		if prevOffset != curOffset {
			lo, hi := prev, cur
			for hi.Sub(lo) > time.Second {
				mid := lo.Add(hi.Sub(lo) / 2)
				_, midOffset := mid.Zone()
				if midOffset == prevOffset {
					lo = mid
				} else {
					hi = mid
				}
			}
			hi = hi.Truncate(time.Second)
			name, _ := hi.Zone()
			out = append(out, transition{
				at:         hi,
				offsetFrom: prevOffset,
				offsetTo:   curOffset,
				name:       name,
				dst:        hi.IsDST(),
			})
		}
		prev = cur
	}
	return out
}

func formatOffset(seconds int) string {
	sign := "+"
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	return fmt.Sprintf("%s%02d%02d", sign, seconds/3600, (seconds%3600)/60)
}

// onset is the wall clock time a transition happens at, expressed in the offset that was in
// effect before it.
func (t transition) onset() string {
	return t.at.UTC().Add(time.Duration(t.offsetFrom) * time.Second).Format(localTimestampFormat)
}

// Timezone builds the VTIMEZONE for loc from its transitions in `year` and the year after.
// Zones without transitions get a single STANDARD block, utc gets nil.
func Timezone(loc *time.Location, year int) *ics.VTimezone {
	if !hasTzid(loc) {
		return nil
	}
	vtimezone := ics.NewTimezone(loc.String())

	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year+2, time.January, 1, 0, 0, 0, 0, time.UTC)
	found := transitions(loc, from, to)

	if len(found) == 0 {
		name, offset := from.In(loc).Zone()
		standard := vtimezone.AddStandard()
		standard.SetProperty(ics.ComponentPropertyDtStart, "19700101T000000")
		standard.SetProperty(ics.ComponentProperty(ics.PropertyTzoffsetfrom), formatOffset(offset))
		standard.SetProperty(ics.ComponentProperty(ics.PropertyTzoffsetto), formatOffset(offset))
		standard.SetProperty(ics.ComponentProperty(ics.PropertyTzname), name)
		return vtimezone
	}

	groups := map[bool][]transition{}
	for _, t := range found {
		groups[t.dst] = append(groups[t.dst], t)
	}
	// daylight first
	for _, dst := range []bool{true, false} {
		group := groups[dst]
		if len(group) == 0 {
			continue
		}
		var base *ics.ComponentBase
		if dst {
			daylight := &ics.Daylight{}
			vtimezone.Components = append(vtimezone.Components, daylight)
			base = &daylight.ComponentBase
		} else {
			base = &vtimezone.AddStandard().ComponentBase
		}
		first := group[0]
		base.SetProperty(ics.ComponentPropertyDtStart, first.onset())
		for _, t := range group {
			base.AddRdate(t.onset())
		}
		base.SetProperty(ics.ComponentProperty(ics.PropertyTzoffsetfrom), formatOffset(first.offsetFrom))
		base.SetProperty(ics.ComponentProperty(ics.PropertyTzoffsetto), formatOffset(first.offsetTo))
		base.SetProperty(ics.ComponentProperty(ics.PropertyTzname), first.name)
	}
	return vtimezone
}
