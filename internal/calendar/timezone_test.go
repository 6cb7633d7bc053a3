package calendar

import (
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/require"
)

func values(base *ics.ComponentBase, prop ics.ComponentProperty) []string {
	var out []string
	for _, p := range base.GetProperties(prop) {
		out = append(out, p.Value)
	}
	return out
}

func TestTimezoneWithDaylightSaving(t *testing.T) {
	vtimezone := Timezone(mustLocation(t, "Europe/Berlin"), 2024)
	require.NotNil(t, vtimezone)
	require.Equal(t, "Europe/Berlin", vtimezone.GetProperty(ics.ComponentPropertyTzid).Value)
	require.Len(t, vtimezone.Components, 2)

	daylight, ok := vtimezone.Components[0].(*ics.Daylight)
	require.True(t, ok, "daylight comes first")
	require.Equal(t, []string{"20240331T020000"}, values(&daylight.ComponentBase, ics.ComponentPropertyDtStart))
	require.Equal(t,
		[]string{"20240331T020000", "20250330T020000"},
		values(&daylight.ComponentBase, ics.ComponentPropertyRdate),
	)
	require.Equal(t, []string{"+0100"}, values(&daylight.ComponentBase, ics.ComponentProperty(ics.PropertyTzoffsetfrom)))
	require.Equal(t, []string{"+0200"}, values(&daylight.ComponentBase, ics.ComponentProperty(ics.PropertyTzoffsetto)))
	require.Equal(t, []string{"CEST"}, values(&daylight.ComponentBase, ics.ComponentProperty(ics.PropertyTzname)))

	standard, ok := vtimezone.Components[1].(*ics.Standard)
	require.True(t, ok)
	require.Equal(t, []string{"20241027T030000"}, values(&standard.ComponentBase, ics.ComponentPropertyDtStart))
	require.Equal(t,
		[]string{"20241027T030000", "20251026T030000"},
		values(&standard.ComponentBase, ics.ComponentPropertyRdate),
	)
	require.Equal(t, []string{"+0200"}, values(&standard.ComponentBase, ics.ComponentProperty(ics.PropertyTzoffsetfrom)))
	require.Equal(t, []string{"+0100"}, values(&standard.ComponentBase, ics.ComponentProperty(ics.PropertyTzoffsetto)))
	require.Equal(t, []string{"CET"}, values(&standard.ComponentBase, ics.ComponentProperty(ics.PropertyTzname)))
}

func TestTimezoneWithoutTransitions(t *testing.T) {
	require.Nil(t, Timezone(time.UTC, 2024))

	vtimezone := Timezone(time.FixedZone("Fixed", 5*3600+30*60), 2024)
	require.NotNil(t, vtimezone)
	require.Len(t, vtimezone.Components, 1)
	standard, ok := vtimezone.Components[0].(*ics.Standard)
	require.True(t, ok)
	require.Equal(t, []string{"+0530"}, values(&standard.ComponentBase, ics.ComponentProperty(ics.PropertyTzoffsetto)))
}
