package chrono

import (
	"time"
)

// TimeAPI is the interface that anything depending on the system clock should use.
type TimeAPI interface {
	// Now returns the current time in Location().
	Now() time.Time
	// Location is the wall-clock zone the portal and the users live in, week boundaries and the
	// push timestamp quirk are computed in it.
	Location() *time.Location
}

// StandardTime is the standard implementation of TimeAPI using the standard library.
type StandardTime struct {
	location *time.Location
}

// NewStandardTime loads the named zone, an empty name means time.Local.
func NewStandardTime(zone string) (StandardTime, error) {
	if zone == "" {
		return StandardTime{location: time.Local}, nil
	}
	location, err := time.LoadLocation(zone)
	if err != nil {
		return StandardTime{}, err
	}
	return StandardTime{location: location}, nil
}

func (s StandardTime) Now() time.Time {
	return time.Now().In(s.location)
}

func (s StandardTime) Location() *time.Location {
	return s.location
}

// StaticTime is a TimeAPI frozen at a given instant, used by tests.
type StaticTime struct {
	At time.Time
}

func (s StaticTime) Now() time.Time {
	return s.At
}

func (s StaticTime) Location() *time.Location {
	return s.At.Location()
}
