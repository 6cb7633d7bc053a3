package calendar

import (
	"context"
	"fmt"
)

// SyncError is a failure while delivering calendar objects. It never aborts a poll cycle.
type SyncError struct {
	Op  string
	Err error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("calendar %s: %s", e.Op, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// Sink is an external calendar that receives rendered objects.
type Sink interface {
	// FindCalendar returns the handle of the calendar with the given display name.
	FindCalendar(ctx context.Context, name string) (handle string, found bool, err error)
	CreateCalendar(ctx context.Context, name string) (handle string, err error)
	// AddEvent creates or replaces the object `uid` in the calendar.
	AddEvent(ctx context.Context, handle, uid string, ical []byte) error
}

// NullSink accepts everything and stores nothing, it stands in for users without an
// external calendar.
type NullSink struct{}

func (NullSink) FindCalendar(context.Context, string) (string, bool, error) {
	return "", true, nil
}

func (NullSink) CreateCalendar(context.Context, string) (string, error) {
	return "", nil
}

func (NullSink) AddEvent(context.Context, string, string, []byte) error {
	return nil
}
