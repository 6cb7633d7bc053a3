// Package status tracks whether polling a user's portal account works across cycles and
// decides when the user is told about it.
package status

import (
	"fmt"
	"time"

	"infomentor-notifier/internal/components/db"
)

// Cycle is the outcome of one poll cycle for one user.
type Cycle struct {
	Ok   bool
	Info string
	At   time.Time
}

// Alert is a status notice for the user, Send is false when nothing should be sent.
type Alert struct {
	Send bool
	Text string
}

// Reconcile computes the status after a cycle from the previous status, `previous` is nil
// when the user was never polled before and then counts as failed zero times.
//
// A failure after a success only marks the user degraded. The notice goes out on the second
// consecutive failure, a success after failures sends a recovery notice with the number of
// failures. Notices are only sent to users that opted in.
func Reconcile(previous *db.ApiStatus, cycle Cycle, optedIn bool) (db.ApiStatus, Alert) {
	prev := db.ApiStatus{Ok: false, DegradedCount: 0}
	if previous != nil {
		prev = *previous
	}

	next := db.ApiStatus{
		UserID:        prev.UserID,
		Ok:            cycle.Ok,
		DegradedCount: prev.DegradedCount,
		Datetime:      cycle.At.Unix(),
		Info:          cycle.Info,
	}

	switch {
	case prev.Ok && !cycle.Ok:
		next.DegradedCount = 1
		return next, Alert{}

	case !prev.Ok && !cycle.Ok:
		next.DegradedCount = prev.DegradedCount + 1
		if prev.DegradedCount == 1 && optedIn {
			return next, Alert{Send: true, Text: cycle.Info}
		}
		return next, Alert{}

	case !prev.Ok && cycle.Ok:
		next.DegradedCount = 0
		next.Info = fmt.Sprintf("Works as expected, failed %d times", prev.DegradedCount)
		if optedIn {
			return next, Alert{Send: true, Text: next.Info}
		}
		return next, Alert{}
	}

	// still fine, only the timestamp moves
	next.Info = prev.Info
	return next, Alert{}
}
