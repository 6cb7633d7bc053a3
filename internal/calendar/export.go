package calendar

import (
	"context"
	"errors"

	"infomentor-notifier/internal/components/assert"
	"infomentor-notifier/internal/components/chrono"
	"infomentor-notifier/internal/components/db"
	"infomentor-notifier/internal/components/telemetry"
)

const (
	report_export_entry = "export.entry"
	report_export_count = "export.pushed"
)

// Exporter pushes every stored object whose hash differs from the hash last pushed.
type Exporter struct {
	sink Sink
	time chrono.TimeAPI
	tel  telemetry.API
}

func NewExporter(sink Sink, time chrono.TimeAPI, tel telemetry.API) Exporter {
	assert.NotNil(sink)
	assert.NotNil(time)
	assert.NotNil(tel)
	return Exporter{
		sink: sink,
		time: time,
		tel:  telemetry.NewScopedAPI("calendar", tel),
	}
}

// Export delivers pending objects of one user into the named calendar, creating it when it
// is missing. A failed object is reported and left pending, the others are still pushed.
func (e Exporter) Export(ctx context.Context, qry *db.Queries, userId int64, calendarName string) error {
	entries, err := qry.ListCalendarEntries(ctx, userId)
	if err != nil {
		return err
	}
	var pending []db.CalendarEntry
	for _, entry := range entries {
		if entry.Hash != entry.ExportedHash {
			pending = append(pending, entry)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	handle, found, err := e.sink.FindCalendar(ctx, calendarName)
	if err != nil {
		return err
	}
	if !found {
		handle, err = e.sink.CreateCalendar(ctx, calendarName)
		if err != nil {
			return err
		}
	}

	var errlist []error
	var pushed int64
	for _, entry := range pending {
		stamped, err := Stamp(entry.Ical, e.time.Now())
		if err != nil {
			e.tel.ReportBroken(report_export_entry, err, entry.Uid)
			errlist = append(errlist, &SyncError{Op: "export", Err: err})
			continue
		}
		err = e.sink.AddEvent(ctx, handle, entry.Uid, stamped)
		if err != nil {
			e.tel.ReportBroken(report_export_entry, err, entry.Uid)
			errlist = append(errlist, err)
			continue
		}
		err = qry.SetCalendarEntryExported(ctx, userId, entry.Uid, entry.Hash)
		if err != nil {
			errlist = append(errlist, err)
			continue
		}
		pushed++
	}
	e.tel.ReportCount(report_export_count, pushed)
	return errors.Join(errlist...)
}
