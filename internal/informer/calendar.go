package informer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"infomentor-notifier/internal/calendar"
	"infomentor-notifier/internal/components/db"
	"infomentor-notifier/internal/scrapers/infomentor"

	"go.opentelemetry.io/otel/attribute"
)

func (i Informer) syncCalendarEntry(ctx context.Context, listed infomentor.CalendarListEntry) (CalendarRecord, bool, error) {
	event, err := i.portal.CalendarEvent(ctx, listed.Id, listed.InstanceId)
	if err != nil {
		return CalendarRecord{}, false, err
	}
	uid := calendar.EventUid(event.Id, event.InstanceId)
	ical, err := calendar.Render(event, uid, i.time.Location())
	if err != nil {
		return CalendarRecord{}, false, err
	}
	hash := calendar.Hash(ical)

	entry, err := i.qry.GetCalendarEntry(ctx, i.user.ID, uid)
	switch {
	case err == nil && entry.Hash == hash:
		return CalendarRecord{}, false, nil
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return CalendarRecord{}, false, err
	}

	err = i.commit(ctx, func(tx *db.Queries) error {
		return tx.UpsertCalendarEntry(ctx, db.UpsertCalendarEntryParams{
			UserID: i.user.ID,
			Uid:    uid,
			Ical:   ical,
			Hash:   hash,
		})
	})
	if err != nil {
		return CalendarRecord{}, false, fmt.Errorf("persist calendar entry %d: %w", event.Id, err)
	}

	stored, err := i.qry.GetCalendarEntry(ctx, i.user.ID, uid)
	if err != nil {
		return CalendarRecord{}, false, err
	}
	return CalendarRecord{Entry: stored, Event: event}, true, nil
}

// SyncCalendar renders every calendar occurrence of the configured weeks and returns the
// ones that are new or whose rendering changed, failures behave like in SyncNews.
func (i Informer) SyncCalendar(ctx context.Context) ([]CalendarRecord, error) {
	ctx, span := tracer.Start(ctx, "SyncCalendar")
	defer span.End()

	entries, err := i.portal.CalendarEntries(ctx, 0, i.calendarWeeks)
	if err != nil {
		failSpan(span, err, "failed to fetch calendar entries")
		return nil, err
	}

	var out []CalendarRecord
	for _, listed := range entries {
		record, changed, err := i.syncCalendarEntry(ctx, listed)
		if err != nil {
			i.tel.ReportBroken(report_sync_calendar, err, listed.Id, listed.InstanceId)
			failSpan(span, err, "failed to sync calendar entry")
			i.countNew(ctx, "calendar", len(out))
			return out, err
		}
		if changed {
			out = append(out, record)
		}
	}
	span.SetAttributes(attribute.Int("changed", len(out)))
	i.countNew(ctx, "calendar", len(out))
	return out, nil
}

// UpdateCalendar syncs the calendar, invites the user to changed occurrences and exports
// pending ones. Invitation and export failures are reported but never fail the update.
func (i Informer) UpdateCalendar(ctx context.Context) error {
	records, syncErr := i.SyncCalendar(ctx)

	if i.inviter != nil && i.user.InvitationEmail != "" {
		for _, record := range records {
			err := i.inviter.Invite(record.Entry.Ical, i.user.InvitationEmail)
			if err != nil {
				i.tel.ReportWarning(report_calendar_invite, err, record.Entry.Uid)
			}
		}
	}

	if i.exporter != nil && i.calendarName != "" {
		err := i.exporter.Export(ctx, i.qry, i.user.ID, i.calendarName)
		if err != nil {
			i.tel.ReportBroken(report_calendar_export, err)
		}
	}

	return syncErr
}
