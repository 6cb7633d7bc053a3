package informer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"infomentor-notifier/internal/components/db"
	"infomentor-notifier/internal/scrapers/infomentor"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func (i Informer) fetchHomework(ctx context.Context, item infomentor.HomeworkItem) (HomeworkRecord, error) {
	attachments, err := i.downloadAttachments(ctx, item.Attachments)
	if err != nil {
		return HomeworkRecord{}, err
	}

	homework := db.Homework{
		UserID:        i.user.ID,
		HomeworkID:    item.Id,
		Subject:       item.Subject,
		CourseElement: item.CourseElement,
		Text:          item.HomeworkText,
		Date:          item.Date,
	}
	err = i.commit(ctx, func(tx *db.Queries) error {
		id, err := tx.CreateHomework(ctx, homework)
		if err != nil {
			return err
		}
		homework.ID = id
		for idx := range attachments {
			attachments[idx].HomeworkID = &homework.ID
			err = tx.CreateAttachment(ctx, attachments[idx])
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return HomeworkRecord{}, fmt.Errorf("persist homework %d: %w", item.Id, err)
	}
	return HomeworkRecord{Homework: homework, Attachments: attachments}, nil
}

// SyncHomework persists homework not seen before and returns it, failures behave like in
// SyncNews.
func (i Informer) SyncHomework(ctx context.Context) ([]HomeworkRecord, error) {
	ctx, span := tracer.Start(ctx, "SyncHomework")
	defer span.End()

	items, err := i.portal.Homework(ctx)
	if err != nil {
		failSpan(span, err, "failed to fetch homework")
		return nil, err
	}

	var out []HomeworkRecord
	seen := map[int64]bool{}
	for _, item := range items {
		// the same homework can be listed in both weeks
		if seen[item.Id] {
			continue
		}
		seen[item.Id] = true

		_, err := i.qry.GetHomework(ctx, i.user.ID, item.Id)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			failSpan(span, err, "failed to look up homework")
			return out, err
		}

		record, err := i.fetchHomework(ctx, item)
		if err != nil {
			i.tel.ReportBroken(report_sync_homework, err, item.Id)
			failSpan(span, err, "failed to fetch homework")
			i.countNew(ctx, "homework", len(out))
			return out, err
		}
		out = append(out, record)
	}
	span.SetAttributes(attribute.Int("new", len(out)))
	i.countNew(ctx, "homework", len(out))
	return out, nil
}

func (i Informer) UpdateHomework(ctx context.Context) error {
	records, syncErr := i.SyncHomework(ctx)
	for _, record := range records {
		err := i.notifier.NotifyHomework(ctx, record.Homework, record.Attachments)
		if err != nil {
			i.tel.ReportWarning(report_notify, err, record.Homework.HomeworkID)
			notificationsFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "homework")))
			continue
		}
		err = i.qry.MarkHomeworkNotified(ctx, record.Homework.ID)
		if err != nil {
			return err
		}
	}
	return syncErr
}
