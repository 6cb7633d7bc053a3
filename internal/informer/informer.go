// Package informer decides what is new on the portal for one user, persists it and hands
// it to the notifier exactly once.
package informer

import (
	"context"
	"database/sql"
	"errors"

	"infomentor-notifier/internal/calendar"
	"infomentor-notifier/internal/components/assert"
	"infomentor-notifier/internal/components/chrono"
	"infomentor-notifier/internal/components/db"
	"infomentor-notifier/internal/components/telemetry"
	"infomentor-notifier/internal/scrapers/infomentor"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("infomentor-notifier/informer")
var meter = otel.Meter("infomentor-notifier/informer")

var (
	itemsNew, _            = meter.Int64Counter("items_new")
	notificationsFailed, _ = meter.Int64Counter("notifications_failed")
)

const (
	report_sync_news       = "sync.news"
	report_sync_homework   = "sync.homework"
	report_sync_calendar   = "sync.calendar"
	report_sync_attachment = "sync.attachment"
	report_notify          = "notify"
	report_calendar_invite = "calendar.invite"
	report_calendar_export = "calendar.export"
)

// Portal is the part of the portal client the informer reads from.
type Portal interface {
	NewsList(ctx context.Context) ([]infomentor.NewsListItem, error)
	Article(ctx context.Context, id int64) (infomentor.Article, error)
	NewsImage(ctx context.Context, id int64) (string, error)
	Homework(ctx context.Context) ([]infomentor.HomeworkItem, error)
	CalendarEntries(ctx context.Context, offset, weeks int) ([]infomentor.CalendarListEntry, error)
	CalendarEvent(ctx context.Context, id int64, instanceId string) (infomentor.CalendarEvent, error)
	DownloadAttachment(ctx context.Context, ref infomentor.AttachmentRef) (infomentor.DownloadedAttachment, error)
}

// Notifier delivers new records to the user.
type Notifier interface {
	NotifyNews(ctx context.Context, news db.News, attachments []db.Attachment) error
	NotifyHomework(ctx context.Context, homework db.Homework, attachments []db.Attachment) error
}

// Inviter mails a calendar invitation for one rendered object.
type Inviter interface {
	Invite(ical []byte, to string) error
}

type NewsRecord struct {
	News        db.News
	Attachments []db.Attachment
}

type HomeworkRecord struct {
	Homework    db.Homework
	Attachments []db.Attachment
}

type CalendarRecord struct {
	Entry db.CalendarEntry
	Event infomentor.CalendarEvent
}

type Options struct {
	User     db.User
	Portal   Portal
	DB       *sql.DB
	Notifier Notifier
	Time     chrono.TimeAPI
	Tel      telemetry.API

	// CalendarWeeks is how many weeks of calendar entries are fetched, starting this week.
	CalendarWeeks int
	// Inviter is optional, without one no invitations are sent.
	Inviter Inviter
	// Exporter is optional, without one nothing is exported.
	Exporter     *calendar.Exporter
	CalendarName string
}

// Informer syncs one user.
type Informer struct {
	user     db.User
	portal   Portal
	qry      *db.Queries
	dbtx     *sql.DB
	notifier Notifier
	time     chrono.TimeAPI
	tel      telemetry.API

	calendarWeeks int
	inviter       Inviter
	exporter      *calendar.Exporter
	calendarName  string
}

func NewInformer(opts Options) Informer {
	assert.NotNil(opts.Portal)
	assert.NotNil(opts.DB)
	assert.NotNil(opts.Notifier)
	assert.NotNil(opts.Time)
	assert.NotNil(opts.Tel)
	assert.NotEmptyStr(opts.User.Name)

	weeks := opts.CalendarWeeks
	if weeks < 1 {
		weeks = 2
	}
	return Informer{
		user:          opts.User,
		portal:        opts.Portal,
		qry:           db.New(opts.DB),
		dbtx:          opts.DB,
		notifier:      opts.Notifier,
		time:          opts.Time,
		tel:           telemetry.NewScopedAPI(opts.User.Name, telemetry.NewScopedAPI("informer", opts.Tel)),
		calendarWeeks: weeks,
		inviter:       opts.Inviter,
		exporter:      opts.Exporter,
		calendarName:  opts.CalendarName,
	}
}

func failSpan(span trace.Span, err error, msg string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
}

// commit runs fn in a transaction that is committed when fn succeeds.
func (i Informer) commit(ctx context.Context, fn func(tx *db.Queries) error) error {
	return db.RunTx(ctx, i.dbtx, fn)
}

// downloadAttachments fetches every attachment, attachments without a download id are
// reported and skipped.
func (i Informer) downloadAttachments(ctx context.Context, refs []infomentor.AttachmentRef) ([]db.Attachment, error) {
	var out []db.Attachment
	for _, ref := range refs {
		downloaded, err := i.portal.DownloadAttachment(ctx, ref)
		var parseErr *infomentor.AttachmentParseError
		if errors.As(err, &parseErr) {
			i.tel.ReportWarning(report_sync_attachment, err)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, db.Attachment{
			AttachmentID: downloaded.AttachmentId,
			Url:          downloaded.Url,
			Title:        downloaded.Title,
			LocalPath:    downloaded.LocalPath,
		})
	}
	return out, nil
}

func (i Informer) countNew(ctx context.Context, kind string, n int) {
	itemsNew.Add(ctx, int64(n), metric.WithAttributes(attribute.String("kind", kind)))
	i.tel.ReportCount(kind+".new", int64(n))
}
