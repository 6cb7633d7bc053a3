package informer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"infomentor-notifier/internal/calendar"
	"infomentor-notifier/internal/components/blob"
	"infomentor-notifier/internal/components/chrono"
	"infomentor-notifier/internal/components/db"
	"infomentor-notifier/internal/components/telemetry"
	"infomentor-notifier/internal/scrapers/infomentor"
	"infomentor-notifier/internal/scrapers/infomentor/infomentortest"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	dbtx, err := db.OpenSqlite(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx, dbtx))
	t.Cleanup(func() { dbtx.Close() })
	return dbtx
}

func createUser(t *testing.T, dbtx *sql.DB, name string) db.User {
	t.Helper()
	ctx := context.Background()
	qry := db.New(dbtx)
	_, err := qry.CreateUser(ctx, db.CreateUserParams{Name: name, EncPassword: "sealed"})
	require.NoError(t, err)
	user, err := qry.GetUserByName(ctx, name)
	require.NoError(t, err)
	return user
}

type recordingNotifier struct {
	news     []db.News
	homework []db.Homework
	files    [][]db.Attachment
	fail     bool
}

func (n *recordingNotifier) NotifyNews(_ context.Context, news db.News, attachments []db.Attachment) error {
	if n.fail {
		return errors.New("channel down")
	}
	n.news = append(n.news, news)
	n.files = append(n.files, attachments)
	return nil
}

func (n *recordingNotifier) NotifyHomework(_ context.Context, homework db.Homework, attachments []db.Attachment) error {
	if n.fail {
		return errors.New("channel down")
	}
	n.homework = append(n.homework, homework)
	n.files = append(n.files, attachments)
	return nil
}

type recordingInviter struct {
	invited []string
}

func (i *recordingInviter) Invite(ical []byte, to string) error {
	i.invited = append(i.invited, to)
	return nil
}

func TestAliceEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	portal := &infomentortest.Portal{
		Username: "alice",
		Password: "secret",
		Articles: []infomentortest.Article{
			{
				Id:            1,
				PublishedDate: "2024-03-04",
				Title:         "Sports day",
				Content:       "Bring shoes",
				Image:         []byte("png"),
				Attachments: []infomentortest.Attachment{
					{Id: 11, Title: "Plan", Filename: "plan.pdf", Content: []byte("pdf")},
				},
			},
			{Id: 2, PublishedDate: "2024-03-05", Title: "Holiday", Content: "No school"},
		},
		Homework: map[string][]infomentortest.HomeworkGroup{
			"2024-03-04": {{Date: "2024-03-05", Items: []infomentortest.Homework{
				{Id: 0, Subject: "placeholder"},
				{Id: 21, Subject: "Maths", Text: "Page 12"},
			}}},
			"2024-02-26": {{Date: "2024-02-27", Items: []infomentortest.Homework{
				{Id: 22, Subject: "German", Text: "Read"},
			}}},
		},
		Calendar: []infomentortest.CalendarEvent{
			{Id: 31, InstanceId: "a", Title: "Parents evening", StartDate: "2024-03-08", StartTime: "18:00", EndTime: "19:00"},
		},
	}
	server := infomentortest.NewServer(portal)
	defer server.Close()

	dir := t.TempDir()
	tel := &telemetry.Recorder{}
	clock := chrono.StaticTime{At: testNow}
	client, err := infomentor.NewClient("alice", infomentor.ClientOptions{
		Config: infomentor.Config{
			MimBaseUrl: server.MimUrl(),
			Im1BaseUrl: server.Im1Url(),
			FilesDir:   filepath.Join(dir, "files"),
			ImagesDir:  filepath.Join(dir, "images"),
		},
		Cookies: blob.MemoryStore{},
		Time:    clock,
		Tel:     tel,
	})
	require.NoError(t, err)
	require.NoError(t, client.EnsureSession(ctx, "secret"))

	dbtx := openTestDB(t)
	user := createUser(t, dbtx, "alice")
	require.NoError(t, db.New(dbtx).SetInvitationEmail(ctx, user.ID, "alice@example.com"))
	user.InvitationEmail = "alice@example.com"

	notifier := &recordingNotifier{}
	inviter := &recordingInviter{}
	exporter := calendar.NewExporter(calendar.NullSink{}, clock, tel)
	informer := NewInformer(Options{
		User:         user,
		Portal:       client,
		DB:           dbtx,
		Notifier:     notifier,
		Time:         clock,
		Tel:          tel,
		Inviter:      inviter,
		Exporter:     &exporter,
		CalendarName: "School",
	})

	require.NoError(t, informer.UpdateNews(ctx))
	require.NoError(t, informer.UpdateHomework(ctx))
	require.NoError(t, informer.UpdateCalendar(ctx))

	require.Len(t, notifier.news, 2)
	require.Equal(t, "Sports day", notifier.news[0].Title)
	require.NotEmpty(t, notifier.news[0].ImageFile)
	_, err = os.Stat(filepath.Join(dir, "images", filepath.FromSlash(notifier.news[0].ImageFile)))
	require.NoError(t, err, "the image is downloaded")
	require.Empty(t, notifier.news[1].ImageFile)

	require.Len(t, notifier.files[0], 1)
	require.Equal(t, int64(11), notifier.files[0][0].AttachmentID)
	content, err := os.ReadFile(filepath.Join(dir, "files", filepath.FromSlash(notifier.files[0][0].LocalPath)))
	require.NoError(t, err)
	require.Equal(t, "pdf", string(content))
	require.Equal(t, "plan.pdf", filepath.Base(notifier.files[0][0].LocalPath))

	require.Len(t, notifier.homework, 2)
	require.Equal(t, "Maths", notifier.homework[0].Subject)
	require.Equal(t, "2024-03-05", notifier.homework[0].Date)
	require.Equal(t, "German", notifier.homework[1].Subject)

	require.Equal(t, []string{"alice@example.com"}, inviter.invited)

	qry := db.New(dbtx)
	stored, err := qry.ListNews(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	for _, news := range stored {
		require.True(t, news.Notified)
	}
	entries, err := qry.ListCalendarEntries(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, entries[0].Hash, entries[0].ExportedHash)

	// nothing changed, nothing is notified again
	require.NoError(t, informer.UpdateNews(ctx))
	require.NoError(t, informer.UpdateHomework(ctx))
	require.NoError(t, informer.UpdateCalendar(ctx))
	require.Len(t, notifier.news, 2)
	require.Len(t, notifier.homework, 2)
	require.Len(t, inviter.invited, 1)

	// a new article, a republished one and a moved event
	portal.Lock()
	portal.Articles[1].PublishedDate = "2024-03-06"
	portal.Articles[1].Content = "Still no school"
	portal.Articles = append(portal.Articles,
		infomentortest.Article{Id: 3, PublishedDate: "2024-03-06", Title: "Trip", Content: "Zoo"},
	)
	portal.Calendar[0].StartTime = "18:30"
	portal.Unlock()

	require.NoError(t, informer.UpdateNews(ctx))
	require.NoError(t, informer.UpdateCalendar(ctx))
	require.Len(t, notifier.news, 4)
	require.Equal(t, "Still no school", notifier.news[2].Content, "a republished article is new")
	require.Equal(t, "2024-03-06", notifier.news[2].Date)
	require.Equal(t, "Trip", notifier.news[3].Title)
	require.Len(t, inviter.invited, 2)

	entries, err = qry.ListCalendarEntries(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1, "a changed event replaces its stored rendering")
}

// fakePortal serves records from memory and can fail individual articles.
type fakePortal struct {
	news        []infomentor.NewsListItem
	articles    map[int64]infomentor.Article
	failArticle map[int64]bool
	homework    []infomentor.HomeworkItem
	events      []infomentor.CalendarEvent
}

func (p *fakePortal) NewsList(context.Context) ([]infomentor.NewsListItem, error) {
	return p.news, nil
}

func (p *fakePortal) Article(_ context.Context, id int64) (infomentor.Article, error) {
	if p.failArticle[id] {
		return infomentor.Article{}, &infomentor.PortalError{Endpoint: "news", Err: errors.New("malformed")}
	}
	return p.articles[id], nil
}

func (p *fakePortal) NewsImage(context.Context, int64) (string, error) {
	return "", nil
}

func (p *fakePortal) Homework(context.Context) ([]infomentor.HomeworkItem, error) {
	return p.homework, nil
}

func (p *fakePortal) CalendarEntries(context.Context, int, int) ([]infomentor.CalendarListEntry, error) {
	var out []infomentor.CalendarListEntry
	for _, e := range p.events {
		out = append(out, infomentor.CalendarListEntry{Id: e.Id, InstanceId: e.InstanceId, Title: e.Title})
	}
	return out, nil
}

func (p *fakePortal) CalendarEvent(_ context.Context, id int64, instanceId string) (infomentor.CalendarEvent, error) {
	for _, e := range p.events {
		if e.Id == id && e.InstanceId == instanceId {
			return e, nil
		}
	}
	return infomentor.CalendarEvent{}, fmt.Errorf("no event %d", id)
}

func (p *fakePortal) DownloadAttachment(_ context.Context, ref infomentor.AttachmentRef) (infomentor.DownloadedAttachment, error) {
	id, err := infomentor.AttachmentId(ref.Url)
	if err != nil {
		return infomentor.DownloadedAttachment{}, err
	}
	return infomentor.DownloadedAttachment{
		AttachmentId: id,
		Url:          ref.Url,
		Title:        ref.Title,
		LocalPath:    fmt.Sprintf("dir-%d/%s", id, ref.Title),
	}, nil
}

func newTestInformer(t *testing.T, portal Portal, notifier Notifier) (Informer, *sql.DB, db.User, *telemetry.Recorder) {
	t.Helper()
	dbtx := openTestDB(t)
	user := createUser(t, dbtx, "alice")
	tel := &telemetry.Recorder{}
	informer := NewInformer(Options{
		User:     user,
		Portal:   portal,
		DB:       dbtx,
		Notifier: notifier,
		Time:     chrono.StaticTime{At: testNow},
		Tel:      tel,
	})
	return informer, dbtx, user, tel
}

func TestPartialBatch(t *testing.T) {
	ctx := context.Background()
	portal := &fakePortal{
		news: []infomentor.NewsListItem{
			{Id: 1, PublishedDate: "2024-03-04"},
			{Id: 2, PublishedDate: "2024-03-04"},
			{Id: 3, PublishedDate: "2024-03-04"},
		},
		articles: map[int64]infomentor.Article{
			1: {Id: 1, Title: "one"},
			2: {Id: 2, Title: "two"},
			3: {Id: 3, Title: "three"},
		},
		failArticle: map[int64]bool{2: true},
	}
	informer, dbtx, user, tel := newTestInformer(t, portal, &recordingNotifier{})

	records, err := informer.SyncNews(ctx)
	var portalErr *infomentor.PortalError
	require.ErrorAs(t, err, &portalErr)
	require.Len(t, records, 1, "records before the failure are returned")
	require.Len(t, tel.Reports("broken", report_sync_news), 1)

	stored, err := db.New(dbtx).ListNews(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1, "records before the failure stay committed")

	delete(portal.failArticle, 2)
	records, err = informer.SyncNews(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "two", records[0].News.Title)
	require.Equal(t, "three", records[1].News.Title)
}

func TestNewsDateFallback(t *testing.T) {
	ctx := context.Background()
	portal := &fakePortal{
		news:     []infomentor.NewsListItem{{Id: 1}},
		articles: map[int64]infomentor.Article{1: {Id: 1, Title: "one", Date: "2024-03-01"}},
	}
	informer, _, _, _ := newTestInformer(t, portal, &recordingNotifier{})

	records, err := informer.SyncNews(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "2024-03-01", records[0].News.Date)

	records, err = informer.SyncNews(ctx)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestAttachmentParseErrorSkipped(t *testing.T) {
	ctx := context.Background()
	portal := &fakePortal{
		homework: []infomentor.HomeworkItem{{
			Id:      5,
			Subject: "Maths",
			Attachments: []infomentor.AttachmentRef{
				{Url: "/Resources/Resource/Download/77?api=IM2", Title: "sheet.pdf"},
				{Url: "/somewhere/else", Title: "broken"},
			},
		}},
	}
	informer, dbtx, _, tel := newTestInformer(t, portal, &recordingNotifier{})

	records, err := informer.SyncHomework(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Len(t, records[0].Attachments, 1)
	require.Len(t, tel.Reports("warning", report_sync_attachment), 1)

	stored, err := db.New(dbtx).ListHomeworkAttachments(ctx, records[0].Homework.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, "dir-77/sheet.pdf", stored[0].LocalPath)
}

func TestFailedNotificationIsNotRetried(t *testing.T) {
	ctx := context.Background()
	portal := &fakePortal{
		homework: []infomentor.HomeworkItem{{Id: 5, Subject: "Maths"}},
	}
	notifier := &recordingNotifier{fail: true}
	informer, dbtx, user, tel := newTestInformer(t, portal, notifier)

	require.NoError(t, informer.UpdateHomework(ctx))
	require.Len(t, tel.Reports("warning", report_notify), 1)

	stored, err := db.New(dbtx).GetHomework(ctx, user.ID, 5)
	require.NoError(t, err)
	require.False(t, stored.Notified)

	notifier.fail = false
	require.NoError(t, informer.UpdateHomework(ctx))
	require.Empty(t, notifier.homework)
}

func TestSyncCalendarHashGate(t *testing.T) {
	ctx := context.Background()
	portal := &fakePortal{
		events: []infomentor.CalendarEvent{
			{Id: 1, InstanceId: "a", Title: "Holiday", StartDate: "2024-03-08", AllDay: true},
			{Id: 1, InstanceId: "b", Title: "Holiday", StartDate: "2024-03-15", AllDay: true},
		},
	}
	informer, dbtx, user, _ := newTestInformer(t, portal, &recordingNotifier{})

	records, err := informer.SyncCalendar(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2, "instances of a recurring event are stored separately")
	require.NotEqual(t, records[0].Entry.Uid, records[1].Entry.Uid)

	records, err = informer.SyncCalendar(ctx)
	require.NoError(t, err)
	require.Empty(t, records)

	portal.events[1].Title = "Holiday (moved)"
	records, err = informer.SyncCalendar(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "Holiday (moved)", records[0].Event.Title)
	require.Empty(t, records[0].Entry.ExportedHash)

	entries, err := db.New(dbtx).ListCalendarEntries(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}
