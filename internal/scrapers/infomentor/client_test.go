package infomentor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"infomentor-notifier/internal/components/blob"
	"infomentor-notifier/internal/components/chrono"
	"infomentor-notifier/internal/components/telemetry"
	"infomentor-notifier/internal/scrapers/infomentor/infomentortest"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC)

const mentorPath = infomentortest.Im1Path + "/mentor/"

func newTestClient(t *testing.T, server *infomentortest.Server, cookies blob.Store, dir string) (*Client, *telemetry.Recorder) {
	t.Helper()
	tel := &telemetry.Recorder{}
	client, err := NewClient("alice", ClientOptions{
		Config: Config{
			MimBaseUrl: server.MimUrl(),
			Im1BaseUrl: server.Im1Url(),
			FilesDir:   filepath.Join(dir, "files"),
			ImagesDir:  filepath.Join(dir, "images"),
		},
		Cookies: cookies,
		Time:    chrono.StaticTime{At: testNow},
		Tel:     tel,
	})
	require.NoError(t, err)
	return client, tel
}

func TestEnsureSession(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	server := infomentortest.NewServer(&infomentortest.Portal{Username: "alice", Password: "secret"})
	defer server.Close()

	cookies := blob.MemoryStore{}
	client, tel := newTestClient(t, server, cookies, t.TempDir())

	require.NoError(t, client.EnsureSession(ctx, "secret"))
	require.Equal(t, 3, server.Hits(mentorPath))
	require.Len(t, tel.Reports("warning", "session.hidden-field"), 1)

	_, persisted := cookies["alice"]
	require.True(t, persisted, "cookies are saved to the store")

	// a new process reuses the persisted session
	second, _ := newTestClient(t, server, cookies, t.TempDir())
	require.NoError(t, second.EnsureSession(ctx, "secret"))
	require.Equal(t, 3, server.Hits(mentorPath))

	// an expired session triggers a fresh login
	server.ExpireSessions()
	third, _ := newTestClient(t, server, cookies, t.TempDir())
	require.NoError(t, third.EnsureSession(ctx, "secret"))
	require.Equal(t, 6, server.Hits(mentorPath))
}

func TestEnsureSessionWrongPassword(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	server := infomentortest.NewServer(&infomentortest.Portal{Username: "alice", Password: "secret"})
	defer server.Close()

	client, _ := newTestClient(t, server, blob.MemoryStore{}, t.TempDir())
	err := client.EnsureSession(ctx, "wrong")

	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	var tokenErr *TokenParseError
	require.True(t, errors.As(err, &tokenErr), "the credentials page has no final token")
	require.Equal(t, 0, tokenErr.Count)
}

func TestPortalFetches(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	monday := "2024-03-04"
	previousMonday := "2024-02-26"
	server := infomentortest.NewServer(&infomentortest.Portal{
		Username: "alice",
		Password: "secret",
		Articles: []infomentortest.Article{
			{
				Id:            42,
				PublishedDate: "2024-03-04",
				Title:         "Sports day",
				Content:       "bring shoes",
				Image:         []byte("png"),
				Attachments: []infomentortest.Attachment{
					{Id: 7, Title: "Letter", Filename: "letter.pdf", Content: []byte("%PDF")},
				},
			},
			{Id: 43, PublishedDate: "2024-03-05", Title: "No image"},
		},
		Homework: map[string][]infomentortest.HomeworkGroup{
			monday: {{
				Date: "2024-03-05",
				Items: []infomentortest.Homework{
					{Id: 0, Subject: "placeholder"},
					{Id: 100, Subject: "Math", CourseElement: "Fractions", Text: "p. 12"},
				},
			}},
			previousMonday: {{
				Date:  "2024-02-27",
				Items: []infomentortest.Homework{{Id: 99, Subject: "German"}},
			}},
		},
		Calendar: []infomentortest.CalendarEvent{
			{Id: 5, InstanceId: "a", Title: "Trip", StartDate: "2024-03-07", AllDay: true},
		},
	})
	defer server.Close()

	dir := t.TempDir()
	client, _ := newTestClient(t, server, blob.MemoryStore{}, dir)
	require.NoError(t, client.EnsureSession(ctx, "secret"))

	news, err := client.NewsList(ctx)
	require.NoError(t, err)
	require.Len(t, news, 2)
	require.Equal(t, "2024-03-04", news[0].PublishedDate)

	article, err := client.Article(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, "Sports day", article.Title)
	require.Len(t, article.Attachments, 1)
	require.Contains(t, string(article.Raw), `"title":"Sports day"`)

	downloaded, err := client.DownloadAttachment(ctx, article.Attachments[0])
	require.NoError(t, err)
	require.Equal(t, int64(7), downloaded.AttachmentId)
	require.Equal(t, "letter.pdf", filepath.Base(downloaded.LocalPath))
	contents, err := os.ReadFile(filepath.Join(dir, "files", downloaded.LocalPath))
	require.NoError(t, err)
	require.Equal(t, "%PDF", string(contents))

	image, err := client.NewsImage(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, "42.image", filepath.Base(image))

	image, err = client.NewsImage(ctx, 43)
	require.NoError(t, err)
	require.Equal(t, "", image, "a missing image is not an error")

	homework, err := client.Homework(ctx)
	require.NoError(t, err)
	require.Len(t, homework, 2)
	require.Equal(t, int64(100), homework[0].Id)
	require.Equal(t, "2024-03-05", homework[0].Date)
	require.Equal(t, int64(99), homework[1].Id)

	entries, err := client.CalendarEntries(ctx, 0, 4)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	event, err := client.CalendarEvent(ctx, entries[0].Id, entries[0].InstanceId)
	require.NoError(t, err)
	require.True(t, event.AllDay)
	require.Equal(t, "Trip", event.Title)

	timetable, err := client.Timetable(ctx, 0)
	require.NoError(t, err)
	require.Empty(t, timetable)
}

func TestPortalErrors(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	server := infomentortest.NewServer(&infomentortest.Portal{
		Username:     "alice",
		Password:     "secret",
		FailNewsList: true,
	})
	defer server.Close()

	client, tel := newTestClient(t, server, blob.MemoryStore{}, t.TempDir())
	require.NoError(t, client.EnsureSession(ctx, "secret"))

	_, err := client.NewsList(ctx)
	var portalErr *PortalError
	require.True(t, errors.As(err, &portalErr))
	var httpErr *HttpError
	require.True(t, errors.As(err, &httpErr))
	require.Equal(t, 500, httpErr.Status)
	require.NotEmpty(t, tel.Reports("broken", "portal.news-list"))

	_, err = client.Article(ctx, 404)
	require.True(t, errors.As(err, &portalErr))
}
