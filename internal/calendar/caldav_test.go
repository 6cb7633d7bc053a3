package calendar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"infomentor-notifier/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

// davServer imitates the discovery and calendar endpoints of a CalDAV server.
type davServer struct {
	mutex     sync.Mutex
	calendars map[string]string // path -> display name
	objects   map[string][]byte
	username  string
	password  string
}

func multistatusBody(inner string) string {
	return `<?xml version="1.0" encoding="utf-8"?>` +
		`<d:multistatus xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav">` + inner + `</d:multistatus>`
}

func (s *davServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, pass, ok := r.BasicAuth()
	if !ok || user != s.username || pass != s.password {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	body, _ := io.ReadAll(r.Body)
	switch {
	case r.Method == "PROPFIND" && r.URL.Path == "/":
		w.WriteHeader(http.StatusMultiStatus)
		fmt.Fprint(w, multistatusBody(
			`<d:response><d:href>/</d:href><d:propstat><d:prop>`+
				`<d:current-user-principal><d:href>/123/principal/</d:href></d:current-user-principal>`+
				`</d:prop><d:status>HTTP/1.1 200 OK</d:status></d:propstat></d:response>`,
		))
	case r.Method == "PROPFIND" && r.URL.Path == "/123/principal/":
		w.WriteHeader(http.StatusMultiStatus)
		fmt.Fprint(w, multistatusBody(
			`<d:response><d:href>/123/principal/</d:href><d:propstat><d:prop>`+
				`<c:calendar-home-set><d:href>/123/calendars</d:href></c:calendar-home-set>`+
				`</d:prop><d:status>HTTP/1.1 200 OK</d:status></d:propstat></d:response>`,
		))
	case r.Method == "PROPFIND" && r.URL.Path == "/123/calendars/":
		if r.Header.Get("depth") != "1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		responses := `<d:response><d:href>/123/calendars/</d:href><d:propstat><d:prop>` +
			`<d:resourcetype><d:collection/></d:resourcetype>` +
			`</d:prop><d:status>HTTP/1.1 200 OK</d:status></d:propstat></d:response>`
		for path, name := range s.calendars {
			responses += `<d:response><d:href>` + path + `</d:href><d:propstat><d:prop>` +
				`<d:displayname>` + name + `</d:displayname>` +
				`<d:resourcetype><d:collection/><c:calendar/></d:resourcetype>` +
				`</d:prop><d:status>HTTP/1.1 200 OK</d:status></d:propstat></d:response>`
		}
		w.WriteHeader(http.StatusMultiStatus)
		fmt.Fprint(w, multistatusBody(responses))
	case r.Method == "MKCALENDAR" && strings.HasPrefix(r.URL.Path, "/123/calendars/"):
		start := strings.Index(string(body), "<d:displayname>") + len("<d:displayname>")
		end := strings.Index(string(body), "</d:displayname>")
		s.calendars[r.URL.Path] = string(body)[start:end]
		w.WriteHeader(http.StatusCreated)
	case r.Method == http.MethodPut:
		if r.Header.Get("content-type") != "text/calendar; charset=utf-8" {
			w.WriteHeader(http.StatusUnsupportedMediaType)
			return
		}
		_, existed := s.objects[r.URL.Path]
		s.objects[r.URL.Path] = body
		if existed {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusCreated)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newDavServer() (*davServer, *httptest.Server) {
	dav := &davServer{
		calendars: map[string]string{"/123/calendars/work/": "Work"},
		objects:   map[string][]byte{},
		username:  "alice@example.com",
		password:  "app-password",
	}
	return dav, httptest.NewServer(dav)
}

func TestCalDAV(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dav, server := newDavServer()
	defer server.Close()

	client, err := NewCalDAV(server.URL, dav.username, dav.password, &telemetry.Recorder{})
	require.NoError(t, err)

	handle, found, err := client.FindCalendar(ctx, "Work")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, server.URL+"/123/calendars/work/", handle)

	_, found, err = client.FindCalendar(ctx, "School & more")
	require.NoError(t, err)
	require.False(t, found)

	handle, err = client.CreateCalendar(ctx, "School & more")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(handle, server.URL+"/123/calendars/"))

	created, found, err := client.FindCalendar(ctx, "School & more")
	require.NoError(t, err)
	require.True(t, found, "the display name is escaped when creating and unescaped when listing")
	require.Equal(t, handle, created)

	require.NoError(t, client.AddEvent(ctx, handle, "uid-1", []byte("BEGIN:VCALENDAR")))
	require.NoError(t, client.AddEvent(ctx, handle, "uid-1", []byte("BEGIN:VCALENDAR")))
	path := strings.TrimPrefix(handle, server.URL) + "uid-1.ics"
	require.Equal(t, []byte("BEGIN:VCALENDAR"), dav.objects[path])
}

func TestCalDAVWrongPassword(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dav, server := newDavServer()
	defer server.Close()

	client, err := NewCalDAV(server.URL, dav.username, "wrong", &telemetry.Recorder{})
	require.NoError(t, err)

	_, _, err = client.FindCalendar(ctx, "Work")
	var syncErr *SyncError
	require.ErrorAs(t, err, &syncErr)
	require.Equal(t, "discover", syncErr.Op)
}
