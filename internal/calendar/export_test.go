package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"infomentor-notifier/internal/components/chrono"
	"infomentor-notifier/internal/components/db"
	"infomentor-notifier/internal/components/telemetry"
	"infomentor-notifier/internal/scrapers/infomentor"

	"github.com/stretchr/testify/require"
)

type memorySink struct {
	calendars map[string]string
	events    map[string][]byte
	failing   map[string]bool
}

func newMemorySink() *memorySink {
	return &memorySink{
		calendars: map[string]string{},
		events:    map[string][]byte{},
		failing:   map[string]bool{},
	}
}

func (s *memorySink) FindCalendar(_ context.Context, name string) (string, bool, error) {
	handle, ok := s.calendars[name]
	return handle, ok, nil
}

func (s *memorySink) CreateCalendar(_ context.Context, name string) (string, error) {
	s.calendars[name] = "handle-" + name + "/"
	return s.calendars[name], nil
}

func (s *memorySink) AddEvent(_ context.Context, handle, uid string, ical []byte) error {
	if s.failing[uid] {
		return &SyncError{Op: "add event", Err: errors.New("rejected")}
	}
	s.events[handle+uid] = ical
	return nil
}

func openTestQueries(t *testing.T) *db.Queries {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	dbtx, err := db.OpenSqlite(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx, dbtx))
	t.Cleanup(func() { dbtx.Close() })
	return db.New(dbtx)
}

func storeEvent(t *testing.T, qry *db.Queries, userId int64, uid, title string) {
	t.Helper()
	ical, err := Render(infomentor.CalendarEvent{
		Id:        1,
		Title:     title,
		StartDate: "2024-03-08",
		AllDay:    true,
	}, uid, time.UTC)
	require.NoError(t, err)
	require.NoError(t, qry.UpsertCalendarEntry(context.Background(), db.UpsertCalendarEntryParams{
		UserID: userId,
		Uid:    uid,
		Ical:   ical,
		Hash:   Hash(ical),
	}))
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	qry := openTestQueries(t)
	userId, err := qry.CreateUser(ctx, db.CreateUserParams{Name: "alice"})
	require.NoError(t, err)

	storeEvent(t, qry, userId, "uid-1", "Sports day")
	storeEvent(t, qry, userId, "uid-2", "Holiday")

	sink := newMemorySink()
	tel := &telemetry.Recorder{}
	exporter := NewExporter(sink, chrono.StaticTime{At: time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC)}, tel)

	require.NoError(t, exporter.Export(ctx, qry, userId, "School"))
	require.Equal(t, map[string]string{"School": "handle-School/"}, sink.calendars)
	require.Len(t, sink.events, 2)
	_, vevent := parseEvent(t, sink.events["handle-School/uid-1"])
	require.NotNil(t, vevent.GetProperty("DTSTAMP"), "exported objects are stamped")

	// nothing changed, nothing is pushed
	sink.events = map[string][]byte{}
	require.NoError(t, exporter.Export(ctx, qry, userId, "School"))
	require.Empty(t, sink.events)

	// a changed object is pushed again, a rejected one stays pending
	storeEvent(t, qry, userId, "uid-1", "Sports day (moved)")
	storeEvent(t, qry, userId, "uid-2", "Holiday (moved)")
	sink.failing["uid-2"] = true
	err = exporter.Export(ctx, qry, userId, "School")
	var syncErr *SyncError
	require.ErrorAs(t, err, &syncErr)
	require.Len(t, sink.events, 1)
	require.Len(t, tel.Reports("broken", report_export_entry), 1)

	entry, err := qry.GetCalendarEntry(ctx, userId, "uid-2")
	require.NoError(t, err)
	require.NotEqual(t, entry.Hash, entry.ExportedHash)

	delete(sink.failing, "uid-2")
	sink.events = map[string][]byte{}
	require.NoError(t, exporter.Export(ctx, qry, userId, "School"))
	require.Len(t, sink.events, 1)
	require.Contains(t, sink.events, "handle-School/uid-2")
}

func TestExportNullSink(t *testing.T) {
	ctx := context.Background()
	qry := openTestQueries(t)
	userId, err := qry.CreateUser(ctx, db.CreateUserParams{Name: "alice"})
	require.NoError(t, err)
	storeEvent(t, qry, userId, "uid-1", "Sports day")

	exporter := NewExporter(NullSink{}, chrono.StaticTime{At: time.Now()}, &telemetry.Recorder{})
	require.NoError(t, exporter.Export(ctx, qry, userId, "School"))

	entry, err := qry.GetCalendarEntry(ctx, userId, "uid-1")
	require.NoError(t, err)
	require.Equal(t, entry.Hash, entry.ExportedHash)
}
