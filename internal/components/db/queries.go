package db

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// ---- users ----

const createUser = `INSERT INTO users (name, enc_password) VALUES (?, ?) RETURNING id`

type CreateUserParams struct {
	Name        string
	EncPassword string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createUser, arg.Name, arg.EncPassword)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const userColumns = `id, name, enc_password, want_status, invitation_email`

func scanUser(scanner interface{ Scan(...any) error }) (User, error) {
	var u User
	var wantStatus int64
	err := scanner.Scan(&u.ID, &u.Name, &u.EncPassword, &wantStatus, &u.InvitationEmail)
	u.WantStatus = wantStatus != 0
	return u, err
}

const getUserByName = `SELECT ` + userColumns + ` FROM users WHERE name = ?`

func (q *Queries) GetUserByName(ctx context.Context, name string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByName, name))
}

const listUsers = `SELECT ` + userColumns + ` FROM users ORDER BY id`

func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := q.db.QueryContext(ctx, listUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateUserPassword = `UPDATE users SET enc_password = ? WHERE id = ?`

func (q *Queries) UpdateUserPassword(ctx context.Context, id int64, encPassword string) error {
	_, err := q.db.ExecContext(ctx, updateUserPassword, encPassword, id)
	return err
}

const setWantStatus = `UPDATE users SET want_status = ? WHERE id = ?`

func (q *Queries) SetWantStatus(ctx context.Context, id int64, want bool) error {
	_, err := q.db.ExecContext(ctx, setWantStatus, boolInt(want), id)
	return err
}

const setInvitationEmail = `UPDATE users SET invitation_email = ? WHERE id = ?`

func (q *Queries) SetInvitationEmail(ctx context.Context, id int64, email string) error {
	_, err := q.db.ExecContext(ctx, setInvitationEmail, email, id)
	return err
}

// ---- notifications ----

const setNotification = `INSERT INTO notifications (user_id, kind, info) VALUES (?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET kind = excluded.kind, info = excluded.info`

func (q *Queries) SetNotification(ctx context.Context, arg Notification) error {
	_, err := q.db.ExecContext(ctx, setNotification, arg.UserID, arg.Kind, arg.Info)
	return err
}

const getNotification = `SELECT user_id, kind, info FROM notifications WHERE user_id = ?`

func (q *Queries) GetNotification(ctx context.Context, userID int64) (Notification, error) {
	var n Notification
	err := q.db.QueryRowContext(ctx, getNotification, userID).Scan(&n.UserID, &n.Kind, &n.Info)
	return n, err
}

const deleteNotification = `DELETE FROM notifications WHERE user_id = ?`

func (q *Queries) DeleteNotification(ctx context.Context, userID int64) error {
	_, err := q.db.ExecContext(ctx, deleteNotification, userID)
	return err
}

// ---- calendar credentials ----

const setCalendarCredential = `INSERT INTO calendar_credentials (user_id, username, enc_password, calendar_name)
VALUES (?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
    username = excluded.username,
    enc_password = excluded.enc_password,
    calendar_name = excluded.calendar_name`

func (q *Queries) SetCalendarCredential(ctx context.Context, arg CalendarCredential) error {
	_, err := q.db.ExecContext(ctx, setCalendarCredential, arg.UserID, arg.Username, arg.EncPassword, arg.CalendarName)
	return err
}

const getCalendarCredential = `SELECT user_id, username, enc_password, calendar_name FROM calendar_credentials WHERE user_id = ?`

func (q *Queries) GetCalendarCredential(ctx context.Context, userID int64) (CalendarCredential, error) {
	var c CalendarCredential
	err := q.db.QueryRowContext(ctx, getCalendarCredential, userID).Scan(&c.UserID, &c.Username, &c.EncPassword, &c.CalendarName)
	return c, err
}

// ---- news ----

const newsColumns = `id, user_id, news_id, date, title, content, category, image_file, notified, raw`

func scanNews(scanner interface{ Scan(...any) error }) (News, error) {
	var n News
	var notified int64
	err := scanner.Scan(&n.ID, &n.UserID, &n.NewsID, &n.Date, &n.Title, &n.Content, &n.Category, &n.ImageFile, &notified, &n.Raw)
	n.Notified = notified != 0
	return n, err
}

const getNews = `SELECT ` + newsColumns + ` FROM news WHERE user_id = ? AND news_id = ? AND date = ?`

type GetNewsParams struct {
	UserID int64
	NewsID int64
	Date   string
}

func (q *Queries) GetNews(ctx context.Context, arg GetNewsParams) (News, error) {
	return scanNews(q.db.QueryRowContext(ctx, getNews, arg.UserID, arg.NewsID, arg.Date))
}

const listNews = `SELECT ` + newsColumns + ` FROM news WHERE user_id = ? ORDER BY id`

func (q *Queries) ListNews(ctx context.Context, userID int64) ([]News, error) {
	rows, err := q.db.QueryContext(ctx, listNews, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []News
	for rows.Next() {
		n, err := scanNews(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createNews = `INSERT INTO news (user_id, news_id, date, title, content, category, image_file, raw)
VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`

func (q *Queries) CreateNews(ctx context.Context, arg News) (int64, error) {
	row := q.db.QueryRowContext(
		ctx, createNews,
		arg.UserID, arg.NewsID, arg.Date, arg.Title, arg.Content, arg.Category, arg.ImageFile, arg.Raw,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const markNewsNotified = `UPDATE news SET notified = 1 WHERE id = ?`

func (q *Queries) MarkNewsNotified(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, markNewsNotified, id)
	return err
}

// ---- homework ----

const homeworkColumns = `id, user_id, homework_id, subject, course_element, text, date, notified`

func scanHomework(scanner interface{ Scan(...any) error }) (Homework, error) {
	var h Homework
	var notified int64
	err := scanner.Scan(&h.ID, &h.UserID, &h.HomeworkID, &h.Subject, &h.CourseElement, &h.Text, &h.Date, &notified)
	h.Notified = notified != 0
	return h, err
}

const getHomework = `SELECT ` + homeworkColumns + ` FROM homework WHERE user_id = ? AND homework_id = ?`

func (q *Queries) GetHomework(ctx context.Context, userID, homeworkID int64) (Homework, error) {
	return scanHomework(q.db.QueryRowContext(ctx, getHomework, userID, homeworkID))
}

const listHomework = `SELECT ` + homeworkColumns + ` FROM homework WHERE user_id = ? ORDER BY id`

func (q *Queries) ListHomework(ctx context.Context, userID int64) ([]Homework, error) {
	rows, err := q.db.QueryContext(ctx, listHomework, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Homework
	for rows.Next() {
		h, err := scanHomework(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createHomework = `INSERT INTO homework (user_id, homework_id, subject, course_element, text, date)
VALUES (?, ?, ?, ?, ?, ?) RETURNING id`

func (q *Queries) CreateHomework(ctx context.Context, arg Homework) (int64, error) {
	row := q.db.QueryRowContext(
		ctx, createHomework,
		arg.UserID, arg.HomeworkID, arg.Subject, arg.CourseElement, arg.Text, arg.Date,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const markHomeworkNotified = `UPDATE homework SET notified = 1 WHERE id = ?`

func (q *Queries) MarkHomeworkNotified(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, markHomeworkNotified, id)
	return err
}

// ---- attachments ----

const createAttachment = `INSERT INTO attachments (attachment_id, url, title, local_path, news_id, homework_id)
VALUES (?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateAttachment(ctx context.Context, arg Attachment) error {
	_, err := q.db.ExecContext(
		ctx, createAttachment,
		arg.AttachmentID, arg.Url, arg.Title, arg.LocalPath, arg.NewsID, arg.HomeworkID,
	)
	return err
}

const listNewsAttachments = `SELECT id, attachment_id, url, title, local_path, news_id, homework_id
FROM attachments WHERE news_id = ? ORDER BY id`

const listHomeworkAttachments = `SELECT id, attachment_id, url, title, local_path, news_id, homework_id
FROM attachments WHERE homework_id = ? ORDER BY id`

func (q *Queries) listAttachments(ctx context.Context, query string, owner int64) ([]Attachment, error) {
	rows, err := q.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Attachment
	for rows.Next() {
		var a Attachment
		err := rows.Scan(&a.ID, &a.AttachmentID, &a.Url, &a.Title, &a.LocalPath, &a.NewsID, &a.HomeworkID)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (q *Queries) ListNewsAttachments(ctx context.Context, newsID int64) ([]Attachment, error) {
	return q.listAttachments(ctx, listNewsAttachments, newsID)
}

func (q *Queries) ListHomeworkAttachments(ctx context.Context, homeworkID int64) ([]Attachment, error) {
	return q.listAttachments(ctx, listHomeworkAttachments, homeworkID)
}

// ---- calendar entries ----

const getCalendarEntry = `SELECT id, user_id, uid, ical, hash, exported_hash
FROM calendar_entries WHERE user_id = ? AND uid = ?`

func (q *Queries) GetCalendarEntry(ctx context.Context, userID int64, uid string) (CalendarEntry, error) {
	var e CalendarEntry
	err := q.db.QueryRowContext(ctx, getCalendarEntry, userID, uid).
		Scan(&e.ID, &e.UserID, &e.Uid, &e.Ical, &e.Hash, &e.ExportedHash)
	return e, err
}

const upsertCalendarEntry = `INSERT INTO calendar_entries (user_id, uid, ical, hash) VALUES (?, ?, ?, ?)
ON CONFLICT (user_id, uid) DO UPDATE SET ical = excluded.ical, hash = excluded.hash`

type UpsertCalendarEntryParams struct {
	UserID int64
	Uid    string
	Ical   []byte
	Hash   string
}

func (q *Queries) UpsertCalendarEntry(ctx context.Context, arg UpsertCalendarEntryParams) error {
	_, err := q.db.ExecContext(ctx, upsertCalendarEntry, arg.UserID, arg.Uid, arg.Ical, arg.Hash)
	return err
}

const setCalendarEntryExported = `UPDATE calendar_entries SET exported_hash = ? WHERE user_id = ? AND uid = ?`

func (q *Queries) SetCalendarEntryExported(ctx context.Context, userID int64, uid, hash string) error {
	_, err := q.db.ExecContext(ctx, setCalendarEntryExported, hash, userID, uid)
	return err
}

const listCalendarEntries = `SELECT id, user_id, uid, ical, hash, exported_hash
FROM calendar_entries WHERE user_id = ? ORDER BY id`

func (q *Queries) ListCalendarEntries(ctx context.Context, userID int64) ([]CalendarEntry, error) {
	rows, err := q.db.QueryContext(ctx, listCalendarEntries, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CalendarEntry
	for rows.Next() {
		var e CalendarEntry
		err := rows.Scan(&e.ID, &e.UserID, &e.Uid, &e.Ical, &e.Hash, &e.ExportedHash)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const resetCalendarExports = `UPDATE calendar_entries SET exported_hash = '' WHERE user_id = ?`

// ResetCalendarExports forgets what was pushed to the external calendar, the next export
// pushes every entry again.
func (q *Queries) ResetCalendarExports(ctx context.Context, userID int64) error {
	_, err := q.db.ExecContext(ctx, resetCalendarExports, userID)
	return err
}

// ---- api status ----

const getApiStatus = `SELECT user_id, ok, degraded_count, datetime, info FROM api_status WHERE user_id = ?`

func (q *Queries) GetApiStatus(ctx context.Context, userID int64) (ApiStatus, error) {
	var s ApiStatus
	var ok int64
	err := q.db.QueryRowContext(ctx, getApiStatus, userID).
		Scan(&s.UserID, &ok, &s.DegradedCount, &s.Datetime, &s.Info)
	s.Ok = ok != 0
	return s, err
}

const upsertApiStatus = `INSERT INTO api_status (user_id, ok, degraded_count, datetime, info) VALUES (?, ?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
    ok = excluded.ok,
    degraded_count = excluded.degraded_count,
    datetime = excluded.datetime,
    info = excluded.info`

func (q *Queries) UpsertApiStatus(ctx context.Context, arg ApiStatus) error {
	_, err := q.db.ExecContext(ctx, upsertApiStatus, arg.UserID, boolInt(arg.Ok), arg.DegradedCount, arg.Datetime, arg.Info)
	return err
}
