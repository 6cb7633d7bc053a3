package notify

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"infomentor-notifier/internal/components/assert"
	"infomentor-notifier/internal/components/chrono"
	"infomentor-notifier/internal/components/db"
	"infomentor-notifier/internal/components/telemetry"
	"infomentor-notifier/internal/scrapers/infomentor"
	"infomentor-notifier/pkg/htmlutil"
)

const (
	report_dispatch_news      = "dispatch.news"
	report_dispatch_homework  = "dispatch.homework"
	report_dispatch_timestamp = "dispatch.timestamp"
)

// Files describes where downloads live on disk and where the files directory is served.
type Files struct {
	FilesDir   string `json:"files_dir"`
	ImagesDir  string `json:"images_dir"`
	PublicBase string `json:"public_base"`
}

// Dispatcher renders stored records into messages for one user's channel.
type Dispatcher struct {
	channel  Channel
	files    Files
	overflow Overflow
	time     chrono.TimeAPI
	tel      telemetry.API
}

func NewDispatcher(channel Channel, files Files, time chrono.TimeAPI, tel telemetry.API) Dispatcher {
	assert.NotNil(channel)
	assert.NotNil(time)
	assert.NotNil(tel)
	return Dispatcher{
		channel:  channel,
		files:    files,
		overflow: Overflow{Dir: files.FilesDir, PublicBase: files.PublicBase},
		time:     time,
		tel:      telemetry.NewScopedAPI("notify", tel),
	}
}

// publicUrl is the url an attachment stored at `local` (relative to the files dir) is
// served at.
func (d Dispatcher) publicUrl(local string) string {
	segments := strings.Split(local, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimSuffix(d.files.PublicBase, "/") + "/" + strings.Join(segments, "/")
}

func (d Dispatcher) withAttachmentLines(text string, attachments []db.Attachment) string {
	for _, a := range attachments {
		text += fmt.Sprintf("<br>Attachment %s: %s<br>", path.Base(a.LocalPath), d.publicUrl(a.LocalPath))
	}
	return text
}

// pushText adds the attachment links, caps the result and converts line breaks.
func (d Dispatcher) pushText(body string, attachments []db.Attachment) (string, error) {
	text, err := d.overflow.Cap(d.withAttachmentLines(body, attachments))
	if err != nil {
		return "", err
	}
	return htmlutil.BrToNewline(text), nil
}

func (d Dispatcher) localFiles(attachments []db.Attachment) []string {
	var out []string
	for _, a := range attachments {
		out = append(out, filepath.Join(d.files.FilesDir, filepath.FromSlash(a.LocalPath)))
	}
	return out
}

// pushTimestamp is the publish date of an article at the current time of day, the portal
// only publishes dates.
func (d Dispatcher) pushTimestamp(date string) time.Time {
	now := d.time.Now()
	parsed, err := infomentor.ParseDate(date, d.time.Location())
	if err != nil {
		d.tel.ReportWarning(report_dispatch_timestamp, err)
		return time.Time{}
	}
	return time.Date(
		parsed.Year(), parsed.Month(), parsed.Day(),
		now.Hour(), now.Minute(), 0, 0,
		d.time.Location(),
	)
}

func (d Dispatcher) NewsMessage(news db.News, attachments []db.Attachment) (Message, error) {
	text, err := d.pushText(news.Content, attachments)
	if err != nil {
		return Message{}, err
	}
	msg := Message{
		Title:     news.Title,
		Subject:   fmt.Sprintf("INFOMENTOR News: %s", news.Title),
		Text:      text,
		Body:      htmlutil.ToText(news.Content),
		Html:      htmlutil.Page(d.withAttachmentLines(news.Content, attachments)),
		Files:     d.localFiles(attachments),
		Timestamp: d.pushTimestamp(news.Date),
	}
	if news.ImageFile != "" {
		msg.Image = filepath.Join(d.files.ImagesDir, filepath.FromSlash(news.ImageFile))
	}
	return msg, nil
}

func (d Dispatcher) HomeworkMessage(homework db.Homework, attachments []db.Attachment) (Message, error) {
	text, err := d.pushText(homework.Text, attachments)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Title:   homework.Subject,
		Subject: fmt.Sprintf("INFOMENTOR Homework: %s", homework.Subject),
		Text:    text,
		Body:    htmlutil.ToText(homework.Text),
		Html:    htmlutil.Page(d.withAttachmentLines(homework.Text, attachments)),
		Files:   d.localFiles(attachments),
	}, nil
}

func (d Dispatcher) NotifyNews(ctx context.Context, news db.News, attachments []db.Attachment) error {
	msg, err := d.NewsMessage(news, attachments)
	if err != nil {
		return err
	}
	d.tel.ReportDebug(report_dispatch_news, news.NewsID, news.Title)
	return d.channel.Send(ctx, msg)
}

func (d Dispatcher) NotifyHomework(ctx context.Context, homework db.Homework, attachments []db.Attachment) error {
	msg, err := d.HomeworkMessage(homework, attachments)
	if err != nil {
		return err
	}
	d.tel.ReportDebug(report_dispatch_homework, homework.HomeworkID, homework.Subject)
	return d.channel.Send(ctx, msg)
}
