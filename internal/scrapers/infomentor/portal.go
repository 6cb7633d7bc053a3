package infomentor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const (
	report_portal_news_list      = "portal.news-list"
	report_portal_article        = "portal.article"
	report_portal_news_image     = "portal.news-image"
	report_portal_homework       = "portal.homework"
	report_portal_calendar       = "portal.calendar"
	report_portal_calendar_entry = "portal.calendar-entry"
	report_portal_timetable      = "portal.timetable"
)

// postJSON posts the form to a portal endpoint and decodes the json response into out.
func (c *Client) postJSON(ctx context.Context, reportId, path string, form map[string]string, out any) (json.RawMessage, error) {
	endpoint := c.mimUrl(path)
	res, err := c.post(ctx, endpoint, form, nil)
	if err != nil {
		c.tel.ReportBroken(reportId, err)
		return nil, &PortalError{Endpoint: path, Err: err}
	}
	if res.StatusCode() != http.StatusOK {
		err := &HttpError{Status: res.StatusCode(), Url: endpoint}
		c.tel.ReportBroken(reportId, err)
		return nil, &PortalError{Endpoint: path, Err: err}
	}
	err = json.Unmarshal(res.Body(), out)
	if err != nil {
		c.tel.ReportBroken(reportId, fmt.Errorf("decode: %w", err), res.String())
		return nil, &PortalError{Endpoint: path, Err: err}
	}
	return json.RawMessage(res.Body()), nil
}

func (c *Client) NewsList(ctx context.Context) ([]NewsListItem, error) {
	c.tel.ReportDebug(report_portal_news_list)

	var list newsList
	_, err := c.postJSON(ctx, report_portal_news_list, "News/news/GetArticleList", nil, &list)
	if err != nil {
		return nil, err
	}
	if list.Items == nil && list.TotalItems > 0 {
		err := &PortalError{Endpoint: "News/news/GetArticleList", Err: fmt.Errorf("missing items")}
		c.tel.ReportBroken(report_portal_news_list, err)
		return nil, err
	}
	return list.Items, nil
}

func (c *Client) Article(ctx context.Context, id int64) (Article, error) {
	c.tel.ReportDebug(report_portal_article, id)

	var article Article
	raw, err := c.postJSON(
		ctx, report_portal_article,
		"News/news/GetArticle",
		map[string]string{"id": strconv.FormatInt(id, 10)},
		&article,
	)
	if err != nil {
		return Article{}, err
	}
	if article.Id == 0 {
		err := &PortalError{Endpoint: "News/news/GetArticle", Err: fmt.Errorf("article %d: missing id", id)}
		c.tel.ReportBroken(report_portal_article, err)
		return Article{}, err
	}
	article.Raw = raw
	return article, nil
}

// NewsImage downloads the image of an article into the images directory. Articles without
// an image answer with a non-200 status, that is reported as "" and no error.
func (c *Client) NewsImage(ctx context.Context, id int64) (string, error) {
	local, err := c.Download(
		ctx,
		fmt.Sprintf("News/NewsImage/GetImage?id=%d", id),
		c.config.ImagesDir,
		fmt.Sprintf("%d.image", id),
	)
	var httpErr *HttpError
	if errors.As(err, &httpErr) {
		c.tel.ReportDebug(report_portal_news_image, "no image", id)
		return "", nil
	}
	if err != nil {
		c.tel.ReportWarning(report_portal_news_image, err, id)
		return "", err
	}
	return local, nil
}

// HomeworkWeek returns the homework listed for the week `offset` weeks back.
func (c *Client) HomeworkWeek(ctx context.Context, offset int) ([]HomeworkItem, error) {
	monday := StartOfWeek(c.time.Now(), offset)
	c.tel.ReportDebug(report_portal_homework, monday.Format(time.DateOnly))

	var groups []homeworkDateGroup
	_, err := c.postJSON(
		ctx, report_portal_homework,
		"Homework/homework/GetHomework",
		map[string]string{
			"date":   monday.Format(time.DateOnly) + "T00:00:00.000Z",
			"isWeek": "true",
		},
		&groups,
	)
	if err != nil {
		return nil, err
	}

	var items []HomeworkItem
	for _, group := range groups {
		for _, item := range group.Items {
			item.Date = group.Date
			items = append(items, item)
		}
	}
	return items, nil
}

// Homework returns the homework of this and the previous week. Entries with id 0 are
// placeholders the portal renders for empty days and are dropped.
func (c *Client) Homework(ctx context.Context) ([]HomeworkItem, error) {
	var out []HomeworkItem
	for _, offset := range []int{0, 1} {
		items, err := c.HomeworkWeek(ctx, offset)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if item.Id == 0 {
				continue
			}
			out = append(out, item)
		}
	}
	return out, nil
}

func (c *Client) CalendarEntries(ctx context.Context, offset, weeks int) ([]CalendarListEntry, error) {
	now := c.time.Now()
	window := Weeks(now, offset, weeks)
	c.tel.ReportDebug(report_portal_calendar, window.Start.Format(time.DateOnly), window.End.Format(time.DateOnly))

	var entries []CalendarListEntry
	_, err := c.postJSON(
		ctx, report_portal_calendar,
		"Calendar/Calendar/getEntries",
		window.form(now),
		&entries,
	)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Client) CalendarEvent(ctx context.Context, id int64, instanceId string) (CalendarEvent, error) {
	c.tel.ReportDebug(report_portal_calendar_entry, id, instanceId)

	var event CalendarEvent
	_, err := c.postJSON(
		ctx, report_portal_calendar_entry,
		"Calendar/Calendar/getEntry",
		map[string]string{
			"id":         strconv.FormatInt(id, 10),
			"instanceId": instanceId,
		},
		&event,
	)
	if err != nil {
		return CalendarEvent{}, err
	}
	if event.StartDate == "" {
		err := &PortalError{
			Endpoint: "Calendar/Calendar/getEntry",
			Err:      fmt.Errorf("entry %d: missing startDate", id),
		}
		c.tel.ReportBroken(report_portal_calendar_entry, err)
		return CalendarEvent{}, err
	}
	if event.Id == 0 {
		event.Id = id
	}
	if event.InstanceId == "" {
		event.InstanceId = instanceId
	}
	return event, nil
}

func (c *Client) Timetable(ctx context.Context, offset int) ([]TimetableEntry, error) {
	now := c.time.Now()
	window := Weeks(now, offset, 1)
	c.tel.ReportDebug(report_portal_timetable, window.Start.Format(time.DateOnly))

	var raw []json.RawMessage
	_, err := c.postJSON(
		ctx, report_portal_timetable,
		"timetable/timetable/gettimetablelist",
		window.form(now),
		&raw,
	)
	if err != nil {
		return nil, err
	}
	entries := make([]TimetableEntry, 0, len(raw))
	for _, r := range raw {
		var entry TimetableEntry
		err := json.Unmarshal(r, &entry)
		if err != nil {
			err := &PortalError{Endpoint: "timetable/timetable/gettimetablelist", Err: err}
			c.tel.ReportBroken(report_portal_timetable, err)
			return nil, err
		}
		entry.Raw = r
		entries = append(entries, entry)
	}
	return entries, nil
}
