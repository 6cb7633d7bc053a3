package calendar

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"infomentor-notifier/internal/components/assert"
	"infomentor-notifier/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const DefaultCalDAVUrl = "https://caldav.icloud.com"

const (
	report_caldav_discover = "caldav.discover"
)

const (
	propfindPrincipal = `<?xml version="1.0" encoding="utf-8"?>` +
		`<d:propfind xmlns:d="DAV:"><d:prop><d:current-user-principal/></d:prop></d:propfind>`
	propfindHomeSet = `<?xml version="1.0" encoding="utf-8"?>` +
		`<d:propfind xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav">` +
		`<d:prop><c:calendar-home-set/></d:prop></d:propfind>`
	propfindCalendars = `<?xml version="1.0" encoding="utf-8"?>` +
		`<d:propfind xmlns:d="DAV:"><d:prop><d:displayname/><d:resourcetype/></d:prop></d:propfind>`
	mkcalendarTemplate = `<?xml version="1.0" encoding="utf-8"?>` +
		`<c:mkcalendar xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav">` +
		`<d:set><d:prop><d:displayname>%s</d:displayname></d:prop></d:set></c:mkcalendar>`
)

type multistatus struct {
	XMLName   xml.Name      `xml:"DAV: multistatus"`
	Responses []davResponse `xml:"DAV: response"`
}

type davResponse struct {
	Href      string        `xml:"DAV: href"`
	Propstats []davPropstat `xml:"DAV: propstat"`
}

type davPropstat struct {
	Prop   davProp `xml:"DAV: prop"`
	Status string  `xml:"DAV: status"`
}

type davHref struct {
	Href string `xml:"DAV: href"`
}

type davResourceType struct {
	Collection *struct{} `xml:"DAV: collection"`
	Calendar   *struct{} `xml:"urn:ietf:params:xml:ns:caldav calendar"`
}

type davProp struct {
	CurrentUserPrincipal *davHref        `xml:"DAV: current-user-principal"`
	CalendarHomeSet      *davHref        `xml:"urn:ietf:params:xml:ns:caldav calendar-home-set"`
	DisplayName          string          `xml:"DAV: displayname"`
	ResourceType         davResourceType `xml:"DAV: resourcetype"`
}

func (p davPropstat) ok() bool {
	return p.Status == "" || strings.Contains(p.Status, " 200 ")
}

// CalDAV is a Sink backed by a CalDAV server. Calendar handles are absolute collection
// urls ending in a slash.
type CalDAV struct {
	http *resty.Client
	base *url.URL
	tel  telemetry.API

	home string
}

func NewCalDAV(baseUrl, username, password string, tel telemetry.API) (*CalDAV, error) {
	assert.NotNil(tel)
	if baseUrl == "" {
		baseUrl = DefaultCalDAVUrl
	}
	base, err := url.Parse(baseUrl)
	if err != nil {
		return nil, fmt.Errorf("parse caldav url: %w", err)
	}

	tel = telemetry.NewScopedAPI("caldav", tel)

	client := resty.New()
	client.SetTimeout(time.Second * 30)
	client.SetBasicAuth(username, password)
	client.SetHeader("content-type", "application/xml; charset=utf-8")
	telemetry.InstrumentResty(client, tel, nil)

	return &CalDAV{http: client, base: base, tel: tel}, nil
}

func (c *CalDAV) resolve(href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	return c.base.ResolveReference(ref).String(), nil
}

func (c *CalDAV) propfind(ctx context.Context, target, depth, body string) (multistatus, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("depth", depth).
		SetBody(body).
		Execute("PROPFIND", target)
	if err != nil {
		return multistatus{}, err
	}
	if res.StatusCode() != http.StatusMultiStatus {
		return multistatus{}, fmt.Errorf("propfind %s: got status %d", target, res.StatusCode())
	}
	var out multistatus
	err = xml.Unmarshal(res.Body(), &out)
	if err != nil {
		return multistatus{}, fmt.Errorf("propfind %s: %w", target, err)
	}
	return out, nil
}

func firstHref(ms multistatus, pick func(davProp) *davHref) string {
	for _, res := range ms.Responses {
		for _, ps := range res.Propstats {
			if !ps.ok() {
				continue
			}
			href := pick(ps.Prop)
			if href != nil && strings.TrimSpace(href.Href) != "" {
				return href.Href
			}
		}
	}
	return ""
}

// discover finds the calendar home through the current user principal.
func (c *CalDAV) discover(ctx context.Context) (string, error) {
	if c.home != "" {
		return c.home, nil
	}

	ms, err := c.propfind(ctx, c.base.String(), "0", propfindPrincipal)
	if err != nil {
		return "", err
	}
	principal := firstHref(ms, func(p davProp) *davHref { return p.CurrentUserPrincipal })
	if principal == "" {
		return "", fmt.Errorf("no current-user-principal")
	}
	principalUrl, err := c.resolve(principal)
	if err != nil {
		return "", err
	}

	ms, err = c.propfind(ctx, principalUrl, "0", propfindHomeSet)
	if err != nil {
		return "", err
	}
	home := firstHref(ms, func(p davProp) *davHref { return p.CalendarHomeSet })
	if home == "" {
		return "", fmt.Errorf("no calendar-home-set for %s", principalUrl)
	}
	homeUrl, err := c.resolve(home)
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(homeUrl, "/") {
		homeUrl += "/"
	}

	c.tel.ReportDebug(report_caldav_discover, homeUrl)
	c.home = homeUrl
	return homeUrl, nil
}

func (c *CalDAV) FindCalendar(ctx context.Context, name string) (string, bool, error) {
	home, err := c.discover(ctx)
	if err != nil {
		return "", false, &SyncError{Op: "discover", Err: err}
	}
	ms, err := c.propfind(ctx, home, "1", propfindCalendars)
	if err != nil {
		return "", false, &SyncError{Op: "list calendars", Err: err}
	}
	for _, res := range ms.Responses {
		for _, ps := range res.Propstats {
			if !ps.ok() || ps.Prop.ResourceType.Calendar == nil {
				continue
			}
			if ps.Prop.DisplayName != name {
				continue
			}
			handle, err := c.resolve(res.Href)
			if err != nil {
				return "", false, &SyncError{Op: "list calendars", Err: err}
			}
			if !strings.HasSuffix(handle, "/") {
				handle += "/"
			}
			return handle, true, nil
		}
	}
	return "", false, nil
}

func (c *CalDAV) CreateCalendar(ctx context.Context, name string) (string, error) {
	home, err := c.discover(ctx)
	if err != nil {
		return "", &SyncError{Op: "discover", Err: err}
	}

	var escaped strings.Builder
	err = xml.EscapeText(&escaped, []byte(name))
	if err != nil {
		return "", &SyncError{Op: "create calendar", Err: err}
	}

	handle := home + uuid.NewString() + "/"
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(fmt.Sprintf(mkcalendarTemplate, escaped.String())).
		Execute("MKCALENDAR", handle)
	if err != nil {
		return "", &SyncError{Op: "create calendar", Err: err}
	}
	if res.StatusCode() != http.StatusCreated {
		return "", &SyncError{
			Op:  "create calendar",
			Err: fmt.Errorf("mkcalendar %s: got status %d", handle, res.StatusCode()),
		}
	}
	return handle, nil
}

func (c *CalDAV) AddEvent(ctx context.Context, handle, uid string, ical []byte) error {
	target := handle + url.PathEscape(uid) + ".ics"
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("content-type", "text/calendar; charset=utf-8").
		SetBody(ical).
		Put(target)
	if err != nil {
		return &SyncError{Op: "add event", Err: err}
	}
	switch res.StatusCode() {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	}
	return &SyncError{
		Op:  "add event",
		Err: fmt.Errorf("put %s: got status %d", target, res.StatusCode()),
	}
}
