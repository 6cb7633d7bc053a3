// Package infomentortest provides an in-process imitation of the infomentor portal for
// tests, it speaks the same login handshake and json endpoints as the real one.
package infomentortest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
)

type Attachment struct {
	Id       int64
	Title    string
	Filename string
	Content  []byte
}

type Article struct {
	Id            int64
	PublishedDate string
	Title         string
	Content       string
	Image         []byte
	Attachments   []Attachment
}

type Homework struct {
	Id            int64
	Subject       string
	CourseElement string
	Text          string
	Attachments   []Attachment
}

type HomeworkGroup struct {
	Date  string
	Items []Homework
}

type CalendarEvent struct {
	Id         int64  `json:"id"`
	InstanceId string `json:"instanceId"`
	Title      string `json:"title"`
	Notes      string `json:"notes"`
	StartDate  string `json:"startDate"`
	StartTime  string `json:"startTime"`
	EndDate    string `json:"endDate"`
	EndTime    string `json:"endTime"`
	AllDay     bool   `json:"allDayEvent"`
}

// Portal holds the content served by Server, fields may be changed between polls while
// holding Lock.
type Portal struct {
	sync.Mutex

	Username string
	Password string

	Articles []Article
	// Homework is keyed by the monday the client asks for, formatted yyyy-mm-dd.
	Homework  map[string][]HomeworkGroup
	Calendar  []CalendarEvent
	Timetable []map[string]any

	// FailNewsList makes the news list endpoint answer with a 500.
	FailNewsList bool

	hits     map[string]int
	sessions map[string]bool
	nextId   int
}

type Server struct {
	*httptest.Server
	Portal *Portal
}

const sessionCookie = "IMSESSION"

// Im1Path is the prefix under which the server imitates the im1 host.
const Im1Path = "/im1"

func NewServer(portal *Portal) *Server {
	portal.hits = map[string]int{}
	portal.sessions = map[string]bool{}
	s := &Server{Portal: portal}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *Server) MimUrl() string {
	return s.URL
}

func (s *Server) Im1Url() string {
	return s.URL + Im1Path
}

// Hits returns how often a path has been requested.
func (s *Server) Hits(path string) int {
	s.Portal.Lock()
	defer s.Portal.Unlock()
	return s.Portal.hits[path]
}

func (s *Server) authenticated(r *http.Request) bool {
	cookie, err := r.Cookie(sessionCookie)
	return err == nil && s.Portal.sessions[cookie.Value]
}

func writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(value)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	p := s.Portal
	p.Lock()
	defer p.Unlock()
	p.hits[r.URL.Path]++
	r.ParseForm()

	switch r.URL.Path {
	case "/":
		fmt.Fprint(w, `<html><form><input type="hidden" name="oauth_token" value="initial-token" /></form></html>`)
		return
	case "/Authentication/Authentication/Login":
		fmt.Fprint(w, `<html>login</html>`)
		return
	case "/authentication/authentication/isauthenticated/":
		if s.authenticated(r) {
			fmt.Fprint(w, "true")
		} else {
			fmt.Fprint(w, "false")
		}
		return
	case Im1Path + "/mentor/":
		s.mentor(w, r)
		return
	}

	if !s.authenticated(r) {
		http.Error(w, "not logged in", http.StatusUnauthorized)
		return
	}

	switch r.URL.Path {
	case "/News/news/GetArticleList":
		if p.FailNewsList {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		items := []map[string]any{}
		for _, a := range p.Articles {
			items = append(items, map[string]any{
				"id":            a.Id,
				"title":         a.Title,
				"publishedDate": a.PublishedDate,
			})
		}
		writeJSON(w, map[string]any{"items": items, "totalItems": len(items)})
	case "/News/news/GetArticle":
		id, _ := strconv.ParseInt(r.Form.Get("id"), 10, 64)
		for _, a := range p.Articles {
			if a.Id != id {
				continue
			}
			writeJSON(w, map[string]any{
				"id":          a.Id,
				"title":       a.Title,
				"content":     a.Content,
				"date":        a.PublishedDate,
				"attachments": attachmentRefs(a.Attachments),
			})
			return
		}
		http.NotFound(w, r)
	case "/News/NewsImage/GetImage":
		id, _ := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
		for _, a := range p.Articles {
			if a.Id == id && a.Image != nil {
				w.Write(a.Image)
				return
			}
		}
		http.NotFound(w, r)
	case "/Homework/homework/GetHomework":
		date := r.Form.Get("date")
		if len(date) >= 10 {
			date = date[:10]
		}
		groups := []map[string]any{}
		for _, g := range p.Homework[date] {
			items := []map[string]any{}
			for _, h := range g.Items {
				items = append(items, map[string]any{
					"id":            h.Id,
					"subject":       h.Subject,
					"courseElement": h.CourseElement,
					"homeworkText":  h.Text,
					"attachments":   attachmentRefs(h.Attachments),
				})
			}
			groups = append(groups, map[string]any{"date": g.Date, "items": items})
		}
		writeJSON(w, groups)
	case "/Calendar/Calendar/getEntries":
		entries := []map[string]any{}
		for _, e := range p.Calendar {
			entries = append(entries, map[string]any{
				"id":         e.Id,
				"instanceId": e.InstanceId,
				"title":      e.Title,
			})
		}
		writeJSON(w, entries)
	case "/Calendar/Calendar/getEntry":
		id, _ := strconv.ParseInt(r.Form.Get("id"), 10, 64)
		for _, e := range p.Calendar {
			if e.Id == id && e.InstanceId == r.Form.Get("instanceId") {
				writeJSON(w, e)
				return
			}
		}
		http.NotFound(w, r)
	case "/timetable/timetable/gettimetablelist":
		if p.Timetable == nil {
			writeJSON(w, []any{})
			return
		}
		writeJSON(w, p.Timetable)
	default:
		if s.download(w, r) {
			return
		}
		http.NotFound(w, r)
	}
}

func (s *Server) mentor(w http.ResponseWriter, r *http.Request) {
	p := s.Portal
	switch {
	case r.Form.Get("oauth_token") == "initial-token":
		fmt.Fprint(w, `<html><form>
<input type="hidden" name="__VIEWSTATE" value="view&amp;state" />
<input type="hidden" name="__EVENTVALIDATION" value="validation" />
<input type="hidden" id="no-name" />
</form></html>`)
	case r.Form.Get("__EVENTTARGET") == "login_ascx$btnLogin":
		if r.Form.Get("__VIEWSTATE") != "view&state" ||
			r.Form.Get("login_ascx$txtNotandanafn") != p.Username ||
			r.Form.Get("login_ascx$txtLykilord") != p.Password {
			fmt.Fprint(w, `<html>wrong credentials</html>`)
			return
		}
		fmt.Fprint(w, `<html><input type="hidden" name="oauth_token" value="final-token" /></html>`)
	case r.Form.Get("oauth_token") == "final-token":
		p.nextId++
		session := fmt.Sprintf("session-%d", p.nextId)
		p.sessions[session] = true
		http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: session, Path: "/"})
		fmt.Fprint(w, `<html>welcome</html>`)
	default:
		http.Error(w, "unexpected form", http.StatusBadRequest)
	}
}

// ExpireSessions logs every client out.
func (s *Server) ExpireSessions() {
	s.Portal.Lock()
	defer s.Portal.Unlock()
	s.Portal.sessions = map[string]bool{}
}

func attachmentRefs(attachments []Attachment) []map[string]any {
	refs := []map[string]any{}
	for _, a := range attachments {
		refs = append(refs, map[string]any{
			"url":   fmt.Sprintf("/Resources/Resource/Download/%d?api=IM2", a.Id),
			"title": a.Title,
		})
	}
	return refs
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) bool {
	var id int64
	_, err := fmt.Sscanf(r.URL.Path, "/Resources/Resource/Download/%d", &id)
	if err != nil {
		return false
	}
	var all []Attachment
	for _, a := range s.Portal.Articles {
		all = append(all, a.Attachments...)
	}
	for _, groups := range s.Portal.Homework {
		for _, g := range groups {
			for _, h := range g.Items {
				all = append(all, h.Attachments...)
			}
		}
	}
	for _, a := range all {
		if a.Id != id {
			continue
		}
		if a.Filename != "" {
			w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, a.Filename))
		}
		w.Write(a.Content)
		return true
	}
	return false
}
