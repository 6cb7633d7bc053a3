package infomentor

import (
	"encoding/json"
	"time"
)

type NewsListItem struct {
	Id            int64  `json:"id"`
	Title         string `json:"title"`
	PublishedDate string `json:"publishedDate"`
}

type newsList struct {
	Items      []NewsListItem `json:"items"`
	TotalItems int            `json:"totalItems"`
}

type AttachmentRef struct {
	Url   string `json:"url"`
	Title string `json:"title"`
}

type Article struct {
	Id          int64           `json:"id"`
	Title       string          `json:"title"`
	Content     string          `json:"content"`
	Date        string          `json:"date"`
	Category    string          `json:"category"`
	Attachments []AttachmentRef `json:"attachments"`

	// Raw is the unmodified json document the article was decoded from.
	Raw json.RawMessage `json:"-"`
}

type HomeworkItem struct {
	Id            int64           `json:"id"`
	Subject       string          `json:"subject"`
	CourseElement string          `json:"courseElement"`
	HomeworkText  string          `json:"homeworkText"`
	Attachments   []AttachmentRef `json:"attachments"`

	// Date is the date of the group the item was listed under.
	Date string `json:"-"`
}

type homeworkDateGroup struct {
	Date  string         `json:"date"`
	Items []HomeworkItem `json:"items"`
}

// CalendarListEntry is an occurrence as returned by the calendar overview.
type CalendarListEntry struct {
	Id         int64  `json:"id"`
	InstanceId string `json:"instanceId"`
	Title      string `json:"title"`
}

// CalendarEvent is the full detail of one calendar occurrence. Dates are yyyy-mm-dd and
// times hh:mm in the portal's local time.
type CalendarEvent struct {
	Id         int64  `json:"id"`
	InstanceId string `json:"instanceId"`
	Title      string `json:"title"`
	Notes      string `json:"notes"`
	Location   string `json:"location"`
	StartDate  string `json:"startDate"`
	StartTime  string `json:"startTime"`
	EndDate    string `json:"endDate"`
	EndTime    string `json:"endTime"`
	AllDay     bool   `json:"allDayEvent"`
}

// TimetableEntry is a lesson from the timetable endpoint, the portal sends many more fields
// which are kept in Raw.
type TimetableEntry struct {
	Title     string `json:"title"`
	Subject   string `json:"subject"`
	Room      string `json:"room"`
	Teacher   string `json:"teacher"`
	StartDate string `json:"startDate"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`

	Raw json.RawMessage `json:"-"`
}

// WeekRange is the date window sent to the calendar and timetable endpoints.
type WeekRange struct {
	Start time.Time
	End   time.Time
}
