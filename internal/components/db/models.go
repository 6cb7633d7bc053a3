package db

type User struct {
	ID              int64
	Name            string
	EncPassword     string
	WantStatus      bool
	InvitationEmail string
}

type Notification struct {
	UserID int64
	Kind   string
	Info   string
}

type CalendarCredential struct {
	UserID       int64
	Username     string
	EncPassword  string
	CalendarName string
}

type News struct {
	ID        int64
	UserID    int64
	NewsID    int64
	Date      string
	Title     string
	Content   string
	Category  string
	ImageFile string
	Notified  bool
	Raw       string
}

type Homework struct {
	ID            int64
	UserID        int64
	HomeworkID    int64
	Subject       string
	CourseElement string
	Text          string
	Date          string
	Notified      bool
}

type Attachment struct {
	ID           int64
	AttachmentID int64
	Url          string
	Title        string
	LocalPath    string
	NewsID       *int64
	HomeworkID   *int64
}

type CalendarEntry struct {
	ID           int64
	UserID       int64
	Uid          string
	Ical         []byte
	Hash         string
	ExportedHash string
}

type ApiStatus struct {
	UserID        int64
	Ok            bool
	DegradedCount int64
	Datetime      int64
	Info          string
}
