package calendar

import (
	"bytes"
	"fmt"
	"time"

	"infomentor-notifier/internal/components/assert"
	"infomentor-notifier/internal/components/chrono"

	ics "github.com/arran4/golang-ical"
	"github.com/jordan-wright/email"
)

const inviteContentType = "text/calendar; method=REQUEST; charset=UTF-8"

// Mailer delivers a composed email.
type Mailer interface {
	Send(mail *email.Email) error
}

// Invitation turns a rendered object into a METHOD:REQUEST invitation from `organizer`
// to `attendee`.
func Invitation(ical []byte, organizer, attendee string, now time.Time) ([]byte, string, error) {
	cal, vevent, err := parse(ical)
	if err != nil {
		return nil, "", err
	}
	cal.SetMethod(ics.MethodRequest)
	vevent.SetDtStampTime(now)
	vevent.SetOrganizer(organizer, ics.WithCN("Infomentor"))
	vevent.AddAttendee(
		attendee,
		ics.CalendarUserTypeIndividual,
		ics.ParticipationRoleReqParticipant,
		ics.ParticipationStatusNeedsAction,
		ics.WithRSVP(true),
		ics.WithCN(attendee),
	)

	summary := ""
	if prop := vevent.GetProperty(ics.ComponentPropertySummary); prop != nil {
		summary = prop.Value
	}
	return []byte(cal.Serialize()), summary, nil
}

// Inviter mails calendar invitations for new or changed occurrences.
type Inviter struct {
	mailer Mailer
	from   string
	time   chrono.TimeAPI
}

func NewInviter(mailer Mailer, from string, time chrono.TimeAPI) Inviter {
	assert.NotNil(mailer)
	assert.NotEmptyStr(from)
	assert.NotNil(time)
	return Inviter{mailer: mailer, from: from, time: time}
}

// Invite sends the invitation inline and as an invite.ics attachment.
func (i Inviter) Invite(ical []byte, to string) error {
	invitation, summary, err := Invitation(ical, i.from, to, i.time.Now())
	if err != nil {
		return &SyncError{Op: "invite", Err: err}
	}

	mail := email.NewEmail()
	mail.From = i.from
	mail.To = []string{to}
	mail.Subject = fmt.Sprintf("INFOMENTOR Calendar: %s", summary)
	mail.Text = invitation
	_, err = mail.Attach(bytes.NewReader(invitation), "invite.ics", inviteContentType)
	if err != nil {
		return &SyncError{Op: "invite", Err: err}
	}

	err = i.mailer.Send(mail)
	if err != nil {
		return &SyncError{Op: "invite", Err: err}
	}
	return nil
}
