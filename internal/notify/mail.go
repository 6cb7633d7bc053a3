package notify

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"infomentor-notifier/internal/components/assert"
	"infomentor-notifier/internal/components/telemetry"

	"github.com/jordan-wright/email"
)

const report_mail_admin = "mail.admin-fallback"

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
}

// SmtpMailer sends mails through an smtp server, falling back to unauthenticated delivery
// for servers that do not support AUTH.
type SmtpMailer struct {
	config SmtpConfig
}

func NewSmtpMailer(config SmtpConfig) SmtpMailer {
	assert.NotEmptyStr(config.Server)
	return SmtpMailer{config: config}
}

func (m SmtpMailer) Send(mail *email.Email) error {
	addr := fmt.Sprintf("%s:%d", m.config.Server, m.config.Port)
	err := mail.Send(
		addr,
		smtp.PlainAuth("", m.config.EmailAddress, m.config.Password, m.config.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	return err
}

// Mailer delivers a composed email.
type Mailer interface {
	Send(mail *email.Email) error
}

// MailChannel sends each message as a multipart mail with the attachments attached. When
// delivery fails a short notice goes to the admin address instead.
type MailChannel struct {
	mailer Mailer
	from   string
	to     string
	admin  string
	tel    telemetry.API
}

func NewMailChannel(mailer Mailer, from, to, admin string, tel telemetry.API) MailChannel {
	assert.NotNil(mailer)
	assert.NotEmptyStr(from)
	assert.NotEmptyStr(to)
	assert.NotNil(tel)
	return MailChannel{mailer: mailer, from: from, to: to, admin: admin, tel: tel}
}

func (c MailChannel) compose(msg Message) (*email.Email, error) {
	mail := email.NewEmail()
	mail.From = c.from
	mail.To = []string{c.to}
	mail.Subject = msg.Subject
	mail.Text = []byte(msg.Body + "\n\n")
	if msg.Html != "" {
		mail.HTML = []byte(msg.Html)
	}
	for _, path := range msg.Files {
		// the content type is guessed from the extension, unknown ones are sent as
		// application/octet-stream
		_, err := mail.AttachFile(path)
		if err != nil {
			return nil, fmt.Errorf("attach %s: %w", path, err)
		}
	}
	return mail, nil
}

func (c MailChannel) Send(_ context.Context, msg Message) error {
	mail, err := c.compose(msg)
	if err == nil {
		err = c.mailer.Send(mail)
	}
	if err == nil {
		return nil
	}

	sendErr := &DeliveryError{Channel: KindMail, Err: err}
	if c.admin == "" {
		return sendErr
	}

	notice := email.NewEmail()
	notice.From = c.from
	notice.To = []string{c.admin}
	notice.Subject = "INFOMENTOR: notification failed"
	notice.Text = []byte(fmt.Sprintf(
		"Sending the notification %q to %s failed:\n\n%s\n",
		msg.Subject, c.to, err,
	))
	adminErr := c.mailer.Send(notice)
	if adminErr != nil {
		c.tel.ReportBroken(report_mail_admin, adminErr)
		return errors.Join(sendErr, adminErr)
	}
	return sendErr
}
