// Package notify renders stored news and homework into messages and delivers them through
// the channel a user configured.
package notify

import (
	"context"
	"fmt"
	"time"
)

const (
	KindPushover = "pushover"
	KindMail     = "mail"
	KindTelegram = "telegram"
	KindFake     = "fake"
	KindNone     = "none"
)

// Kinds lists every channel kind a user can configure.
var Kinds = []string{KindPushover, KindMail, KindTelegram, KindFake, KindNone}

// Message is one notification in every shape a channel may need.
type Message struct {
	// Title is the push title, Subject the mail subject.
	Title   string
	Subject string
	// Text is the push text: capped, line breaks converted, may contain simple html.
	Text string
	// Body is the complete plain text, Html the complete html version of it.
	Body string
	Html string
	// Image is the path of an image to embed, empty for none.
	Image string
	// Files are the paths of attachments to send along.
	Files []string
	// Timestamp is shown by push clients instead of the delivery time when set.
	Timestamp time.Time
}

// Channel delivers a message to one user.
type Channel interface {
	Send(ctx context.Context, msg Message) error
}

// DeliveryError is a channel that failed to deliver a message.
type DeliveryError struct {
	Channel string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("notify via %s: %s", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// NoneChannel drops every message.
type NoneChannel struct{}

func (NoneChannel) Send(context.Context, Message) error {
	return nil
}
