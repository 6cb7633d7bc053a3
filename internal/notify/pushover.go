package notify

import (
	"context"
	"os"

	"github.com/gregdel/pushover"
)

// PushoverApp is the part of *pushover.Pushover the channel uses.
type PushoverApp interface {
	SendMessage(message *pushover.Message, recipient *pushover.Recipient) (*pushover.Response, error)
}

// PushoverChannel sends html push messages to one pushover user key.
type PushoverChannel struct {
	app       PushoverApp
	recipient *pushover.Recipient
}

func NewPushoverChannel(app PushoverApp, userKey string) PushoverChannel {
	return PushoverChannel{app: app, recipient: pushover.NewRecipient(userKey)}
}

func (c PushoverChannel) Send(_ context.Context, msg Message) error {
	message := pushover.NewMessageWithTitle(msg.Text, msg.Title)
	message.HTML = true
	if !msg.Timestamp.IsZero() {
		message.Timestamp = msg.Timestamp.Unix()
	}

	if msg.Image != "" {
		image, err := os.Open(msg.Image)
		if err != nil {
			return &DeliveryError{Channel: KindPushover, Err: err}
		}
		defer image.Close()
		err = message.AddAttachment(image)
		if err != nil {
			return &DeliveryError{Channel: KindPushover, Err: err}
		}
	}

	_, err := c.app.SendMessage(message, c.recipient)
	if err != nil {
		return &DeliveryError{Channel: KindPushover, Err: err}
	}
	return nil
}
