package notify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FakeChannel appends every message to a file, it is used to try out a setup without
// bothering anyone.
type FakeChannel struct {
	path  string
	mutex *sync.Mutex
}

func NewFakeChannel(path string) FakeChannel {
	return FakeChannel{path: path, mutex: &sync.Mutex{}}
}

func (c FakeChannel) Send(_ context.Context, msg Message) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	err := os.MkdirAll(filepath.Dir(c.path), 0755)
	if err != nil {
		return &DeliveryError{Channel: KindFake, Err: err}
	}
	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return &DeliveryError{Channel: KindFake, Err: err}
	}
	defer f.Close()

	entry := fmt.Sprintf("title: %s\nsubject: %s\n", msg.Title, msg.Subject)
	if !msg.Timestamp.IsZero() {
		entry += fmt.Sprintf("timestamp: %d\n", msg.Timestamp.Unix())
	}
	if msg.Image != "" {
		entry += fmt.Sprintf("image: %s\n", msg.Image)
	}
	for _, file := range msg.Files {
		entry += fmt.Sprintf("file: %s\n", file)
	}
	entry += fmt.Sprintf("\n%s\n\n", msg.Text)

	_, err = f.WriteString(entry)
	if err != nil {
		return &DeliveryError{Channel: KindFake, Err: err}
	}
	return nil
}
