// Package blob is a small keyed byte store, it backs the persisted cookie jars.
package blob

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// ErrNotFound is returned by Get when a key has never been written.
var ErrNotFound = errors.New("blob not found")

type Store interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
}

// FilesystemStore keeps every blob as one file inside a directory, keys are escaped so any
// username is a valid key.
type FilesystemStore struct {
	dir string
}

func NewFilesystemStore(dir string) (FilesystemStore, error) {
	err := os.MkdirAll(dir, 0700)
	if err != nil {
		return FilesystemStore{}, fmt.Errorf("create blob dir: %w", err)
	}
	return FilesystemStore{dir: dir}, nil
}

func (s FilesystemStore) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key))
}

func (s FilesystemStore) Get(key string) ([]byte, error) {
	contents, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", key, err)
	}
	return contents, nil
}

// Put replaces the blob atomically so a crash mid-write never leaves a truncated file.
func (s FilesystemStore) Put(key string, value []byte) error {
	final := s.path(key)
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("write blob %s: %w", key, err)
	}
	_, err = tmp.Write(value)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write blob %s: %w", key, err)
	}
	err = os.Rename(tmp.Name(), final)
	if err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write blob %s: %w", key, err)
	}
	return nil
}

// MemoryStore is a Store for tests.
type MemoryStore map[string][]byte

func (m MemoryStore) Get(key string) ([]byte, error) {
	value, ok := m[key]
	if !ok {
		return nil, ErrNotFound
	}
	return value, nil
}

func (m MemoryStore) Put(key string, value []byte) error {
	m[key] = append([]byte(nil), value...)
	return nil
}
