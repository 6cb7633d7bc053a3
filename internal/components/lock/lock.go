// Package lock implements the process-wide lease that keeps two poll cycles from running
// at the same time. The lease is a file holding the holder's pid, a file whose pid is no
// longer running is considered released.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// DefaultFilename is the lock file used when no path is configured.
const DefaultFilename = ".im.lock"

type Lease struct {
	path string
	pid  int32
}

func New(path string) Lease {
	if path == "" {
		path = DefaultFilename
	}
	return Lease{path: path, pid: int32(os.Getpid())}
}

func (l Lease) Path() string {
	return l.path
}

func (l Lease) holder() (int32, bool) {
	contents, err := os.ReadFile(l.path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.ParseInt(strings.TrimSpace(string(contents)), 10, 32)
	if err != nil {
		return 0, false
	}
	return int32(pid), true
}

// Held reports if a live process other than this one holds the lease.
func (l Lease) Held(ctx context.Context) (bool, error) {
	pid, ok := l.holder()
	if !ok || pid == l.pid {
		return false, nil
	}
	exists, err := process.PidExistsWithContext(ctx, pid)
	if err != nil {
		return false, fmt.Errorf("check lock holder %d: %w", pid, err)
	}
	return exists, nil
}

// Acquire takes the lease, it returns false without an error when another live process
// holds it. A stale lease is taken over.
func (l Lease) Acquire(ctx context.Context) (bool, error) {
	held, err := l.Held(ctx)
	if err != nil {
		return false, err
	}
	if held {
		return false, nil
	}
	err = os.MkdirAll(filepath.Dir(l.path), 0777)
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	err = os.WriteFile(l.path, []byte(strconv.Itoa(int(l.pid))), 0644)
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	return true, nil
}

// Release removes the lease if this process owns it.
func (l Lease) Release() error {
	pid, ok := l.holder()
	if !ok || pid != l.pid {
		return nil
	}
	err := os.Remove(l.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
