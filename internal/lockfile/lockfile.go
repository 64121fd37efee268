// Package lockfile provides a cross-process exclusive lock backed by an OS
// file lock. The lock is released automatically if the process dies.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	initialBackoff = 5 * time.Millisecond
	maxBackoff     = 50 * time.Millisecond
)

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("lock held by another process")

// Lock is an exclusive lock on a single file path.
type Lock struct {
	path string
	f    *os.File
}

// New returns an unlocked Lock for path. The parent directory is created
// on Acquire.
func New(path string) *Lock {
	return &Lock{path: path}
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// TryAcquire takes the lock without waiting.
func (l *Lock) TryAcquire() error {
	return l.Acquire(0)
}

// Acquire takes the lock, retrying with backoff until timeout elapses.
// A timeout of zero tries once. The error wraps ErrLocked and names the
// current holder.
func (l *Lock) Acquire(timeout time.Duration) error {
	if l.f != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	l.f = f

	deadline := time.Now().Add(timeout)
	backoff := initialBackoff
	for {
		if err := l.tryLock(); err == nil {
			l.writeHolder()
			return nil
		}
		if !time.Now().Before(deadline) {
			holder := l.Holder()
			l.f.Close()
			l.f = nil
			return fmt.Errorf("%w (%s)", ErrLocked, holder)
		}
		time.Sleep(backoff)
		backoff = min(backoff*2, maxBackoff)
	}
}

// Release drops the lock. It is safe to call on an unheld Lock.
func (l *Lock) Release() error {
	if l.f == nil {
		return nil
	}
	l.f.Truncate(0)
	l.unlock()
	err := l.f.Close()
	l.f = nil
	return err
}

// Held reports whether this Lock currently holds the file lock.
func (l *Lock) Held() bool {
	return l.f != nil
}

func (l *Lock) writeHolder() {
	l.f.Truncate(0)
	l.f.Seek(0, 0)
	fmt.Fprintf(l.f, "pid:%d\ntime:%s\n", os.Getpid(), time.Now().Format(time.RFC3339))
	l.f.Sync()
}

// Holder describes the process recorded in the lock file, flagging it as
// stale when that process no longer exists.
func (l *Lock) Holder() string {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return "unknown"
	}

	var pid, timestamp string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if v, ok := strings.CutPrefix(line, "pid:"); ok {
			pid = v
		} else if v, ok := strings.CutPrefix(line, "time:"); ok {
			timestamp = v
		}
	}
	if pid == "" {
		return "unknown"
	}

	if n, err := strconv.Atoi(pid); err == nil && !isProcessAlive(n) {
		return fmt.Sprintf("pid:%s since %s (stale)", pid, timestamp)
	}
	return fmt.Sprintf("pid:%s since %s", pid, timestamp)
}

// With runs fn while holding an exclusive lock on path.
func With(path string, timeout time.Duration, fn func() error) error {
	l := New(path)
	if err := l.Acquire(timeout); err != nil {
		return err
	}
	defer l.Release()
	return fn()
}
