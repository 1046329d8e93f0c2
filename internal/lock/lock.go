package lock

import (
	"encoding/json"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/kanux/kanuxd/internal/profile"
)

// LockHeldError is returned when another daemon already owns the profile.
type LockHeldError struct {
	Profile string
	PID     int
	Path    string
}

func (e *LockHeldError) Error() string {
	return fmt.Sprintf("profile %q locked by PID %d (%s)", e.Profile, e.PID, e.Path)
}

// Lock is the acquired single-daemon-per-profile lock.
type Lock struct {
	file *os.File
	path string
}

// owner is the metadata written into the lock file for diagnostics; the
// actual exclusion comes from flock, not the file content.
type owner struct {
	PID       int    `json:"pid"`
	StartedAt string `json:"started_at"`
}

// Acquire takes the exclusive daemon lock for a profile, creating the
// profile directory tree on first run. Returns LockHeldError when another
// process holds it.
func Acquire(name string) (*Lock, error) {
	if err := profile.EnsureDir(name); err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}
	path := profile.LockPath(name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		var o owner
		if data, rerr := os.ReadFile(path); rerr == nil {
			_ = json.Unmarshal(data, &o)
		}
		_ = f.Close()
		return nil, &LockHeldError{Profile: name, PID: o.PID, Path: path}
	}

	meta, err := json.Marshal(owner{
		PID:       os.Getpid(),
		StartedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err == nil {
		err = f.Truncate(0)
	}
	if err == nil {
		_, err = f.WriteAt(append(meta, '\n'), 0)
	}
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write lock metadata: %w", err)
	}

	return &Lock{file: f, path: path}, nil
}

// Release releases the lock. Safe to call on nil receiver and to call twice.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	// Remove lock file before closing to avoid stale files.
	_ = os.Remove(l.path)
	err := l.file.Close()
	l.file = nil
	return err
}
