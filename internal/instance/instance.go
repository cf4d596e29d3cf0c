// Package instance keeps one watcher per data directory. The watcher holds
// an exclusive file lock for its lifetime and records its PID beside it so
// other commands can report on it or stop it.
package instance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/gofrs/flock"

	fierrors "github.com/Aman-CERP/fileindex/internal/errors"
)

const (
	lockName = "fileindex.lock"
	pidName  = "fileindex.pid"
)

// ErrNotRunning is returned by Stop when no watcher holds the lock.
var ErrNotRunning = errors.New("no watcher is running")

// Lock is a held single-instance lock.
type Lock struct {
	flock  *flock.Flock
	pid    *PIDFile
	locked bool
}

// Status describes the lock holder, if any.
type Status struct {
	Running bool `json:"running"`
	PID     int  `json:"pid,omitempty"`
}

// LockPath is the lock file inside dataDir.
func LockPath(dataDir string) string {
	return filepath.Join(dataDir, lockName)
}

// PIDPath is the PID file inside dataDir.
func PIDPath(dataDir string) string {
	return filepath.Join(dataDir, pidName)
}

// Acquire takes the lock for dataDir without blocking and writes the PID
// file. It fails with ErrCodeAlreadyRunning when another process holds it.
func Acquire(dataDir string) (*Lock, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	fl := flock.New(LockPath(dataDir))
	acquired, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	pid := NewPIDFile(PIDPath(dataDir))
	if !acquired {
		e := fierrors.New(fierrors.ErrCodeAlreadyRunning, "another watcher is using "+dataDir, nil).
			WithSuggestion("stop it with 'fileindex stop' or use a different --data-dir")
		if holder, err := pid.Read(); err == nil {
			e = e.WithDetail("pid", strconv.Itoa(holder))
		}
		return nil, e
	}

	if err := pid.Write(); err != nil {
		_ = fl.Unlock()
		return nil, err
	}
	return &Lock{flock: fl, pid: pid, locked: true}, nil
}

// Release removes the PID file and drops the lock. Calling it twice is safe.
func (l *Lock) Release() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	pidErr := l.pid.Remove()
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return pidErr
}

// Probe reports whether a watcher holds the lock for dataDir. A PID file
// left by a crashed process does not count: only the lock does.
func Probe(dataDir string) (Status, error) {
	path := LockPath(dataDir)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Status{}, nil
	}

	fl := flock.New(path)
	acquired, err := fl.TryLock()
	if err != nil {
		return Status{}, fmt.Errorf("failed to probe lock: %w", err)
	}
	if acquired {
		_ = fl.Unlock()
		return Status{}, nil
	}

	st := Status{Running: true}
	if pid, err := NewPIDFile(PIDPath(dataDir)).Read(); err == nil {
		st.PID = pid
	}
	return st, nil
}

// Stop sends sig to the watcher holding the lock for dataDir and returns
// its PID.
func Stop(dataDir string, sig syscall.Signal) (int, error) {
	st, err := Probe(dataDir)
	if err != nil {
		return 0, err
	}
	if !st.Running {
		return 0, ErrNotRunning
	}
	if st.PID == 0 {
		return 0, fmt.Errorf("watcher is running but %s is unreadable", PIDPath(dataDir))
	}
	if err := NewPIDFile(PIDPath(dataDir)).Signal(sig); err != nil {
		return st.PID, err
	}
	return st.PID, nil
}
