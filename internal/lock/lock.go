// Package lock provides an advisory, exclusive file lock used to serialize
// writers of the stash manifest across igit processes.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"
)

// ErrLocked indicates another process currently holds the lock
var ErrLocked = errors.New("lock is held by another igit process")

// Lock is an acquired file lock
type Lock struct {
	path string
	fd   *os.File
}

// Acquire takes a non-blocking exclusive flock on path, creating the file
// and its parent directory if needed. The holder's PID is written into the
// file for diagnostics.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	fd, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := unix.Flock(int(fd.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = fd.Close()
		// EWOULDBLOCK and EAGAIN are the same value on Linux but not everywhere
		if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN) {
			if pid, perr := readPid(path); perr == nil {
				return nil, fmt.Errorf("%w (pid %d): %s", ErrLocked, pid, path)
			}
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	if err := fd.Truncate(0); err != nil {
		_ = fd.Close()
		return nil, fmt.Errorf("failed to truncate lock file: %w", err)
	}
	if _, err := fd.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0); err != nil {
		_ = fd.Close()
		return nil, fmt.Errorf("failed to write PID to lock file: %w", err)
	}

	return &Lock{path: path, fd: fd}, nil
}

// Release unlocks and closes the lock file. The file itself is left in
// place; removing it would let a waiter lock an orphaned inode.
func (l *Lock) Release() error {
	if l == nil || l.fd == nil {
		return nil
	}

	var err error
	if flockErr := unix.Flock(int(l.fd.Fd()), unix.LOCK_UN); flockErr != nil {
		err = fmt.Errorf("failed to release lock %s: %w", l.path, flockErr)
	}
	if closeErr := l.fd.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("failed to close lock file %s: %w", l.path, closeErr)
	}
	l.fd = nil
	return err
}

func readPid(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(string(data))
}
