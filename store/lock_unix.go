//go:build unix

package store

import (
	"os"

	"golang.org/x/sys/unix"
)

// fileLock is an advisory flock(2) on a sidecar file. It serializes
// collection rewrites across processes sharing a data directory.
type fileLock struct {
	path string
}

func newFileLock(path string) *fileLock {
	return &fileLock{path: path}
}

func (l *fileLock) shared() (func(), error) {
	return l.acquire(unix.LOCK_SH)
}

func (l *fileLock) exclusive() (func(), error) {
	return l.acquire(unix.LOCK_EX)
}

func (l *fileLock) acquire(how int) (func(), error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	for {
		err = unix.Flock(int(f.Fd()), how)
		if err != unix.EINTR {
			break
		}
	}
	if err != nil {
		f.Close()
		return nil, err
	}
	return func() {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
	}, nil
}
