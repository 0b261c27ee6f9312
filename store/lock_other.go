//go:build !unix

package store

// fileLock is a no-op where flock(2) is unavailable; the in-process mutex
// still serializes writers.
type fileLock struct{}

func newFileLock(string) *fileLock { return &fileLock{} }

func (l *fileLock) shared() (func(), error)    { return func() {}, nil }
func (l *fileLock) exclusive() (func(), error) { return func() {}, nil }
