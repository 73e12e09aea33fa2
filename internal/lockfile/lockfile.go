// Package lockfile implements the File Lock (§4.7): an exclusive
// create-lock keyed on the download's output filename, so two
// invocations against the same output never run concurrently.
package lockfile

import (
	"fmt"
	"log/slog"
	"os"
)

// Lock is the opaque handle returned by Acquire.
type Lock struct {
	path string
	file *os.File
}

// Acquire creates name+".lock" with exclusive-create semantics. It
// returns (nil, nil) — not an error — if the lock file already exists,
// since "someone else holds it" is an expected, non-exceptional
// outcome a caller checks for; any other creation failure (permission,
// missing directory, ...) is returned as an error. The two cases are
// logged distinctly so an operator can tell "already locked" apart
// from "couldn't even try."
func Acquire(log *slog.Logger, name, contents string) (*Lock, error) {
	path := name + ".lock"
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			log.Info("lock file already held", "path", path)
			return nil, nil
		}
		log.Warn("failed to create lock file", "path", path, "err", err)
		return nil, fmt.Errorf("lockfile.Acquire: %w", err)
	}

	if _, err := f.WriteString(contents); err != nil {
		log.Warn("failed to write lock file contents", "path", path, "err", err)
	}
	f.Close()

	return &Lock{path: path, file: f}, nil
}

// Release removes the lock file. It is safe to call on a nil *Lock (a
// caller that never acquired one, or observed "already held"), and is
// meant to run in a guaranteed-release path covering success, failure
// and cancellation alike.
func (l *Lock) Release(log *slog.Logger) {
	if l == nil {
		return
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to remove lock file", "path", l.path, "err", err)
	}
}
