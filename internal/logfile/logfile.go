// Package logfile provides the append-only text logs scribe writes records to.
//
// A File is owned by the event loop. Every Write is followed by a flush so a
// crash loses at most the line being written. Files are never truncated:
// Reopen closes the descriptor and opens the same path again in append mode,
// which lets external rotation move the old file aside.
package logfile

import (
	"bufio"
	"os"
	"path/filepath"

	"grimm.is/scribe/internal/errors"
)

const (
	fileMode = 0640
	dirMode  = 0755
)

// File is one append-mode log.
type File struct {
	path  string
	f     *os.File
	w     *bufio.Writer
	lines uint64
}

// Open opens path for appending, creating it and its directory if needed.
func Open(path string) (*File, error) {
	lf := &File{path: path}
	if err := lf.open(); err != nil {
		return nil, err
	}
	return lf, nil
}

func (lf *File) open() error {
	if err := os.MkdirAll(filepath.Dir(lf.path), dirMode); err != nil {
		return errors.Attr(errors.Wrap(err, errors.KindIO, "failed to create log directory"), "path", lf.path)
	}
	f, err := os.OpenFile(lf.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, fileMode)
	if err != nil {
		return errors.Attr(errors.Wrap(err, errors.KindIO, "failed to open log"), "path", lf.path)
	}
	lf.f = f
	if lf.w == nil {
		lf.w = bufio.NewWriterSize(f, 4096)
	} else {
		lf.w.Reset(f)
	}
	return nil
}

// Path returns the file's path.
func (lf *File) Path() string { return lf.path }

// Lines returns the number of lines written since Open.
func (lf *File) Lines() uint64 { return lf.lines }

// Write appends line and flushes.
func (lf *File) Write(line string) error {
	if lf.f == nil {
		return errors.Attr(errors.New(errors.KindUnavailable, "log is closed"), "path", lf.path)
	}
	if _, err := lf.w.WriteString(line); err != nil {
		return errors.Attr(errors.Wrap(err, errors.KindIO, "log write failed"), "path", lf.path)
	}
	if err := lf.w.Flush(); err != nil {
		return errors.Attr(errors.Wrap(err, errors.KindIO, "log flush failed"), "path", lf.path)
	}
	lf.lines++
	return nil
}

// Reopen closes and reopens the file in append mode. With a non-empty path
// the file moves to the new location.
func (lf *File) Reopen(path string) error {
	if err := lf.Close(); err != nil {
		return err
	}
	if path != "" {
		lf.path = path
	}
	return lf.open()
}

// Close flushes and closes the file. Closing a closed File is a no-op.
func (lf *File) Close() error {
	if lf.f == nil {
		return nil
	}
	flushErr := lf.w.Flush()
	closeErr := lf.f.Close()
	lf.f = nil
	if flushErr != nil {
		return errors.Attr(errors.Wrap(flushErr, errors.KindIO, "log flush failed"), "path", lf.path)
	}
	if closeErr != nil {
		return errors.Attr(errors.Wrap(closeErr, errors.KindIO, "log close failed"), "path", lf.path)
	}
	return nil
}
