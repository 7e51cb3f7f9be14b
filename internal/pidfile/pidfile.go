// Package pidfile manages the marker file that names the running daemon.
//
// The file holds the decimal PID and a newline. A file naming a process that
// no longer exists is stale and is removed by Check.
package pidfile

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"grimm.is/scribe/internal/errors"
)

// File is a PID marker at a fixed path.
type File struct {
	path string
	pid  int
}

// New returns a marker for path. Nothing touches the filesystem until Create.
func New(path string) *File {
	return &File{path: path}
}

// Path returns the marker path.
func (f *File) Path() string { return f.path }

// Read returns the PID stored at path.
func Read(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, errors.Attr(errors.New(errors.KindNotFound, "no PID file (is the daemon running?)"), "path", path)
		}
		return 0, errors.Attr(errors.Wrap(err, errors.KindIO, "failed to read PID file"), "path", path)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, errors.Attr(errors.New(errors.KindValidation, "invalid PID in file"), "path", path)
	}
	return pid, nil
}

// Alive reports whether pid names a live process. A process owned by another
// user still counts as alive.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}

// Check returns the PID of a live daemon, or 0 when none is running. A stale
// or unreadable marker is removed.
func (f *File) Check() (int, error) {
	pid, err := Read(f.path)
	if err != nil {
		if errors.GetKind(err) == errors.KindNotFound {
			return 0, nil
		}
		if errors.GetKind(err) == errors.KindValidation {
			return 0, f.removeStale()
		}
		return 0, err
	}
	if pid == os.Getpid() || !Alive(pid) {
		return 0, f.removeStale()
	}
	return pid, nil
}

func (f *File) removeStale() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return errors.Attr(errors.Wrap(err, errors.KindIO, "failed to remove stale PID file"), "path", f.path)
	}
	return nil
}

// Create writes the current PID. It fails with KindConflict when another live
// process already holds the marker.
func (f *File) Create() error {
	running, err := f.Check()
	if err != nil {
		return err
	}
	if running != 0 {
		return errors.Attr(errors.Errorf(errors.KindConflict, "already running (PID: %d)", running), "path", f.path)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return errors.Attr(errors.Wrap(err, errors.KindIO, "failed to create run directory"), "path", f.path)
	}
	pid := os.Getpid()
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return errors.Attr(errors.Wrap(err, errors.KindIO, "failed to write PID file"), "path", f.path)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return errors.Attr(errors.Wrap(err, errors.KindIO, "failed to write PID file"), "path", f.path)
	}
	f.pid = pid
	return nil
}

// Remove deletes the marker if it still names this process.
func (f *File) Remove() error {
	if f.pid == 0 {
		return nil
	}
	pid, err := Read(f.path)
	if err != nil || pid != f.pid {
		f.pid = 0
		return nil
	}
	f.pid = 0
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return errors.Attr(errors.Wrap(err, errors.KindIO, "failed to remove PID file"), "path", f.path)
	}
	return nil
}

// Signal sends sig to the process named in the marker at path and returns its PID.
func Signal(path string, sig unix.Signal) (int, error) {
	pid, err := Read(path)
	if err != nil {
		return 0, err
	}
	if !Alive(pid) {
		return pid, errors.Attr(errors.Errorf(errors.KindNotFound, "process %d is not running", pid), "path", path)
	}
	if err := unix.Kill(pid, sig); err != nil {
		return pid, errors.Attr(errors.Wrapf(err, errors.KindIO, "failed to signal process %d", pid), "path", path)
	}
	return pid, nil
}
