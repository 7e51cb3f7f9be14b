package cmd

import (
	"io"
	"strconv"
	"time"

	"golang.org/x/sys/unix"

	"grimm.is/scribe/internal/errors"
	"grimm.is/scribe/internal/pidfile"
)

// RunStop sends SIGTERM to the daemon named by the PID file and waits up to
// wait for it to exit. A zero wait returns right after the signal.
func RunStop(pidPath string, wait time.Duration, out io.Writer) error {
	pid, err := pidfile.Signal(pidPath, unix.SIGTERM)
	if err != nil {
		return err
	}
	Printer.Fprintf(out, "Sent SIGTERM to process %s\n", strconv.Itoa(pid))
	if wait <= 0 {
		return nil
	}

	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		if !pidfile.Alive(pid) {
			Printer.Fprintf(out, "Stopped.\n")
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return errors.Attr(errors.Errorf(errors.KindTimeout, "process %d still running after %s", pid, wait), "pid", pid)
}
