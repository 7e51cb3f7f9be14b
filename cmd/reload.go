package cmd

import (
	"io"
	"strconv"
	"time"

	"golang.org/x/sys/unix"

	"grimm.is/scribe/internal/ctlplane"
	"grimm.is/scribe/internal/errors"
	"grimm.is/scribe/internal/pidfile"
)

// ReloadOptions controls RunReload.
type ReloadOptions struct {
	// Timeout bounds the wait for the daemon's answer.
	Timeout time.Duration
	// Poll is the progress polling interval. Zero disables progress output.
	Poll time.Duration
}

// RunReload asks the daemon for a reload over the control socket and prints
// its progress until the result arrives.
func RunReload(client ctlplane.ControlPlaneClient, opts ReloadOptions, out io.Writer) error {
	if opts.Timeout <= 0 {
		opts.Timeout = ctlplane.DefaultReloadTimeout
	}

	type result struct {
		reply *ctlplane.ReloadReply
		err   error
	}
	done := make(chan result, 1)
	go func() {
		reply, err := client.Reload(opts.Timeout)
		done <- result{reply, err}
	}()

	var tick <-chan time.Time
	if opts.Poll > 0 {
		ticker := time.NewTicker(opts.Poll)
		defer ticker.Stop()
		tick = ticker.C
	}

	last := -1
	for {
		select {
		case <-tick:
			p, err := client.Progress()
			if err != nil || !p.Reloading || p.Progress == last {
				continue
			}
			last = p.Progress
			Printer.Fprintf(out, "reloading... %d%%\n", p.Progress)

		case r := <-done:
			if r.err != nil {
				return r.err
			}
			if r.reply.Result != ctlplane.ResultOK {
				return errors.Attr(errors.Errorf(errors.KindInternal,
					"reload failed in step %s: %s", r.reply.Step, r.reply.Message), "step", r.reply.Step)
			}
			Printer.Fprintf(out, "%s\n", StyleStatusGood.Render("reload complete"))
			return nil
		}
	}
}

// RunReloadSignal sends SIGHUP to the daemon named by the PID file instead of
// using the control socket. It does not wait for the reload.
func RunReloadSignal(pidPath string, out io.Writer) error {
	pid, err := pidfile.Signal(pidPath, unix.SIGHUP)
	if err != nil {
		return err
	}
	Printer.Fprintf(out, "Sent SIGHUP to process %s\n", strconv.Itoa(pid))
	return nil
}
