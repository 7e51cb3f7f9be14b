package cmd

import (
	"bufio"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"grimm.is/scribe/internal/brand"
	"grimm.is/scribe/internal/errors"
	"grimm.is/scribe/internal/pidfile"
)

// RunStart starts the daemon in the background by re-executing the binary
// with "run" in a new session.
func RunStart(configFile string) error {
	// Pre-flight: refuse a broken config before forking so the error is visible.
	res, err := loadConfiguration(configFile)
	if err != nil {
		return errors.Wrap(err, errors.GetKind(err), "configuration error")
	}
	cfg := res.Config

	pidPath := brand.GetPIDFile()
	if pid, err := pidfile.New(pidPath).Check(); err != nil {
		return err
	} else if pid != 0 {
		return errors.Errorf(errors.KindConflict, "process already running (PID: %d)", pid)
	}

	exe, err := os.Executable()
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "failed to get executable path")
	}
	args := []string{"run"}
	if configFile != "" {
		args = append(args, "-config", configFile)
	}
	cmd := exec.Command(exe, args...)

	// The child appends its own diagnostics to DaemonLog; this descriptor only
	// catches output written before logging is set up.
	if err := os.MkdirAll(filepath.Dir(cfg.DaemonLog), 0755); err != nil {
		return errors.Wrap(err, errors.KindIO, "failed to create log directory")
	}
	logF, err := os.OpenFile(cfg.DaemonLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return errors.Attr(errors.Wrap(err, errors.KindIO, "failed to open daemon log"), "path", cfg.DaemonLog)
	}
	defer logF.Close()
	cmd.Stdout = logF
	cmd.Stderr = logF
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, errors.KindInternal, "failed to start daemon")
	}
	pid := cmd.Process.Pid
	Printer.Printf("Started %s (PID: %s)\n", brand.Name, strconv.Itoa(pid))
	Printer.Printf("Logs: %s\n", cfg.DaemonLog)

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		Printer.Fprintf(os.Stderr, "\nError: daemon exited immediately.\n")
		if lines := tailLogFile(cfg.DaemonLog, 10); len(lines) > 0 {
			Printer.Fprintf(os.Stderr, "Log output:\n")
			for _, line := range lines {
				Printer.Fprintf(os.Stderr, "  %s\n", line)
			}
		}
		if err != nil {
			return errors.Wrap(err, errors.KindInternal, "daemon failed to start")
		}
		return errors.New(errors.KindInternal, "daemon exited unexpectedly")

	case <-time.After(500 * time.Millisecond):
		if !pidfile.Alive(pid) {
			return errors.Errorf(errors.KindInternal, "daemon died during startup (check logs: %s)", cfg.DaemonLog)
		}
		return nil
	}
}

// tailLogFile returns the last n non-empty lines of a log file
func tailLogFile(path string, n int) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if scanner.Text() == "" {
			continue
		}
		lines = append(lines, scanner.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	return lines
}
