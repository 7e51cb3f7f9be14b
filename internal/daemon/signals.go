package daemon

import (
	"os"
	"os/signal"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// Signals holds the flags set asynchronously and consumed by the loop at the
// top of each tick.
type Signals struct {
	quit   atomic.Bool
	reload atomic.Bool
}

// RequestQuit asks the loop to stop after the current tick.
func (s *Signals) RequestQuit() { s.quit.Store(true) }

// RequestReload asks for a reload cycle without a requester waiting.
func (s *Signals) RequestReload() { s.reload.Store(true) }

// Quit reports whether shutdown was requested.
func (s *Signals) Quit() bool { return s.quit.Load() }

// TakeReload reports and clears the reload flag.
func (s *Signals) TakeReload() bool { return s.reload.Swap(false) }

// Handle maps one signal to its flag. Unknown signals are ignored.
func (s *Signals) Handle(sig os.Signal) {
	switch sig {
	case unix.SIGINT, unix.SIGTERM:
		s.RequestQuit()
	case unix.SIGHUP:
		s.RequestReload()
	}
}

// Relay installs handlers for SIGINT, SIGTERM and SIGHUP. The relay goroutine
// only sets flags. The returned func uninstalls the handlers.
func (s *Signals) Relay() (stop func()) {
	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, unix.SIGINT, unix.SIGTERM, unix.SIGHUP)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case sig := <-sigCh:
				s.Handle(sig)
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}
