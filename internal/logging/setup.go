package logging

import (
	"io"
	"os"
	"path/filepath"
)

// SetupOptions selects the diagnostic sink for a scribe process.
type SetupOptions struct {
	Level string
	JSON  bool

	// Foreground sends diagnostics to stderr. Otherwise they are appended to File.
	Foreground bool
	File       string

	Syslog SyslogConfig
}

// Sink is the set of writers opened by Setup. Close releases them.
type Sink struct {
	closers []io.Closer
}

// Close closes every writer opened by Setup.
func (s *Sink) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}

// Setup builds a Logger from opts, installs it as the default, and returns the
// sink so the caller can close files at exit. A syslog failure is reported on
// the returned logger and does not fail setup.
func Setup(opts SetupOptions) (*Logger, *Sink, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	sink := &Sink{}
	var out io.Writer = os.Stderr

	if !opts.Foreground && opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, nil, err
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return nil, nil, err
		}
		sink.closers = append(sink.closers, f)
		out = f
	}

	var syslogErr error
	if opts.Syslog.Enabled {
		w, err := NewSyslogWriter(opts.Syslog)
		if err != nil {
			syslogErr = err
		} else {
			sink.closers = append(sink.closers, w)
			out = MultiWriter(out, w)
		}
	}

	logger := New(Config{
		Level:  level,
		Output: out,
		JSON:   opts.JSON,
	})
	SetDefault(logger)

	if syslogErr != nil {
		logger.Warn("remote syslog disabled", "error", syslogErr)
	}
	return logger, sink, nil
}
