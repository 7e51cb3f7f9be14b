//go:build !linux

package source

import (
	"grimm.is/scribe/internal/errors"
	"grimm.is/scribe/internal/logging"
	"grimm.is/scribe/internal/record"
)

// ConntrackConfig configures the ctnetlink subscription.
type ConntrackConfig struct {
	Workers uint8
	Updates bool
	Queue   int
	// ReadBuffer is the socket receive buffer in bytes.
	ReadBuffer int
	Logger     *logging.Logger
}

// ConntrackSource is unavailable off Linux.
type ConntrackSource struct{}

// OpenConntrack always fails off Linux.
func OpenConntrack(cfg ConntrackConfig) (*ConntrackSource, error) {
	return nil, errors.New(errors.KindUnavailable, "conntrack is only supported on linux")
}

func (s *ConntrackSource) ReadOne() (record.RawEventRecord, bool, error) {
	return record.RawEventRecord{}, false, errors.New(errors.KindUnavailable, "conntrack is only supported on linux")
}

func (s *ConntrackSource) Close() error { return nil }
