//go:build !linux

package source

import (
	"context"
	"time"

	"grimm.is/scribe/internal/errors"
	"grimm.is/scribe/internal/logging"
	"grimm.is/scribe/internal/record"
)

// NFLogConfig configures the packet-log subscription.
type NFLogConfig struct {
	Group       uint16
	ReadTimeout time.Duration
	Queue       int
	Devices     DeviceNamer
	Logger      *logging.Logger
}

// NFLogSource is unavailable off Linux.
type NFLogSource struct{}

// OpenNFLog always fails off Linux.
func OpenNFLog(cfg NFLogConfig) (*NFLogSource, error) {
	return nil, errors.New(errors.KindUnavailable, "nflog is only supported on linux")
}

func (s *NFLogSource) ReadBatch(ctx context.Context, max int) ([]record.RawEventRecord, error) {
	return nil, errors.New(errors.KindUnavailable, "nflog is only supported on linux")
}

func (s *NFLogSource) Dropped() uint64 { return 0 }

func (s *NFLogSource) Undecoded() uint64 { return 0 }

func (s *NFLogSource) Close() error { return nil }
