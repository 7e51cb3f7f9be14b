//go:build linux

package source

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/florianl/go-nflog/v2"
	"golang.org/x/sys/unix"

	"grimm.is/scribe/internal/clock"
	"grimm.is/scribe/internal/errors"
	"grimm.is/scribe/internal/logging"
	"grimm.is/scribe/internal/ratelimit"
	"grimm.is/scribe/internal/record"
)

// NFLogConfig configures the packet-log subscription.
type NFLogConfig struct {
	Group       uint16
	ReadTimeout time.Duration
	// Queue is the number of decoded records buffered between the nflog
	// goroutine and the loop.
	Queue   int
	Devices DeviceNamer
	Logger  *logging.Logger
}

// NFLogSource reads packet-log records from one nflog group.
type NFLogSource struct {
	nf      *nflog.Nflog
	cancel  context.CancelFunc
	records chan record.RawEventRecord
	timeout time.Duration
	devices DeviceNamer
	logger  *logging.Logger

	errOnce sync.Once
	errCh   chan error

	warn      *ratelimit.Limiter
	dropped   atomic.Uint64
	undecoded atomic.Uint64
	closed    atomic.Bool
}

// OpenNFLog subscribes to cfg.Group in copy-packet mode.
func OpenNFLog(cfg NFLogConfig) (*NFLogSource, error) {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 100 * time.Millisecond
	}
	if cfg.Queue <= 0 {
		cfg.Queue = 4096
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.WithComponent("nflog")
	}

	nf, err := nflog.Open(&nflog.Config{
		Group:       cfg.Group,
		Copymode:    nflog.CopyPacket,
		ReadTimeout: 10 * time.Millisecond,
	})
	if err != nil {
		return nil, errors.Attr(errors.Wrap(err, errors.KindUnavailable, "failed to open nflog"), "group", cfg.Group)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &NFLogSource{
		nf:      nf,
		cancel:  cancel,
		records: make(chan record.RawEventRecord, cfg.Queue),
		timeout: cfg.ReadTimeout,
		devices: cfg.Devices,
		logger:  cfg.Logger,
		warn:    ratelimit.NewLimiter(1, 10*time.Second, nil),
		errCh:   make(chan error, 1),
	}

	if err := nf.RegisterWithErrorFunc(ctx, s.hook, s.onError); err != nil {
		cancel()
		nf.Close()
		return nil, errors.Wrap(err, errors.KindUnavailable, "failed to register nflog callback")
	}

	s.logger.Info("listening", "group", cfg.Group)
	return s, nil
}

func (s *NFLogSource) hook(attrs nflog.Attribute) int {
	meta := PacketMeta{Timestamp: clock.Now()}
	if attrs.Prefix != nil {
		meta.Prefix = *attrs.Prefix
	}
	if attrs.Timestamp != nil && !attrs.Timestamp.IsZero() {
		meta.Timestamp = *attrs.Timestamp
	}
	if attrs.InDev != nil {
		meta.InDev = s.deviceName(*attrs.InDev)
	}
	if attrs.OutDev != nil {
		meta.OutDev = s.deviceName(*attrs.OutDev)
	}
	if attrs.Mark != nil {
		meta.Mark = *attrs.Mark
	}

	var payload []byte
	if attrs.Payload != nil {
		payload = *attrs.Payload
	}
	rec, err := PacketRecord(meta, payload)
	if err != nil {
		s.undecoded.Add(1)
	}

	select {
	case s.records <- rec:
	default:
		s.dropped.Add(1)
		if ok, suppressed := s.warn.Allow("queue-full"); ok {
			s.logger.Warn("queue full, dropping records", "dropped", s.dropped.Load(), "suppressed", suppressed)
		}
	}
	return 0
}

func (s *NFLogSource) deviceName(index uint32) string {
	if s.devices != nil {
		if name := s.devices.DeviceName(index); name != "" {
			return name
		}
	}
	return ifindexName(index)
}

func (s *NFLogSource) onError(err error) int {
	if s.closed.Load() {
		return 1
	}
	if errors.Is(err, unix.ENOBUFS) {
		if ok, suppressed := s.warn.Allow("enobufs"); ok {
			s.logger.Warn("receive buffer overrun, records lost", "error", err, "suppressed", suppressed)
		}
		return 0
	}
	s.errOnce.Do(func() {
		s.errCh <- errors.Wrap(err, errors.KindIO, "nflog receive failed")
	})
	return 1
}

// ReadBatch implements PacketSource.
func (s *NFLogSource) ReadBatch(ctx context.Context, max int) ([]record.RawEventRecord, error) {
	if max <= 0 {
		max = 1
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	var batch []record.RawEventRecord
	select {
	case rec := <-s.records:
		batch = append(batch, rec)
	case err := <-s.errCh:
		return nil, err
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, nil
	}

	for len(batch) < max {
		select {
		case rec := <-s.records:
			batch = append(batch, rec)
		default:
			return batch, nil
		}
	}
	return batch, nil
}

// Dropped returns the number of records shed because the queue was full.
func (s *NFLogSource) Dropped() uint64 { return s.dropped.Load() }

// Undecoded returns the number of payloads that did not decode.
func (s *NFLogSource) Undecoded() uint64 { return s.undecoded.Load() }

// Close unsubscribes from the group.
func (s *NFLogSource) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.cancel()
	return s.nf.Close()
}
