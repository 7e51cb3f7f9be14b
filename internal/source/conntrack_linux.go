//go:build linux

package source

import (
	"sync/atomic"

	"github.com/mdlayher/netlink"
	"github.com/ti-mo/conntrack"
	"github.com/ti-mo/netfilter"
	"golang.org/x/sys/unix"

	"grimm.is/scribe/internal/clock"
	"grimm.is/scribe/internal/errors"
	"grimm.is/scribe/internal/logging"
	"grimm.is/scribe/internal/record"
)

// DefaultConntrackReadBuffer is the ctnetlink socket receive buffer.
const DefaultConntrackReadBuffer = 8 << 20

// ConntrackConfig configures the ctnetlink subscription.
type ConntrackConfig struct {
	Workers uint8
	// Updates also subscribes to the update group.
	Updates bool
	Queue   int
	// ReadBuffer is the socket receive buffer in bytes.
	ReadBuffer int
	Logger     *logging.Logger
}

// ConntrackSource reads connection events from ctnetlink.
type ConntrackSource struct {
	conn   *conntrack.Conn
	events chan conntrack.Event
	errs   chan error
	closed atomic.Bool
}

// OpenConntrack listens on the NEW and DESTROY groups.
func OpenConntrack(cfg ConntrackConfig) (*ConntrackSource, error) {
	if cfg.Workers == 0 {
		cfg.Workers = 1
	}
	if cfg.Queue <= 0 {
		cfg.Queue = 4096
	}
	if cfg.ReadBuffer <= 0 {
		cfg.ReadBuffer = DefaultConntrackReadBuffer
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.WithComponent("conntrack")
	}

	conn, err := conntrack.Dial(nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUnavailable, "conntrack dial failed")
	}

	// Every receive error ends the library's worker, so overruns must not
	// surface as ENOBUFS.
	if err := conn.SetOption(netlink.NoENOBUFS, true); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, errors.KindUnavailable, "conntrack: failed to disable ENOBUFS")
	}
	if err := conn.SetReadBuffer(cfg.ReadBuffer); err != nil {
		conn.Close()
		return nil, errors.Attr(errors.Wrap(err, errors.KindUnavailable, "conntrack: failed to size receive buffer"), "bytes", cfg.ReadBuffer)
	}

	groups := []netfilter.NetlinkGroup{netfilter.GroupCTNew, netfilter.GroupCTDestroy}
	if cfg.Updates {
		groups = append(groups, netfilter.GroupCTUpdate)
	}

	events := make(chan conntrack.Event, cfg.Queue)
	errs, err := conn.Listen(events, cfg.Workers, groups)
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, errors.KindUnavailable, "conntrack listen failed")
	}

	cfg.Logger.Info("listening", "workers", cfg.Workers, "updates", cfg.Updates, "read_buffer", cfg.ReadBuffer)
	return &ConntrackSource{
		conn:   conn,
		events: events,
		errs:   errs,
	}, nil
}

// ReadOne implements ConnSource. Queued events are returned before a
// receive error. Any receive error is fatal: the worker that reported it
// has exited.
func (s *ConntrackSource) ReadOne() (record.RawEventRecord, bool, error) {
	for {
		select {
		case ev := <-s.events:
			rec, ok := EventRecord(ev)
			if !ok {
				continue
			}
			return rec, true, nil
		default:
		}

		select {
		case err := <-s.errs:
			if err == nil {
				return record.RawEventRecord{}, false, nil
			}
			if errors.Is(err, unix.ENOBUFS) {
				return record.RawEventRecord{}, false, errors.Wrap(err, errors.KindResource, "conntrack receive buffer overrun, subscription lost")
			}
			return record.RawEventRecord{}, false, errors.Wrap(err, errors.KindIO, "conntrack receive failed")
		default:
			return record.RawEventRecord{}, false, nil
		}
	}
}

// EventRecord converts a conntrack event. Expectation events yield ok=false.
func EventRecord(ev conntrack.Event) (record.RawEventRecord, bool) {
	if ev.Flow == nil {
		return record.RawEventRecord{}, false
	}

	var action record.Action
	switch ev.Type {
	case conntrack.EventNew:
		action = record.ActionConnNew
	case conntrack.EventUpdate:
		action = record.ActionConnUpdate
	case conntrack.EventDestroy:
		action = record.ActionConnDestroy
	default:
		return record.RawEventRecord{}, false
	}
	return FlowRecord(ev.Flow, action), true
}

// FlowRecord maps the original tuple and both counters of f.
func FlowRecord(f *conntrack.Flow, action record.Action) record.RawEventRecord {
	orig := f.TupleOrig
	rec := record.RawEventRecord{
		Origin:    record.OriginConntrack,
		Timestamp: clock.Now(),
		Src:       orig.IP.SourceAddress.Unmap(),
		Dst:       orig.IP.DestinationAddress.Unmap(),
		Proto:     orig.Proto.Protocol,
		SrcPort:   orig.Proto.SourcePort,
		DstPort:   orig.Proto.DestinationPort,
		ICMPType:  orig.Proto.ICMPType,
		ICMPCode:  orig.Proto.ICMPCode,
		Action:    action,
		Packets:   f.CountersOrig.Packets + f.CountersReply.Packets,
		Bytes:     f.CountersOrig.Bytes + f.CountersReply.Bytes,
		ConnID:    f.ID,
		Mark:      f.Mark,
	}
	if !f.Timestamp.Start.IsZero() && action == record.ActionConnNew {
		rec.Timestamp = f.Timestamp.Start
	}
	return rec
}

// Close leaves the multicast groups and closes the socket.
func (s *ConntrackSource) Close() error {
	if !s.closed.CompareAndSwap(false, true) || s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
