// Package source subscribes to the kernel event streams scribe logs: the
// nflog packet log and ctnetlink connection tracking events.
//
// Kernel library goroutines only push decoded records into buffered channels.
// The event loop pulls from them with ReadBatch and ReadOne.
package source

import (
	"context"

	"grimm.is/scribe/internal/record"
)

// PacketSource yields packet-log records.
type PacketSource interface {
	// ReadBatch blocks until at least one record is available, the source's
	// read timeout elapses, or ctx is done, then returns up to max records.
	// An empty batch is not an error.
	ReadBatch(ctx context.Context, max int) ([]record.RawEventRecord, error)
	Close() error
}

// ConnSource yields connection tracking records.
type ConnSource interface {
	// ReadOne never blocks. ok is false when nothing is queued.
	ReadOne() (rec record.RawEventRecord, ok bool, err error)
	Close() error
}

// DeviceNamer resolves interface indexes to device names.
type DeviceNamer interface {
	DeviceName(index uint32) string
}

// Dropper is implemented by sources that shed records when their queue is full.
type Dropper interface {
	Dropped() uint64
}

// DecodeCounter is implemented by sources that discard payloads they cannot decode.
type DecodeCounter interface {
	Undecoded() uint64
}

// NopConnSource is used when connection tracking is disabled.
type NopConnSource struct{}

func (NopConnSource) ReadOne() (record.RawEventRecord, bool, error) {
	return record.RawEventRecord{}, false, nil
}

func (NopConnSource) Close() error { return nil }
