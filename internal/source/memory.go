package source

import (
	"context"
	"sync"

	"grimm.is/scribe/internal/record"
)

// MemoryPacketSource is an in-memory PacketSource for tests and replay.
type MemoryPacketSource struct {
	mu        sync.Mutex
	records   []record.RawEventRecord
	err       error
	reads     int
	dropped   uint64
	undecoded uint64
	closed    bool
}

// NewMemoryPacketSource returns a source preloaded with recs.
func NewMemoryPacketSource(recs ...record.RawEventRecord) *MemoryPacketSource {
	return &MemoryPacketSource{records: recs}
}

// Push queues more records.
func (m *MemoryPacketSource) Push(recs ...record.RawEventRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, recs...)
}

// FailWith makes the next ReadBatch return err once the queue is empty.
func (m *MemoryPacketSource) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// ReadBatch implements PacketSource. It never blocks.
func (m *MemoryPacketSource) ReadBatch(ctx context.Context, max int) ([]record.RawEventRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++

	if len(m.records) == 0 {
		return nil, m.err
	}
	if max <= 0 || max > len(m.records) {
		max = len(m.records)
	}
	batch := append([]record.RawEventRecord(nil), m.records[:max]...)
	m.records = m.records[max:]
	return batch, nil
}

// Shed records n drops and u decode failures.
func (m *MemoryPacketSource) Shed(n, u uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped += n
	m.undecoded += u
}

// Dropped implements Dropper.
func (m *MemoryPacketSource) Dropped() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

// Undecoded implements DecodeCounter.
func (m *MemoryPacketSource) Undecoded() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.undecoded
}

// Pending returns the number of queued records.
func (m *MemoryPacketSource) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Reads returns the number of ReadBatch calls.
func (m *MemoryPacketSource) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

func (m *MemoryPacketSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MemoryPacketSource) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MemoryConnSource is an in-memory ConnSource.
type MemoryConnSource struct {
	mu      sync.Mutex
	records []record.RawEventRecord
	err     error
	closed  bool
}

// NewMemoryConnSource returns a source preloaded with recs.
func NewMemoryConnSource(recs ...record.RawEventRecord) *MemoryConnSource {
	return &MemoryConnSource{records: recs}
}

// Push queues more records.
func (m *MemoryConnSource) Push(recs ...record.RawEventRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, recs...)
}

// FailWith makes ReadOne return err once the queue is empty.
func (m *MemoryConnSource) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// ReadOne implements ConnSource.
func (m *MemoryConnSource) ReadOne() (record.RawEventRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.records) == 0 {
		return record.RawEventRecord{}, false, m.err
	}
	rec := m.records[0]
	m.records = m.records[1:]
	return rec, true, nil
}

// Pending returns the number of queued records.
func (m *MemoryConnSource) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *MemoryConnSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MemoryConnSource) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
