package nameindex

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"grimm.is/scribe/internal/backend"
)

// ServiceKey identifies a service by port and IP protocol.
type ServiceKey struct {
	Port  uint16
	Proto uint8
}

func (k ServiceKey) String() string { return fmt.Sprintf("%d/%d", k.Port, k.Proto) }

// HashService hashes the (port, protocol) tuple.
func HashService(k ServiceKey) uint64 {
	buf := [3]byte{byte(k.Port >> 8), byte(k.Port), k.Proto}
	return xxhash.Sum64(buf[:])
}

func equalService(a, b ServiceKey) bool { return a == b }

// ServiceTable maps (port, protocol) to a service name. Ranges are expanded.
type ServiceTable struct {
	t *Table[ServiceKey, string]
}

// NewServiceTable creates an empty service table.
func NewServiceTable(bucketHint int) (*ServiceTable, error) {
	t, err := New[ServiceKey, string](bucketHint, HashService, equalService)
	if err != nil {
		return nil, err
	}
	return &ServiceTable{t: t}, nil
}

// Insert adds one (port, protocol) entry.
func (s *ServiceTable) Insert(port uint16, proto uint8, name string) {
	s.t.Insert(ServiceKey{Port: port, Proto: proto}, name)
}

// InsertRange adds one entry per port of r.
func (s *ServiceTable) InsertRange(r backend.PortRange, name string) {
	for p := int(r.Low); p <= int(r.High); p++ {
		s.Insert(uint16(p), r.Proto, name)
	}
}

// Lookup returns the service name for (port, proto).
func (s *ServiceTable) Lookup(port uint16, proto uint8) (string, bool) {
	return s.t.Lookup(ServiceKey{Port: port, Proto: proto})
}

func (s *ServiceTable) Len() int               { return s.t.Len() }
func (s *ServiceTable) Buckets() int           { return s.t.Buckets() }
func (s *ServiceTable) ChainStats() ChainStats { return s.t.ChainStats() }
func (s *ServiceTable) Destroy()               { s.t.Destroy() }

// Each calls fn for every entry.
func (s *ServiceTable) Each(fn func(ServiceKey, string)) { s.t.Each(fn) }
