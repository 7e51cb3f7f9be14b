package nameindex

import (
	"net/netip"
	"slices"

	"github.com/cespare/xxhash/v2"
)

// EntryKind says what a zone entry names.
type EntryKind uint8

const (
	KindHost EntryKind = iota + 1
	KindNetwork
	KindFirewall
	KindBroadcast
)

func (k EntryKind) String() string {
	switch k {
	case KindHost:
		return "host"
	case KindNetwork:
		return "network"
	case KindFirewall:
		return "firewall"
	case KindBroadcast:
		return "broadcast"
	}
	return "unknown"
}

// ZoneEntry is the identity of an address or prefix.
type ZoneEntry struct {
	Prefix    netip.Prefix
	Name      string
	Kind      EntryKind
	Zone      string
	Network   string
	Interface string
	Broadcast bool
}

// HashPrefix hashes the 16-byte form of the address plus the prefix length.
func HashPrefix(p netip.Prefix) uint64 {
	var buf [17]byte
	a16 := p.Addr().As16()
	copy(buf[:16], a16[:])
	buf[16] = byte(p.Bits())
	return xxhash.Sum64(buf[:])
}

func equalPrefix(a, b netip.Prefix) bool { return a == b }

func normalize(p netip.Prefix) netip.Prefix {
	addr := p.Addr()
	bits := p.Bits()
	if addr.Is4In6() {
		addr = addr.Unmap()
		bits -= 96
		if bits < 0 {
			bits = 0
		}
	}
	return netip.PrefixFrom(addr, bits).Masked()
}

// ZoneTable resolves addresses to the most specific registered prefix.
type ZoneTable struct {
	t *Table[netip.Prefix, ZoneEntry]
	// registered prefix lengths per family, longest first
	lengths4 []int
	lengths6 []int
}

// NewZoneTable creates an empty zone table.
func NewZoneTable(bucketHint int) (*ZoneTable, error) {
	t, err := New[netip.Prefix, ZoneEntry](bucketHint, HashPrefix, equalPrefix)
	if err != nil {
		return nil, err
	}
	return &ZoneTable{t: t}, nil
}

// Insert adds e under its masked prefix.
func (z *ZoneTable) Insert(e ZoneEntry) {
	e.Prefix = normalize(e.Prefix)
	z.t.Insert(e.Prefix, e)

	lengths := &z.lengths6
	if e.Prefix.Addr().Is4() {
		lengths = &z.lengths4
	}
	if !slices.Contains(*lengths, e.Prefix.Bits()) {
		*lengths = append(*lengths, e.Prefix.Bits())
		slices.SortFunc(*lengths, func(a, b int) int { return b - a })
	}
}

// Lookup probes the exact host key first, then each registered prefix length
// from longest to shortest.
func (z *ZoneTable) Lookup(addr netip.Addr) (ZoneEntry, bool) {
	if !addr.IsValid() {
		return ZoneEntry{}, false
	}
	addr = addr.Unmap().WithZone("")

	full := addr.BitLen()
	if e, ok := z.t.Lookup(netip.PrefixFrom(addr, full)); ok {
		return e, true
	}

	lengths := z.lengths6
	if addr.Is4() {
		lengths = z.lengths4
	}
	for _, bits := range lengths {
		if bits == full {
			continue
		}
		p, err := addr.Prefix(bits)
		if err != nil {
			continue
		}
		if e, ok := z.t.Lookup(p); ok {
			return e, true
		}
	}
	return ZoneEntry{}, false
}

func (z *ZoneTable) Len() int                { return z.t.Len() }
func (z *ZoneTable) Buckets() int            { return z.t.Buckets() }
func (z *ZoneTable) ChainStats() ChainStats  { return z.t.ChainStats() }
func (z *ZoneTable) Each(fn func(ZoneEntry)) { z.t.Each(func(_ netip.Prefix, e ZoneEntry) { fn(e) }) }

// Destroy releases the table.
func (z *ZoneTable) Destroy() {
	z.t.Destroy()
	z.lengths4, z.lengths6 = nil, nil
}
