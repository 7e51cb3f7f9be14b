// Package record defines the event records that flow from the kernel sources
// through name resolution to the log sinks.
package record

import (
	"net/netip"
	"time"
)

// Origin says which kernel subsystem produced a record.
type Origin uint8

const (
	OriginPacketLog Origin = iota + 1
	OriginConntrack
)

func (o Origin) String() string {
	switch o {
	case OriginPacketLog:
		return "nflog"
	case OriginConntrack:
		return "conntrack"
	}
	return "unknown"
}

// RawEventRecord is one decoded kernel event before name resolution.
// It is passed by value and never modified after the source produces it.
type RawEventRecord struct {
	Origin    Origin
	Timestamp time.Time

	Src     netip.Addr
	Dst     netip.Addr
	SrcPort uint16
	DstPort uint16
	Proto   uint8

	ICMPType uint8
	ICMPCode uint8

	InDev  string
	OutDev string

	Action Action
	// Prefix is the free text of the log prefix after the action keyword.
	Prefix string

	Length uint16
	TTL    uint8
	// TCPFlags holds the flag letters (SYN, ACK...) for TCP packet-log records.
	TCPFlags string

	// Conntrack counters, both directions.
	Packets uint64
	Bytes   uint64
	// ConnID is the conntrack id; 0 for packet-log records.
	ConnID uint32
	Mark   uint32
}

// Status is the outcome of resolving one record.
type Status uint8

const (
	StatusInvalid Status = iota
	StatusResolved
	StatusPartiallyResolved
)

func (s Status) String() string {
	switch s {
	case StatusResolved:
		return "resolved"
	case StatusPartiallyResolved:
		return "partial"
	}
	return "invalid"
}

// NamedRecord is a raw record plus its resolved names.
type NamedRecord struct {
	Raw RawEventRecord

	SrcName     string
	DstName     string
	ServiceName string
	InIface     string
	OutIface    string
}
