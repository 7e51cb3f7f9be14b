// Package backend loads interface, zone and service definitions.
//
// Two backends exist: a definitions file (HCL, JSON or YAML by extension) and a
// SQLite database. Both decode into a Document and share its conversion and
// validation, so the daemon sees identical entities whichever one it reads.
// Disabled entities are dropped on read.
package backend

import (
	"fmt"
	"net/netip"

	"grimm.is/scribe/internal/record"
)

// Interface is a firewall interface: a named device with its own addresses.
type Interface struct {
	Name   string
	Device string
	// Addresses are the static addresses, or the live ones once a dynamic
	// interface has been resolved.
	Addresses []netip.Addr
	Dynamic   bool
}

// Zone groups networks.
type Zone struct {
	Name     string
	Networks []Network
}

// Network is an address prefix inside a zone.
type Network struct {
	Name       string
	Prefix     netip.Prefix
	Interfaces []string
	Hosts      []Host
}

// Host is a single named address inside a network.
type Host struct {
	Name    string
	Address netip.Addr
}

// PortRange is an inclusive port range for one protocol. For ICMP the range
// holds the ICMP type. Protocols without ports use 0-0.
type PortRange struct {
	Proto uint8
	Low   uint16
	High  uint16
}

func (r PortRange) String() string {
	name := record.ProtoName(r.Proto)
	switch {
	case !record.HasPorts(r.Proto) && !record.IsICMP(r.Proto):
		return name
	case r.Low == r.High:
		return fmt.Sprintf("%d/%s", r.Low, name)
	default:
		return fmt.Sprintf("%d-%d/%s", r.Low, r.High, name)
	}
}

// Len is the number of ports in the range.
func (r PortRange) Len() int {
	return int(r.High) - int(r.Low) + 1
}

// Service names a set of port ranges.
type Service struct {
	Name  string
	Ports []PortRange
}

// Definitions is the full set of entities read from a backend.
type Definitions struct {
	Interfaces []Interface
	Zones      []Zone
	Services   []Service
}
