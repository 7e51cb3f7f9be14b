// Package resolver turns raw kernel records into named records.
package resolver

import (
	"net/netip"
	"strconv"

	"grimm.is/scribe/internal/nameindex"
	"grimm.is/scribe/internal/record"
)

// ZoneLookup resolves an address to its zone identity.
type ZoneLookup interface {
	Lookup(addr netip.Addr) (nameindex.ZoneEntry, bool)
}

// ServiceLookup resolves a (port, protocol) pair to a service name.
type ServiceLookup interface {
	Lookup(port uint16, proto uint8) (string, bool)
}

// DeviceLookup maps a kernel device to a configured interface name.
type DeviceLookup interface {
	Interface(device string) (string, bool)
}

// Resolve names the endpoints, service and devices of raw. It has no side
// effects. A record without an action is Invalid. Misses are rendered
// literally and make the record PartiallyResolved; device misses do not.
func Resolve(raw record.RawEventRecord, zones ZoneLookup, services ServiceLookup, devices DeviceLookup) (record.Status, record.NamedRecord) {
	named := record.NamedRecord{Raw: raw}
	if !raw.Action.Valid() {
		return record.StatusInvalid, named
	}

	complete := true

	var ok bool
	if named.SrcName, ok = addrName(raw.Src, zones); !ok {
		complete = false
	}
	if named.DstName, ok = addrName(raw.Dst, zones); !ok {
		complete = false
	}

	port := ServicePort(raw)
	if name, found := lookupService(services, port, raw.Proto); found {
		named.ServiceName = name
	} else {
		named.ServiceName = strconv.Itoa(int(port)) + "/" + record.ProtoName(raw.Proto)
		complete = false
	}

	named.InIface = deviceName(raw.InDev, devices)
	named.OutIface = deviceName(raw.OutDev, devices)

	if complete {
		return record.StatusResolved, named
	}
	return record.StatusPartiallyResolved, named
}

// ResolveIndex resolves against a built index.
func ResolveIndex(raw record.RawEventRecord, idx *nameindex.Index) (record.Status, record.NamedRecord) {
	return Resolve(raw, idx.Zones, idx.Services, idx)
}

// ServicePort is the port used for the service lookup: the destination port
// for port protocols, the ICMP type for ICMP, and 0 otherwise.
func ServicePort(raw record.RawEventRecord) uint16 {
	switch {
	case record.HasPorts(raw.Proto):
		return raw.DstPort
	case record.IsICMP(raw.Proto):
		return uint16(raw.ICMPType)
	}
	return 0
}

func addrName(addr netip.Addr, zones ZoneLookup) (string, bool) {
	if zones != nil {
		if e, ok := zones.Lookup(addr); ok {
			return e.Name, true
		}
	}
	if !addr.IsValid() {
		return "", false
	}
	return addr.Unmap().String(), false
}

func lookupService(services ServiceLookup, port uint16, proto uint8) (string, bool) {
	if services == nil {
		return "", false
	}
	return services.Lookup(port, proto)
}

func deviceName(dev string, devices DeviceLookup) string {
	if dev == "" || devices == nil {
		return dev
	}
	if name, ok := devices.Interface(dev); ok {
		return name
	}
	return dev
}
