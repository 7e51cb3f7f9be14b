package nameindex

import (
	"net/netip"

	"grimm.is/scribe/internal/backend"
)

// GlobalBroadcast is the limited broadcast address, always present.
var GlobalBroadcast = netip.MustParseAddr("255.255.255.255")

// NetworkEntries returns one entry per host and per network, hosts first.
func NetworkEntries(zones []backend.Zone) []ZoneEntry {
	var hosts, nets []ZoneEntry
	for _, z := range zones {
		for _, n := range z.Networks {
			iface := ""
			if len(n.Interfaces) > 0 {
				iface = n.Interfaces[0]
			}
			for _, h := range n.Hosts {
				hosts = append(hosts, ZoneEntry{
					Prefix:    netip.PrefixFrom(h.Address, h.Address.BitLen()),
					Name:      h.Name + "." + n.Name + "." + z.Name,
					Kind:      KindHost,
					Zone:      z.Name,
					Network:   n.Name,
					Interface: iface,
				})
			}
			nets = append(nets, ZoneEntry{
				Prefix:    n.Prefix,
				Name:      n.Name + "." + z.Name,
				Kind:      KindNetwork,
				Zone:      z.Name,
				Network:   n.Name,
				Interface: iface,
			})
		}
	}
	return append(hosts, nets...)
}

// FirewallEntries returns a firewall(<iface>) entry for every address of every interface.
func FirewallEntries(ifaces []backend.Interface) []ZoneEntry {
	var out []ZoneEntry
	for _, i := range ifaces {
		for _, a := range i.Addresses {
			a = a.Unmap()
			out = append(out, ZoneEntry{
				Prefix:    netip.PrefixFrom(a, a.BitLen()),
				Name:      "firewall(" + i.Name + ")",
				Kind:      KindFirewall,
				Interface: i.Name,
			})
		}
	}
	return out
}

// BroadcastEntries returns the directed broadcast address of every IPv4
// network wide enough to have one, plus the global broadcast entry.
func BroadcastEntries(zones []backend.Zone) []ZoneEntry {
	var out []ZoneEntry
	for _, z := range zones {
		for _, n := range z.Networks {
			bcast, ok := broadcastAddr(n.Prefix)
			if !ok {
				continue
			}
			iface := ""
			if len(n.Interfaces) > 0 {
				iface = n.Interfaces[0]
			}
			out = append(out, ZoneEntry{
				Prefix:    netip.PrefixFrom(bcast, 32),
				Name:      n.Name + "." + z.Name + "(broadcast)",
				Kind:      KindBroadcast,
				Zone:      z.Name,
				Network:   n.Name,
				Interface: iface,
				Broadcast: true,
			})
		}
	}
	return append(out, ZoneEntry{
		Prefix:    netip.PrefixFrom(GlobalBroadcast, 32),
		Name:      "broadcast",
		Kind:      KindBroadcast,
		Broadcast: true,
	})
}

func broadcastAddr(p netip.Prefix) (netip.Addr, bool) {
	if !p.Addr().Is4() || p.Bits() >= 31 {
		return netip.Addr{}, false
	}
	a := p.Masked().Addr().As4()
	v := uint32(a[0])<<24 | uint32(a[1])<<16 | uint32(a[2])<<8 | uint32(a[3])
	v |= (1 << (32 - p.Bits())) - 1
	return netip.AddrFrom4([4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}), true
}

// ZoneEntries assembles every zone entry in insertion order: firewall
// addresses, hosts, broadcasts, then networks.
func ZoneEntries(zones []backend.Zone, ifaces []backend.Interface) []ZoneEntry {
	network := NetworkEntries(zones)
	var hosts, nets []ZoneEntry
	for _, e := range network {
		if e.Kind == KindHost {
			hosts = append(hosts, e)
		} else {
			nets = append(nets, e)
		}
	}

	out := FirewallEntries(ifaces)
	out = append(out, hosts...)
	out = append(out, BroadcastEntries(zones)...)
	return append(out, nets...)
}
