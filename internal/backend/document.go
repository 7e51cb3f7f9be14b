package backend

import (
	"fmt"
	"net/netip"
	"regexp"
	"strings"

	"grimm.is/scribe/internal/errors"
	"grimm.is/scribe/internal/record"
)

// Document is the on-disk form of the definitions, shared by every file
// format and by the SQLite import.
type Document struct {
	// BuiltinServices adds the builtin catalog for names the document does not define.
	BuiltinServices bool `hcl:"builtin_services,optional" json:"builtin_services,omitempty" yaml:"builtin_services,omitempty"`

	Interfaces []InterfaceDoc `hcl:"interface,block" json:"interfaces,omitempty" yaml:"interfaces,omitempty"`
	Zones      []ZoneDoc      `hcl:"zone,block" json:"zones,omitempty" yaml:"zones,omitempty"`
	Services   []ServiceDoc   `hcl:"service,block" json:"services,omitempty" yaml:"services,omitempty"`
}

type InterfaceDoc struct {
	Name     string `hcl:"name,label" json:"name" yaml:"name"`
	Device   string `hcl:"device" json:"device" yaml:"device"`
	Address  string `hcl:"address,optional" json:"address,omitempty" yaml:"address,omitempty"`
	Dynamic  bool   `hcl:"dynamic,optional" json:"dynamic,omitempty" yaml:"dynamic,omitempty"`
	Disabled bool   `hcl:"disabled,optional" json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

type ZoneDoc struct {
	Name     string       `hcl:"name,label" json:"name" yaml:"name"`
	Disabled bool         `hcl:"disabled,optional" json:"disabled,omitempty" yaml:"disabled,omitempty"`
	Networks []NetworkDoc `hcl:"network,block" json:"networks,omitempty" yaml:"networks,omitempty"`
}

type NetworkDoc struct {
	Name       string    `hcl:"name,label" json:"name" yaml:"name"`
	Network    string    `hcl:"network" json:"network" yaml:"network"`
	Interfaces []string  `hcl:"interfaces,optional" json:"interfaces,omitempty" yaml:"interfaces,omitempty"`
	Disabled   bool      `hcl:"disabled,optional" json:"disabled,omitempty" yaml:"disabled,omitempty"`
	Hosts      []HostDoc `hcl:"host,block" json:"hosts,omitempty" yaml:"hosts,omitempty"`
}

type HostDoc struct {
	Name     string `hcl:"name,label" json:"name" yaml:"name"`
	Address  string `hcl:"address" json:"address" yaml:"address"`
	Disabled bool   `hcl:"disabled,optional" json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

type ServiceDoc struct {
	Name      string   `hcl:"name,label" json:"name" yaml:"name"`
	TCP       []string `hcl:"tcp,optional" json:"tcp,omitempty" yaml:"tcp,omitempty"`
	UDP       []string `hcl:"udp,optional" json:"udp,omitempty" yaml:"udp,omitempty"`
	SCTP      []string `hcl:"sctp,optional" json:"sctp,omitempty" yaml:"sctp,omitempty"`
	ICMP      []string `hcl:"icmp,optional" json:"icmp,omitempty" yaml:"icmp,omitempty"`
	ICMPv6    []string `hcl:"icmpv6,optional" json:"icmpv6,omitempty" yaml:"icmpv6,omitempty"`
	Protocols []int    `hcl:"protocols,optional" json:"protocols,omitempty" yaml:"protocols,omitempty"`
	Disabled  bool     `hcl:"disabled,optional" json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// Names become parts of dotted display names, so dots are not allowed.
var nameRe = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_-]*$`)

func checkName(kind, name string) error {
	if !nameRe.MatchString(name) {
		return errors.Attr(errors.Errorf(errors.KindValidation, "invalid %s name %q", kind, name), kind, name)
	}
	return nil
}

// InterfaceList converts the enabled interfaces.
func (d *Document) InterfaceList() ([]Interface, error) {
	out := make([]Interface, 0, len(d.Interfaces))
	seen := map[string]bool{}
	for _, doc := range d.Interfaces {
		if err := checkName("interface", doc.Name); err != nil {
			return nil, err
		}
		if seen[doc.Name] {
			return nil, errors.Errorf(errors.KindValidation, "duplicate interface %q", doc.Name)
		}
		seen[doc.Name] = true
		if doc.Disabled {
			continue
		}
		if doc.Device == "" {
			return nil, errors.Errorf(errors.KindValidation, "interface %q has no device", doc.Name)
		}

		iface := Interface{Name: doc.Name, Device: doc.Device, Dynamic: doc.Dynamic}
		if doc.Address != "" && !doc.Dynamic {
			addr, err := netip.ParseAddr(doc.Address)
			if err != nil {
				return nil, errors.Wrapf(err, errors.KindValidation, "interface %q address", doc.Name)
			}
			iface.Addresses = []netip.Addr{addr.Unmap()}
		}
		out = append(out, iface)
	}
	return out, nil
}

// ZoneList converts the enabled zones, networks and hosts.
func (d *Document) ZoneList() ([]Zone, error) {
	out := make([]Zone, 0, len(d.Zones))
	seen := map[string]bool{}
	for _, zd := range d.Zones {
		if err := checkName("zone", zd.Name); err != nil {
			return nil, err
		}
		if seen[zd.Name] {
			return nil, errors.Errorf(errors.KindValidation, "duplicate zone %q", zd.Name)
		}
		seen[zd.Name] = true
		if zd.Disabled {
			continue
		}

		zone := Zone{Name: zd.Name}
		nets := map[string]bool{}
		for _, nd := range zd.Networks {
			if err := checkName("network", nd.Name); err != nil {
				return nil, err
			}
			if nets[nd.Name] {
				return nil, errors.Errorf(errors.KindValidation, "duplicate network %s.%s", nd.Name, zd.Name)
			}
			nets[nd.Name] = true
			if nd.Disabled {
				continue
			}
			n, err := nd.convert(zd.Name)
			if err != nil {
				return nil, err
			}
			zone.Networks = append(zone.Networks, n)
		}
		out = append(out, zone)
	}
	return out, nil
}

func (nd NetworkDoc) convert(zone string) (Network, error) {
	prefix, err := netip.ParsePrefix(nd.Network)
	if err != nil {
		return Network{}, errors.Attr(
			errors.Wrapf(err, errors.KindValidation, "network %s.%s", nd.Name, zone), "network", nd.Network)
	}
	if prefix.Addr().Is4In6() {
		prefix = netip.PrefixFrom(prefix.Addr().Unmap(), prefix.Bits()-96)
	}
	prefix = prefix.Masked()

	n := Network{Name: nd.Name, Prefix: prefix, Interfaces: nd.Interfaces}
	hosts := map[string]bool{}
	for _, hd := range nd.Hosts {
		if err := checkName("host", hd.Name); err != nil {
			return Network{}, err
		}
		if hosts[hd.Name] {
			return Network{}, errors.Errorf(errors.KindValidation, "duplicate host %s.%s.%s", hd.Name, nd.Name, zone)
		}
		hosts[hd.Name] = true
		if hd.Disabled {
			continue
		}
		addr, err := netip.ParseAddr(hd.Address)
		if err != nil {
			return Network{}, errors.Wrapf(err, errors.KindValidation, "host %s.%s.%s", hd.Name, nd.Name, zone)
		}
		addr = addr.Unmap()
		if !prefix.Contains(addr) {
			return Network{}, errors.Errorf(errors.KindValidation,
				"host %s.%s.%s address %s is outside %s", hd.Name, nd.Name, zone, addr, prefix)
		}
		n.Hosts = append(n.Hosts, Host{Name: hd.Name, Address: addr})
	}
	return n, nil
}

// ServiceList converts the enabled services, adding builtins when asked.
func (d *Document) ServiceList() ([]Service, error) {
	out := make([]Service, 0, len(d.Services))
	seen := map[string]bool{}
	for _, sd := range d.Services {
		if err := checkName("service", sd.Name); err != nil {
			return nil, err
		}
		if seen[sd.Name] {
			return nil, errors.Errorf(errors.KindValidation, "duplicate service %q", sd.Name)
		}
		seen[sd.Name] = true
		if sd.Disabled {
			continue
		}
		svc, err := sd.convert()
		if err != nil {
			return nil, err
		}
		out = append(out, svc)
	}

	if d.BuiltinServices {
		for _, svc := range BuiltinServices() {
			if !seen[svc.Name] {
				out = append(out, svc)
			}
		}
	}
	return out, nil
}

func (sd ServiceDoc) convert() (Service, error) {
	svc := Service{Name: sd.Name}
	for _, group := range []struct {
		proto uint8
		specs []string
	}{
		{record.ProtoTCP, sd.TCP},
		{record.ProtoUDP, sd.UDP},
		{record.ProtoSCTP, sd.SCTP},
		{record.ProtoICMP, sd.ICMP},
		{record.ProtoICMPv6, sd.ICMPv6},
	} {
		for _, spec := range group.specs {
			r, err := ParsePortSpec(group.proto, spec)
			if err != nil {
				return Service{}, errors.Attr(err, "service", sd.Name)
			}
			svc.Ports = append(svc.Ports, r)
		}
	}
	for _, p := range sd.Protocols {
		if p < 0 || p > 255 {
			return Service{}, errors.Errorf(errors.KindValidation, "service %q: protocol %d out of range", sd.Name, p)
		}
		proto := uint8(p)
		if record.HasPorts(proto) || record.IsICMP(proto) {
			return Service{}, errors.Errorf(errors.KindValidation,
				"service %q: use the %s attribute for protocol %d", sd.Name, record.ProtoName(proto), p)
		}
		svc.Ports = append(svc.Ports, PortRange{Proto: proto})
	}
	return svc, nil
}

// Definitions converts and validates the whole document.
func (d *Document) Definitions() (*Definitions, []string, error) {
	ifaces, err := d.InterfaceList()
	if err != nil {
		return nil, nil, err
	}
	zones, err := d.ZoneList()
	if err != nil {
		return nil, nil, err
	}
	services, err := d.ServiceList()
	if err != nil {
		return nil, nil, err
	}
	defs := &Definitions{Interfaces: ifaces, Zones: zones, Services: services}
	return defs, Check(defs), nil
}

// Check reports problems that do not prevent building an index: references
// to interfaces that are not defined, duplicate addresses that shadow each
// other, and services without ports.
func Check(defs *Definitions) []string {
	var warnings []string

	ifaces := map[string]bool{}
	for _, i := range defs.Interfaces {
		ifaces[i.Name] = true
	}

	owners := map[netip.Addr]string{}
	claim := func(addr netip.Addr, name string) {
		if prev, ok := owners[addr]; ok {
			warnings = append(warnings, fmt.Sprintf("%s shares address %s with %s", name, addr, prev))
			return
		}
		owners[addr] = name
	}

	for _, z := range defs.Zones {
		for _, n := range z.Networks {
			for _, ref := range n.Interfaces {
				if !ifaces[ref] {
					warnings = append(warnings,
						fmt.Sprintf("network %s.%s references unknown interface %q", n.Name, z.Name, ref))
				}
			}
			for _, h := range n.Hosts {
				claim(h.Address, strings.Join([]string{h.Name, n.Name, z.Name}, "."))
			}
		}
	}
	for _, i := range defs.Interfaces {
		for _, a := range i.Addresses {
			claim(a, "interface "+i.Name)
		}
	}
	for _, s := range defs.Services {
		if len(s.Ports) == 0 {
			warnings = append(warnings, fmt.Sprintf("service %q has no ports", s.Name))
		}
	}
	return warnings
}
