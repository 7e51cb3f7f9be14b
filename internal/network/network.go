package network

import (
	"net/netip"
	"strconv"
	"sync"

	"github.com/vishvananda/netlink"

	"grimm.is/scribe/internal/backend"
	"grimm.is/scribe/internal/errors"
	"grimm.is/scribe/internal/logging"
)

// Netlinker is the subset of netlink scribe uses.
type Netlinker interface {
	LinkByName(name string) (netlink.Link, error)
	LinkByIndex(index int) (netlink.Link, error)
	AddrList(link netlink.Link, family int) ([]netlink.Addr, error)
}

// Host answers address and device-name questions about the local machine.
type Host struct {
	nl     Netlinker
	logger *logging.Logger

	mu    sync.RWMutex
	names map[uint32]string
}

// NewHost returns a Host over nl. A nil nl uses DefaultNetlinker.
func NewHost(nl Netlinker) *Host {
	if nl == nil {
		nl = DefaultNetlinker
	}
	return &Host{
		nl:     nl,
		logger: logging.WithComponent("network"),
		names:  make(map[uint32]string),
	}
}

// Addresses returns every address configured on device, IPv4 first as the
// kernel reports them. Link-local IPv6 addresses are skipped.
func (h *Host) Addresses(device string) ([]netip.Addr, error) {
	link, err := h.nl.LinkByName(device)
	if err != nil {
		return nil, errors.Attr(errors.Wrap(err, errors.KindNotFound, "interface not found"), "device", device)
	}
	addrs, err := h.nl.AddrList(link, netlink.FAMILY_ALL)
	if err != nil {
		return nil, errors.Attr(errors.Wrap(err, errors.KindIO, "failed to list addresses"), "device", device)
	}

	out := make([]netip.Addr, 0, len(addrs))
	for _, a := range addrs {
		if a.IPNet == nil {
			continue
		}
		ip, ok := netip.AddrFromSlice(a.IPNet.IP)
		if !ok {
			continue
		}
		ip = ip.Unmap()
		if ip.Is6() && ip.IsLinkLocalUnicast() {
			continue
		}
		out = append(out, ip)
	}
	return out, nil
}

// ResolveDynamic replaces the addresses of dynamic interfaces with what the
// device currently carries. A missing device or one without addresses is
// treated as down: the interface gets no addresses and so no firewall
// pseudo-zone until a later reload finds it up. Only a failure to list
// addresses is an error.
func (h *Host) ResolveDynamic(ifaces []backend.Interface) error {
	for i := range ifaces {
		iface := &ifaces[i]
		if !iface.Dynamic {
			continue
		}
		addrs, err := h.Addresses(iface.Device)
		if err != nil && errors.GetKind(err) != errors.KindNotFound {
			return errors.Attr(err, "interface", iface.Name)
		}
		if len(addrs) == 0 {
			iface.Addresses = nil
			h.logger.Warn("dynamic interface is down, skipping its addresses", "interface", iface.Name, "device", iface.Device)
			continue
		}
		iface.Addresses = addrs
		h.logger.Debug("resolved dynamic interface", "interface", iface.Name, "device", iface.Device, "addresses", len(addrs))
	}
	return nil
}

// DeviceName returns the device name for a kernel interface index. Names are
// cached; an index the kernel does not know yields "if<index>".
func (h *Host) DeviceName(index uint32) string {
	if index == 0 {
		return ""
	}

	h.mu.RLock()
	name, ok := h.names[index]
	h.mu.RUnlock()
	if ok {
		return name
	}

	link, err := h.nl.LinkByIndex(int(index))
	if err != nil || link == nil {
		return fallbackName(index)
	}
	name = link.Attrs().Name

	h.mu.Lock()
	h.names[index] = name
	h.mu.Unlock()
	return name
}

// Forget drops the cached device names. Indexes can be reused after an
// interface is recreated.
func (h *Host) Forget() {
	h.mu.Lock()
	h.names = make(map[uint32]string)
	h.mu.Unlock()
}

func fallbackName(index uint32) string {
	return "if" + strconv.FormatUint(uint64(index), 10)
}
