//go:build linux

package network

import "github.com/vishvananda/netlink"

// DefaultNetlinker talks to the running kernel.
var DefaultNetlinker Netlinker = &RealNetlinker{}

// RealNetlinker implements Netlinker with the netlink package.
type RealNetlinker struct{}

func (r *RealNetlinker) LinkByName(name string) (netlink.Link, error) {
	return netlink.LinkByName(name)
}

func (r *RealNetlinker) LinkByIndex(index int) (netlink.Link, error) {
	return netlink.LinkByIndex(index)
}

func (r *RealNetlinker) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	return netlink.AddrList(link, family)
}
