// Package network reads the host's own interfaces through netlink.
//
// scribe never configures the network. It needs two things from the kernel:
// the current addresses of interfaces marked dynamic in the definitions, and
// the device name behind an interface index reported by nflog.
//
// All netlink access goes through [Netlinker] so the lookups can be tested
// with [MockNetlinker].
package network
