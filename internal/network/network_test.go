package network

import (
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"

	"grimm.is/scribe/internal/backend"
	"grimm.is/scribe/internal/errors"
)

func dummy(name string, index int) *netlink.Dummy {
	return &netlink.Dummy{LinkAttrs: netlink.LinkAttrs{Name: name, Index: index}}
}

func addr(t *testing.T, cidr string) netlink.Addr {
	t.Helper()
	ip, ipnet, err := net.ParseCIDR(cidr)
	require.NoError(t, err)
	ipnet.IP = ip
	return netlink.Addr{IPNet: ipnet}
}

func TestHost_Addresses(t *testing.T) {
	nl := new(MockNetlinker)
	link := dummy("eth1", 3)
	nl.On("LinkByName", "eth1").Return(link, nil)
	nl.On("AddrList", link, netlink.FAMILY_ALL).Return([]netlink.Addr{
		addr(t, "203.0.113.9/24"),
		addr(t, "fe80::1/64"),
		addr(t, "2001:db8::9/64"),
		{},
	}, nil)

	got, err := NewHost(nl).Addresses("eth1")
	require.NoError(t, err)
	assert.Equal(t, []netip.Addr{
		netip.MustParseAddr("203.0.113.9"),
		netip.MustParseAddr("2001:db8::9"),
	}, got)
	nl.AssertExpectations(t)
}

func TestHost_AddressesUnknownDevice(t *testing.T) {
	nl := new(MockNetlinker)
	nl.On("LinkByName", "nope").Return(nil, errors.New(errors.KindNotFound, "link not found"))

	_, err := NewHost(nl).Addresses("nope")
	require.Error(t, err)
	assert.Equal(t, errors.KindNotFound, errors.GetKind(err))
	assert.Equal(t, "nope", errors.GetAttributes(err)["device"])
}

func TestHost_ResolveDynamic(t *testing.T) {
	nl := new(MockNetlinker)
	wan := dummy("ppp0", 7)
	nl.On("LinkByName", "ppp0").Return(wan, nil)
	nl.On("AddrList", wan, netlink.FAMILY_ALL).Return([]netlink.Addr{addr(t, "198.51.100.2/32")}, nil)

	ifaces := []backend.Interface{
		{Name: "lan", Device: "eth0", Addresses: []netip.Addr{netip.MustParseAddr("10.0.0.1")}},
		{Name: "wan", Device: "ppp0", Dynamic: true},
	}
	require.NoError(t, NewHost(nl).ResolveDynamic(ifaces))

	assert.Equal(t, []netip.Addr{netip.MustParseAddr("10.0.0.1")}, ifaces[0].Addresses)
	assert.Equal(t, []netip.Addr{netip.MustParseAddr("198.51.100.2")}, ifaces[1].Addresses)
	nl.AssertNotCalled(t, "LinkByName", "eth0")
}

func TestHost_ResolveDynamicDown(t *testing.T) {
	tests := []struct {
		name  string
		setup func(nl *MockNetlinker)
	}{
		{"no address", func(nl *MockNetlinker) {
			wan := dummy("ppp0", 7)
			nl.On("LinkByName", "ppp0").Return(wan, nil)
			nl.On("AddrList", wan, netlink.FAMILY_ALL).Return([]netlink.Addr{}, nil)
		}},
		{"no device", func(nl *MockNetlinker) {
			nl.On("LinkByName", "ppp0").Return(nil, errors.New(errors.KindNotFound, "link not found"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nl := new(MockNetlinker)
			tt.setup(nl)
			ifaces := []backend.Interface{{
				Name: "wan", Device: "ppp0", Dynamic: true,
				Addresses: []netip.Addr{netip.MustParseAddr("198.51.100.2")},
			}}

			require.NoError(t, NewHost(nl).ResolveDynamic(ifaces))
			assert.Empty(t, ifaces[0].Addresses, "stale addresses are dropped")
		})
	}
}

func TestHost_ResolveDynamicListFailure(t *testing.T) {
	nl := new(MockNetlinker)
	wan := dummy("ppp0", 7)
	nl.On("LinkByName", "ppp0").Return(wan, nil)
	nl.On("AddrList", wan, netlink.FAMILY_ALL).Return(nil, errors.New(errors.KindIO, "netlink dump interrupted"))

	err := NewHost(nl).ResolveDynamic([]backend.Interface{{Name: "wan", Device: "ppp0", Dynamic: true}})
	require.Error(t, err)
	assert.Equal(t, errors.KindIO, errors.GetKind(err))
	assert.Equal(t, "wan", errors.GetAttributes(err)["interface"])
}

func TestHost_DeviceName(t *testing.T) {
	nl := new(MockNetlinker)
	nl.On("LinkByIndex", 2).Return(dummy("eth0", 2), nil).Once()
	nl.On("LinkByIndex", 9).Return(nil, errors.New(errors.KindNotFound, "link not found"))

	h := NewHost(nl)
	assert.Equal(t, "eth0", h.DeviceName(2))
	assert.Equal(t, "eth0", h.DeviceName(2), "second lookup is cached")
	assert.Equal(t, "if9", h.DeviceName(9))
	assert.Equal(t, "", h.DeviceName(0))
	nl.AssertNumberOfCalls(t, "LinkByIndex", 2)

	h.Forget()
	nl.On("LinkByIndex", 2).Return(dummy("lan0", 2), nil).Once()
	assert.Equal(t, "lan0", h.DeviceName(2))
}
