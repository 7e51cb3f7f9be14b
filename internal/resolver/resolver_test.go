package resolver

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/scribe/internal/backend"
	"grimm.is/scribe/internal/nameindex"
	"grimm.is/scribe/internal/record"
)

func testIndex(t *testing.T) *nameindex.Index {
	t.Helper()
	idx, err := nameindex.BuildDefinitions(&backend.Definitions{
		Interfaces: []backend.Interface{
			{Name: "lan", Device: "eth1", Addresses: []netip.Addr{netip.MustParseAddr("192.168.1.1")}},
			{Name: "wan", Device: "eth0"},
		},
		Zones: []backend.Zone{{Name: "lan", Networks: []backend.Network{{
			Name:       "office",
			Prefix:     netip.MustParsePrefix("192.168.1.0/24"),
			Interfaces: []string{"lan"},
			Hosts:      []backend.Host{{Name: "web", Address: netip.MustParseAddr("192.168.1.10")}},
		}}}},
		Services: []backend.Service{
			{Name: "http", Ports: []backend.PortRange{{Proto: record.ProtoTCP, Low: 80, High: 80}}},
			{Name: "ping", Ports: []backend.PortRange{{Proto: record.ProtoICMP, Low: 8, High: 8}}},
			{Name: "gre", Ports: []backend.PortRange{{Proto: record.ProtoGRE}}},
		},
	})
	require.NoError(t, err)
	return idx
}

func TestResolveFull(t *testing.T) {
	idx := testIndex(t)
	raw := record.RawEventRecord{
		Origin:  record.OriginPacketLog,
		Src:     netip.MustParseAddr("192.168.1.50"),
		Dst:     netip.MustParseAddr("192.168.1.10"),
		SrcPort: 40000,
		DstPort: 80,
		Proto:   record.ProtoTCP,
		InDev:   "eth1",
		OutDev:  "eth1",
		Action:  record.ActionAccept,
	}

	status, named := ResolveIndex(raw, idx)
	assert.Equal(t, record.StatusResolved, status)
	assert.Equal(t, "office.lan", named.SrcName)
	assert.Equal(t, "web.office.lan", named.DstName)
	assert.Equal(t, "http", named.ServiceName)
	assert.Equal(t, "lan", named.InIface)
	assert.Equal(t, raw, named.Raw)
}

func TestResolveUnknownSource(t *testing.T) {
	idx := testIndex(t)
	raw := record.RawEventRecord{
		Src:     netip.MustParseAddr("198.51.100.4"),
		Dst:     netip.MustParseAddr("192.168.1.1"),
		DstPort: 80,
		Proto:   record.ProtoTCP,
		InDev:   "ppp0",
		Action:  record.ActionDrop,
	}

	status, named := ResolveIndex(raw, idx)
	assert.Equal(t, record.StatusPartiallyResolved, status)
	assert.Equal(t, "198.51.100.4", named.SrcName)
	assert.Equal(t, "firewall(lan)", named.DstName)
	assert.Equal(t, "ppp0", named.InIface, "unknown device kept literally")
}

func TestResolveUnknownService(t *testing.T) {
	idx := testIndex(t)
	raw := record.RawEventRecord{
		Src:     netip.MustParseAddr("192.168.1.10"),
		Dst:     netip.MustParseAddr("192.168.1.20"),
		DstPort: 8443,
		Proto:   record.ProtoUDP,
		Action:  record.ActionReject,
	}

	status, named := ResolveIndex(raw, idx)
	assert.Equal(t, record.StatusPartiallyResolved, status)
	assert.Equal(t, "8443/udp", named.ServiceName)
}

func TestResolveICMPAndPortless(t *testing.T) {
	idx := testIndex(t)
	base := record.RawEventRecord{
		Src:    netip.MustParseAddr("192.168.1.10"),
		Dst:    netip.MustParseAddr("192.168.1.1"),
		Action: record.ActionAccept,
	}

	icmp := base
	icmp.Proto = record.ProtoICMP
	icmp.ICMPType = 8
	icmp.DstPort = 999 // ignored for icmp
	status, named := ResolveIndex(icmp, idx)
	assert.Equal(t, record.StatusResolved, status)
	assert.Equal(t, "ping", named.ServiceName)

	gre := base
	gre.Proto = record.ProtoGRE
	gre.DstPort = 1234
	status, named = ResolveIndex(gre, idx)
	assert.Equal(t, record.StatusResolved, status)
	assert.Equal(t, "gre", named.ServiceName)

	esp := base
	esp.Proto = record.ProtoESP
	_, named = ResolveIndex(esp, idx)
	assert.Equal(t, "0/esp", named.ServiceName)
}

func TestResolveInvalid(t *testing.T) {
	idx := testIndex(t)
	raw := record.RawEventRecord{
		Src:     netip.MustParseAddr("192.168.1.10"),
		Dst:     netip.MustParseAddr("192.168.1.10"),
		DstPort: 80,
		Proto:   record.ProtoTCP,
	}
	status, _ := ResolveIndex(raw, idx)
	assert.Equal(t, record.StatusInvalid, status)
}

func TestValidActionNeverInvalid(t *testing.T) {
	idx := testIndex(t)
	for _, a := range record.Actions() {
		raw := record.RawEventRecord{Action: a, Proto: 250}
		status, _ := ResolveIndex(raw, idx)
		assert.NotEqual(t, record.StatusInvalid, status, a.String())
	}
}

func TestResolveNilLookups(t *testing.T) {
	raw := record.RawEventRecord{
		Src:     netip.MustParseAddr("10.0.0.1"),
		Dst:     netip.MustParseAddr("10.0.0.2"),
		DstPort: 22,
		Proto:   record.ProtoTCP,
		InDev:   "eth0",
		Action:  record.ActionLog,
	}
	status, named := Resolve(raw, nil, nil, nil)
	assert.Equal(t, record.StatusPartiallyResolved, status)
	assert.Equal(t, "10.0.0.1", named.SrcName)
	assert.Equal(t, "22/tcp", named.ServiceName)
	assert.Equal(t, "eth0", named.InIface)
}
