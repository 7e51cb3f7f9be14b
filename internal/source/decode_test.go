package source

import (
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/scribe/internal/record"
)

func serialize(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ls...))
	return buf.Bytes()
}

func ipv4(proto layers.IPProtocol) *layers.IPv4 {
	return &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: proto,
		SrcIP:    net.IPv4(10, 0, 0, 5),
		DstIP:    net.IPv4(192, 168, 1, 10),
	}
}

func TestDecodePayload_TCP(t *testing.T) {
	ip := ipv4(layers.IPProtocolTCP)
	tcp := &layers.TCP{SrcPort: 51000, DstPort: 22, SYN: true, ACK: true, Window: 1024}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

	var rec record.RawEventRecord
	require.NoError(t, DecodePayload(serialize(t, ip, tcp), &rec))

	assert.Equal(t, netip.MustParseAddr("10.0.0.5"), rec.Src)
	assert.Equal(t, netip.MustParseAddr("192.168.1.10"), rec.Dst)
	assert.Equal(t, uint8(record.ProtoTCP), rec.Proto)
	assert.Equal(t, uint16(51000), rec.SrcPort)
	assert.Equal(t, uint16(22), rec.DstPort)
	assert.Equal(t, uint8(64), rec.TTL)
	assert.Equal(t, uint16(40), rec.Length)
	assert.Equal(t, "SYN,ACK", rec.TCPFlags)
}

func TestDecodePayload_UDP(t *testing.T) {
	ip := ipv4(layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: 40000, DstPort: 53}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	var rec record.RawEventRecord
	require.NoError(t, DecodePayload(serialize(t, ip, udp, gopacket.Payload([]byte("query"))), &rec))

	assert.Equal(t, uint8(record.ProtoUDP), rec.Proto)
	assert.Equal(t, uint16(53), rec.DstPort)
	assert.Empty(t, rec.TCPFlags)
}

func TestDecodePayload_ICMP(t *testing.T) {
	ip := ipv4(layers.IPProtocolICMPv4)
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0), Id: 1, Seq: 1}

	var rec record.RawEventRecord
	require.NoError(t, DecodePayload(serialize(t, ip, icmp), &rec))

	assert.Equal(t, uint8(record.ProtoICMP), rec.Proto)
	assert.Equal(t, uint8(8), rec.ICMPType)
	assert.Equal(t, uint8(0), rec.ICMPCode)
	assert.Zero(t, rec.DstPort)
}

func TestDecodePayload_IPv6(t *testing.T) {
	ip := &layers.IPv6{
		Version:    6,
		HopLimit:   255,
		NextHeader: layers.IPProtocolUDP,
		SrcIP:      net.ParseIP("2001:db8::1"),
		DstIP:      net.ParseIP("2001:db8::2"),
	}
	udp := &layers.UDP{SrcPort: 546, DstPort: 547}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	var rec record.RawEventRecord
	require.NoError(t, DecodePayload(serialize(t, ip, udp), &rec))

	assert.Equal(t, netip.MustParseAddr("2001:db8::1"), rec.Src)
	assert.Equal(t, uint8(255), rec.TTL)
	assert.Equal(t, uint16(547), rec.DstPort)
	assert.Equal(t, uint16(48), rec.Length)
}

func TestDecodePayload_Invalid(t *testing.T) {
	var rec record.RawEventRecord
	assert.Error(t, DecodePayload(nil, &rec))
	assert.Error(t, DecodePayload([]byte{0x20, 0, 0}, &rec))
}

func TestPacketRecord(t *testing.T) {
	ip := ipv4(layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: 123, DstPort: 123}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec, err := PacketRecord(PacketMeta{
		Prefix:    "fw: DROP ntp in",
		InDev:     "eth0",
		Timestamp: ts,
		Mark:      7,
	}, serialize(t, ip, udp))
	require.NoError(t, err)

	assert.Equal(t, record.OriginPacketLog, rec.Origin)
	assert.Equal(t, record.ActionDrop, rec.Action)
	assert.Equal(t, "eth0", rec.InDev)
	assert.Equal(t, ts, rec.Timestamp)
	assert.Equal(t, uint32(7), rec.Mark)
	assert.Equal(t, uint16(123), rec.DstPort)

	t.Run("undecodable payload keeps metadata", func(t *testing.T) {
		rec, err := PacketRecord(PacketMeta{Prefix: "ACCEPT", OutDev: "eth1"}, []byte{0xff})
		assert.Error(t, err)
		assert.Equal(t, record.ActionAccept, rec.Action)
		assert.Equal(t, "eth1", rec.OutDev)
	})
}

func TestIfindexName(t *testing.T) {
	assert.Equal(t, "if3", ifindexName(3))
}
