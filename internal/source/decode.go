package source

import (
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"

	"grimm.is/scribe/internal/errors"
	"grimm.is/scribe/internal/record"
)

// PacketMeta is what nflog reports alongside the payload.
type PacketMeta struct {
	Prefix    string
	InDev     string
	OutDev    string
	Timestamp time.Time
	Mark      uint32
}

// PacketRecord builds a packet-log record from nflog metadata and the raw
// network-layer payload. A payload that does not decode still yields a record
// carrying the prefix and devices so it is counted.
func PacketRecord(meta PacketMeta, payload []byte) (record.RawEventRecord, error) {
	action, rest := record.ParsePrefix(meta.Prefix)
	rec := record.RawEventRecord{
		Origin:    record.OriginPacketLog,
		Timestamp: meta.Timestamp,
		InDev:     meta.InDev,
		OutDev:    meta.OutDev,
		Action:    action,
		Prefix:    rest,
		Mark:      meta.Mark,
	}
	return rec, DecodePayload(payload, &rec)
}

// DecodePayload fills the network and transport fields of rec from an IPv4
// or IPv6 packet.
func DecodePayload(payload []byte, rec *record.RawEventRecord) error {
	if len(payload) == 0 {
		return errors.New(errors.KindValidation, "empty payload")
	}

	var first gopacket.LayerType
	switch payload[0] >> 4 {
	case 4:
		first = layers.LayerTypeIPv4
	case 6:
		first = layers.LayerTypeIPv6
	default:
		return errors.Errorf(errors.KindValidation, "unknown IP version %d", payload[0]>>4)
	}

	packet := gopacket.NewPacket(payload, first, gopacket.DecodeOptions{Lazy: true, NoCopy: true})

	switch ip := packet.NetworkLayer().(type) {
	case *layers.IPv4:
		rec.Src, _ = netip.AddrFromSlice(ip.SrcIP.To4())
		rec.Dst, _ = netip.AddrFromSlice(ip.DstIP.To4())
		rec.Proto = uint8(ip.Protocol)
		rec.TTL = ip.TTL
		rec.Length = ip.Length
	case *layers.IPv6:
		rec.Src, _ = netip.AddrFromSlice(ip.SrcIP.To16())
		rec.Dst, _ = netip.AddrFromSlice(ip.DstIP.To16())
		rec.Proto = uint8(ip.NextHeader)
		rec.TTL = ip.HopLimit
		rec.Length = ip.Length + 40
	default:
		if el := packet.ErrorLayer(); el != nil {
			return errors.Wrap(el.Error(), errors.KindValidation, "decode network layer")
		}
		return errors.New(errors.KindValidation, "no network layer")
	}

	if l := packet.Layer(layers.LayerTypeTCP); l != nil {
		tcp := l.(*layers.TCP)
		rec.SrcPort = uint16(tcp.SrcPort)
		rec.DstPort = uint16(tcp.DstPort)
		rec.TCPFlags = tcpFlags(tcp)
	} else if l := packet.Layer(layers.LayerTypeUDP); l != nil {
		udp := l.(*layers.UDP)
		rec.SrcPort = uint16(udp.SrcPort)
		rec.DstPort = uint16(udp.DstPort)
	} else if l := packet.Layer(layers.LayerTypeSCTP); l != nil {
		sctp := l.(*layers.SCTP)
		rec.SrcPort = uint16(sctp.SrcPort)
		rec.DstPort = uint16(sctp.DstPort)
	} else if l := packet.Layer(layers.LayerTypeICMPv4); l != nil {
		icmp := l.(*layers.ICMPv4)
		rec.ICMPType = icmp.TypeCode.Type()
		rec.ICMPCode = icmp.TypeCode.Code()
	} else if l := packet.Layer(layers.LayerTypeICMPv6); l != nil {
		icmp := l.(*layers.ICMPv6)
		rec.ICMPType = icmp.TypeCode.Type()
		rec.ICMPCode = icmp.TypeCode.Code()
	}
	return nil
}

func tcpFlags(tcp *layers.TCP) string {
	var b strings.Builder
	for _, f := range []struct {
		set  bool
		name string
	}{
		{tcp.SYN, "SYN"}, {tcp.ACK, "ACK"}, {tcp.FIN, "FIN"}, {tcp.RST, "RST"},
		{tcp.PSH, "PSH"}, {tcp.URG, "URG"},
	} {
		if f.set {
			if b.Len() > 0 {
				b.WriteByte(',')
			}
			b.WriteString(f.name)
		}
	}
	return b.String()
}

// ifindexName is the fallback device name when an index cannot be resolved.
func ifindexName(index uint32) string {
	return "if" + strconv.FormatUint(uint64(index), 10)
}
