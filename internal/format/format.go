// Package format renders resolved records as log lines.
//
// Lines are single-line text terminated by a newline. Fields that come from
// the kernel (devices, prefix text) are quoted when they contain spaces.
package format

import (
	"net/netip"
	"strconv"
	"strings"
	"time"

	"grimm.is/scribe/internal/record"
)

// TimeLayout is the syslog-style stamp that starts every line.
const TimeLayout = "Jan _2 15:04:05"

// Traffic renders a packet-log record:
//
//	Mar  1 12:00:00: DROP service ssh from pc.lan.office to firewall(eth0), prefix: "lan-in", in: lan, (10.0.0.5:51000 -> 10.0.0.1:22 TCP flags: SYN len:60 ttl:64)
func Traffic(nr record.NamedRecord) string {
	raw := nr.Raw
	var b strings.Builder
	b.Grow(160)

	writeHead(&b, nr)

	if raw.Prefix != "" {
		b.WriteString(", prefix: ")
		b.WriteString(strconv.Quote(raw.Prefix))
	}
	if nr.InIface != "" {
		b.WriteString(", in: ")
		b.WriteString(quoteSpace(nr.InIface))
	}
	if nr.OutIface != "" {
		b.WriteString(", out: ")
		b.WriteString(quoteSpace(nr.OutIface))
	}

	b.WriteString(", (")
	writeTuple(&b, raw)
	if raw.TCPFlags != "" {
		b.WriteString(" flags: ")
		b.WriteString(raw.TCPFlags)
	}
	if raw.Length > 0 {
		b.WriteString(" len:")
		b.WriteString(strconv.FormatUint(uint64(raw.Length), 10))
	}
	if raw.TTL > 0 {
		b.WriteString(" ttl:")
		b.WriteString(strconv.FormatUint(uint64(raw.TTL), 10))
	}
	b.WriteString(")\n")
	return b.String()
}

// Connection renders a conntrack record. The new-connection log and the
// all-connections log share this layout:
//
//	Mar  1 12:00:00: DESTROY service https from pc.lan.office to 198.51.100.7 (10.0.0.5:40000 -> 198.51.100.7:443 TCP id:99 packets:5 bytes:1500)
func Connection(nr record.NamedRecord) string {
	raw := nr.Raw
	var b strings.Builder
	b.Grow(140)

	writeHead(&b, nr)

	b.WriteString(" (")
	writeTuple(&b, raw)
	b.WriteString(" id:")
	b.WriteString(strconv.FormatUint(uint64(raw.ConnID), 10))
	if raw.Mark != 0 {
		b.WriteString(" mark:")
		b.WriteString(strconv.FormatUint(uint64(raw.Mark), 10))
	}
	if raw.Action != record.ActionConnNew {
		b.WriteString(" packets:")
		b.WriteString(strconv.FormatUint(raw.Packets, 10))
		b.WriteString(" bytes:")
		b.WriteString(strconv.FormatUint(raw.Bytes, 10))
	}
	b.WriteString(")\n")
	return b.String()
}

func writeHead(b *strings.Builder, nr record.NamedRecord) {
	b.WriteString(stamp(nr.Raw.Timestamp))
	b.WriteString(": ")
	b.WriteString(nr.Raw.Action.String())
	b.WriteString(" service ")
	b.WriteString(nr.ServiceName)
	b.WriteString(" from ")
	b.WriteString(nr.SrcName)
	b.WriteString(" to ")
	b.WriteString(nr.DstName)
}

func writeTuple(b *strings.Builder, raw record.RawEventRecord) {
	hasPorts := record.HasPorts(raw.Proto)
	b.WriteString(endpoint(raw.Src, raw.SrcPort, hasPorts))
	b.WriteString(" -> ")
	b.WriteString(endpoint(raw.Dst, raw.DstPort, hasPorts))
	b.WriteByte(' ')
	b.WriteString(strings.ToUpper(record.ProtoName(raw.Proto)))
	if record.IsICMP(raw.Proto) {
		b.WriteString(" type:")
		b.WriteString(strconv.Itoa(int(raw.ICMPType)))
		b.WriteString(" code:")
		b.WriteString(strconv.Itoa(int(raw.ICMPCode)))
	}
}

func endpoint(addr netip.Addr, port uint16, withPort bool) string {
	if !addr.IsValid() {
		return "?"
	}
	if !withPort {
		return addr.String()
	}
	return netip.AddrPortFrom(addr, port).String()
}

func stamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.Format(TimeLayout)
}

func quoteSpace(s string) string {
	if strings.ContainsAny(s, " \t\"") {
		return strconv.Quote(s)
	}
	return s
}
