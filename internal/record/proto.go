package record

import (
	"strconv"
	"strings"
)

// IP protocol numbers used by services and the resolver.
const (
	ProtoICMP   uint8 = 1
	ProtoTCP    uint8 = 6
	ProtoUDP    uint8 = 17
	ProtoGRE    uint8 = 47
	ProtoESP    uint8 = 50
	ProtoAH     uint8 = 51
	ProtoICMPv6 uint8 = 58
	ProtoSCTP   uint8 = 132
)

var protoNames = map[uint8]string{
	ProtoICMP:   "icmp",
	ProtoTCP:    "tcp",
	ProtoUDP:    "udp",
	ProtoGRE:    "gre",
	ProtoESP:    "esp",
	ProtoAH:     "ah",
	ProtoICMPv6: "icmpv6",
	ProtoSCTP:   "sctp",
}

// ProtoName returns the lowercase protocol name, or the decimal number when unknown.
func ProtoName(p uint8) string {
	if n, ok := protoNames[p]; ok {
		return n
	}
	return strconv.Itoa(int(p))
}

// ParseProto accepts a protocol name or a decimal number.
func ParseProto(s string) (uint8, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for num, name := range protoNames {
		if name == s {
			return num, true
		}
	}
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, false
	}
	return uint8(n), true
}

// HasPorts reports whether the protocol carries port numbers.
func HasPorts(p uint8) bool {
	switch p {
	case ProtoTCP, ProtoUDP, ProtoSCTP:
		return true
	}
	return false
}

// IsICMP reports whether the protocol is ICMP or ICMPv6.
func IsICMP(p uint8) bool {
	return p == ProtoICMP || p == ProtoICMPv6
}
