package backend

import (
	"strconv"
	"strings"

	"grimm.is/scribe/internal/errors"
	"grimm.is/scribe/internal/record"
)

// ParsePortSpec parses one port entry of a service.
//
// For port protocols the forms are "80", "6000:6010" and "6000-6010". For ICMP
// the form is "type" or "type:code"; only the type is kept since the resolver
// looks ICMP up by type.
func ParsePortSpec(proto uint8, spec string) (PortRange, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return PortRange{}, errors.New(errors.KindValidation, "empty port spec")
	}

	if record.IsICMP(proto) {
		typ, _, _ := strings.Cut(spec, ":")
		n, err := strconv.ParseUint(strings.TrimSpace(typ), 10, 8)
		if err != nil {
			return PortRange{}, errors.Errorf(errors.KindValidation, "invalid icmp type %q", spec)
		}
		return PortRange{Proto: proto, Low: uint16(n), High: uint16(n)}, nil
	}

	if !record.HasPorts(proto) {
		return PortRange{}, errors.Errorf(errors.KindValidation,
			"protocol %s has no ports", record.ProtoName(proto))
	}

	lowS, highS, isRange := strings.Cut(spec, ":")
	if !isRange {
		lowS, highS, isRange = strings.Cut(spec, "-")
	}
	low, err := parsePort(lowS)
	if err != nil {
		return PortRange{}, errors.Wrapf(err, errors.KindValidation, "port spec %q", spec)
	}
	high := low
	if isRange {
		if high, err = parsePort(highS); err != nil {
			return PortRange{}, errors.Wrapf(err, errors.KindValidation, "port spec %q", spec)
		}
	}
	if low > high {
		return PortRange{}, errors.Errorf(errors.KindValidation, "port range %q is reversed", spec)
	}
	return PortRange{Proto: proto, Low: low, High: high}, nil
}

func parsePort(s string) (uint16, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, errors.New(errors.KindValidation, "port 0 is not a valid port")
	}
	return uint16(n), nil
}

// FormatPortSpec is the inverse of ParsePortSpec, used when exporting.
func FormatPortSpec(r PortRange) string {
	if r.Low == r.High {
		return strconv.Itoa(int(r.Low))
	}
	return strconv.Itoa(int(r.Low)) + ":" + strconv.Itoa(int(r.High))
}
