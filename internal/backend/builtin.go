package backend

import "sort"

// builtinServices is the catalog enabled by builtin_services = true.
var builtinServices = map[string]ServiceDoc{
	"dns":        {TCP: []string{"53"}, UDP: []string{"53"}},
	"ntp":        {UDP: []string{"123"}},
	"ssh":        {TCP: []string{"22"}},
	"ping":       {ICMP: []string{"8", "0"}, ICMPv6: []string{"128", "129"}},
	"snmp":       {UDP: []string{"161"}},
	"syslog":     {UDP: []string{"514"}},
	"http":       {TCP: []string{"80"}},
	"https":      {TCP: []string{"443"}, UDP: []string{"443"}},
	"dhcp":       {UDP: []string{"67:68"}},
	"mdns":       {UDP: []string{"5353"}},
	"ftp":        {TCP: []string{"21"}},
	"tftp":       {UDP: []string{"69"}},
	"sip":        {UDP: []string{"5060"}, TCP: []string{"5060"}},
	"h323":       {TCP: []string{"1720"}},
	"pptp":       {TCP: []string{"1723"}, Protocols: []int{47}},
	"irc":        {TCP: []string{"6667"}},
	"amanda":     {UDP: []string{"10080"}},
	"netbios-ns": {UDP: []string{"137"}},
	"ipsec":      {UDP: []string{"500", "4500"}, Protocols: []int{50, 51}},
	"wireguard":  {UDP: []string{"51820"}},
}

// BuiltinServices returns the builtin catalog sorted by name.
func BuiltinServices() []Service {
	names := make([]string, 0, len(builtinServices))
	for name := range builtinServices {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Service, 0, len(names))
	for _, name := range names {
		doc := builtinServices[name]
		doc.Name = name
		svc, err := doc.convert()
		if err != nil {
			panic("builtin service " + name + ": " + err.Error())
		}
		out = append(out, svc)
	}
	return out
}
