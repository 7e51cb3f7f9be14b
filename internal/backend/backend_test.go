package backend

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/scribe/internal/config"
	"grimm.is/scribe/internal/errors"
	"grimm.is/scribe/internal/record"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileBackendHCL(t *testing.T) {
	path := writeFile(t, "definitions.hcl", sampleHCL)

	defs, warnings, err := Load(Default{}, config.Backend{Type: config.BackendFile, Path: path})
	require.NoError(t, err)

	require.Len(t, defs.Interfaces, 2, "disabled interface is skipped")
	assert.Equal(t, "lan", defs.Interfaces[0].Name)
	assert.Equal(t, []netip.Addr{netip.MustParseAddr("192.168.1.1")}, defs.Interfaces[0].Addresses)
	assert.True(t, defs.Interfaces[1].Dynamic)
	assert.Empty(t, defs.Interfaces[1].Addresses)

	require.Len(t, defs.Zones, 2)
	office := defs.Zones[0].Networks[0]
	assert.Equal(t, netip.MustParsePrefix("192.168.1.0/24"), office.Prefix)
	require.Len(t, office.Hosts, 1, "disabled host is skipped")
	assert.Equal(t, "printer", office.Hosts[0].Name)

	require.Len(t, defs.Services, 4)
	assert.Equal(t, PortRange{Proto: record.ProtoTCP, Low: 6000, High: 6010}, defs.Services[1].Ports[0])
	assert.Equal(t, PortRange{Proto: record.ProtoICMP, Low: 8, High: 8}, defs.Services[2].Ports[0])
	assert.Equal(t, PortRange{Proto: record.ProtoGRE}, defs.Services[3].Ports[0])

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], `unknown interface "dmz"`)
}

func TestFileBackendFormats(t *testing.T) {
	for name, content := range map[string]string{
		"defs.yaml": sampleYAML,
		"defs.yml":  sampleYAML,
		"defs.json": sampleJSON,
	} {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, name, content)
			defs, _, err := Load(Default{}, config.Backend{Type: config.BackendFile, Path: path})
			require.NoError(t, err)
			require.Len(t, defs.Zones, 1)
			assert.Equal(t, "printer", defs.Zones[0].Networks[0].Hosts[0].Name)
			assert.Equal(t, "http", defs.Services[0].Name)
		})
	}
}

func TestFileBackendErrors(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "missing.hcl"))
	require.Error(t, err)
	assert.Equal(t, errors.KindNotFound, errors.GetKind(err))

	path := writeFile(t, "bad.yaml", "zones: [name: {]")
	_, err = OpenFile(path)
	require.Error(t, err)
	assert.Equal(t, errors.KindValidation, errors.GetKind(err))

	path = writeFile(t, "unknown.yaml", "colour: blue\n")
	_, err = OpenFile(path)
	assert.Error(t, err, "unknown keys are rejected")
}

func TestHandleClosed(t *testing.T) {
	h, err := OpenFile(writeFile(t, "defs.hcl", sampleHCL))
	require.NoError(t, err)
	require.NoError(t, h.Close())

	_, err = h.Zones()
	assert.Equal(t, errors.KindUnavailable, errors.GetKind(err))
	assert.Equal(t, errors.KindConflict, errors.GetKind(h.Close()))
}

func TestUnknownBackendType(t *testing.T) {
	_, err := Default{}.Open(config.Backend{Type: "ldap"})
	require.Error(t, err)
	assert.Equal(t, "ldap", errors.GetAttributes(err)["type"])
}

func TestDocumentValidation(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"dotted zone name", `zone "a.b" {}`, "invalid zone name"},
		{"duplicate zone", `
zone "lan" {}
zone "lan" {}`, "duplicate zone"},
		{"bad cidr", `
zone "lan" {
  network "office" { network = "192.168.1.0/33" }
}`, "network office.lan"},
		{"host outside network", `
zone "lan" {
  network "office" {
    network = "192.168.1.0/24"
    host "nas" { address = "10.0.0.1" }
  }
}`, "outside"},
		{"reversed range", `service "x" { tcp = ["90:80"] }`, "reversed"},
		{"port zero", `service "x" { udp = ["0"] }`, "port 0"},
		{"ported protocol by number", `service "x" { protocols = [6] }`, "use the tcp attribute"},
		{"interface without device", `
interface "lan" { device = "" }`, "has no device"},
		{"duplicate interface", `
interface "lan" { device = "eth0" }
interface "lan" { device = "eth1" }`, "duplicate interface"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ParseDocument([]byte(tt.src), "defs.hcl")
			require.NoError(t, err)
			_, _, err = doc.Definitions()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, errors.KindValidation, errors.GetKind(err))
		})
	}
}

func TestNetworkIsMasked(t *testing.T) {
	doc, err := ParseDocument([]byte(`
zone "lan" {
  network "office" { network = "192.168.1.77/24" }
}`), "defs.hcl")
	require.NoError(t, err)
	zones, err := doc.ZoneList()
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.0/24", zones[0].Networks[0].Prefix.String())
}

func TestCheckWarnings(t *testing.T) {
	defs := &Definitions{
		Interfaces: []Interface{{Name: "lan", Device: "eth1", Addresses: []netip.Addr{netip.MustParseAddr("10.0.0.1")}}},
		Zones: []Zone{{Name: "lan", Networks: []Network{{
			Name:       "office",
			Prefix:     netip.MustParsePrefix("10.0.0.0/24"),
			Interfaces: []string{"lan", "ghost"},
			Hosts:      []Host{{Name: "gw", Address: netip.MustParseAddr("10.0.0.1")}},
		}}}},
		Services: []Service{{Name: "empty"}},
	}
	warnings := Check(defs)
	require.Len(t, warnings, 3)
	assert.Contains(t, warnings[0], "ghost")
	assert.Contains(t, warnings[1], "shares address 10.0.0.1")
	assert.Contains(t, warnings[2], `"empty" has no ports`)
}

func TestBuiltinServices(t *testing.T) {
	doc, err := ParseDocument([]byte(`
builtin_services = true
service "http" { tcp = ["8080"] }`), "defs.hcl")
	require.NoError(t, err)

	services, err := doc.ServiceList()
	require.NoError(t, err)

	byName := map[string]Service{}
	for _, s := range services {
		byName[s.Name] = s
	}
	assert.Equal(t, uint16(8080), byName["http"].Ports[0].Low, "document overrides the builtin")
	assert.Contains(t, byName, "ssh")
	assert.Contains(t, byName, "pptp")
	assert.Equal(t, len(builtinServices), len(services))
}
