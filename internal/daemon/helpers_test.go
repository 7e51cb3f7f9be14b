package daemon

import (
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"grimm.is/scribe/internal/backend"
	"grimm.is/scribe/internal/clock"
	"grimm.is/scribe/internal/config"
	"grimm.is/scribe/internal/logging"
	"grimm.is/scribe/internal/record"
	"grimm.is/scribe/internal/source"
)

const baseDefinitions = `
interface "lan" {
  device  = "eth1"
  address = "192.168.1.1"
}

zone "lan" {
  network "office" {
    network    = "192.168.1.0/24"
    interfaces = ["lan"]

    host "printer" {
      address = "192.168.1.20"
    }
  }
}

service "http" {
  tcp = ["80"]
}

service "https" {
  tcp = ["443"]
}
`

const extraService = `
service "ssh" {
  tcp = ["22"]
}
`

type testEnv struct {
	t        *testing.T
	dir      string
	defsPath string
	cfg      *config.Config
	packets  *source.MemoryPacketSource
	conns    *source.MemoryConnSource
	clock    *clock.MockClock
	progress []int
	d        *Daemon
}

func newEnv(t *testing.T, modify ...func(*Options)) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		t:        t,
		dir:      dir,
		defsPath: filepath.Join(dir, "definitions.hcl"),
		packets:  source.NewMemoryPacketSource(),
		conns:    source.NewMemoryConnSource(),
		clock:    clock.NewMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	}
	env.writeDefinitions(baseDefinitions)

	env.cfg = &config.Config{
		TrafficLog:     filepath.Join(dir, "traffic.log"),
		ConnNewLog:     filepath.Join(dir, "conn-new.log"),
		ConnectionsLog: filepath.Join(dir, "connections.log"),
		Backend:        &config.Backend{Type: config.BackendFile, Path: env.defsPath},
	}
	env.cfg.ApplyDefaults()

	opts := Options{
		Config:     env.cfg,
		Packets:    env.packets,
		Conns:      env.conns,
		Clock:      env.clock,
		Logger:     logging.Discard(),
		OnProgress: func(p int) { env.progress = append(env.progress, p) },
	}
	for _, m := range modify {
		m(&opts)
	}

	d, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, d.Init())
	t.Cleanup(func() { d.Close() })
	env.d = d
	return env
}

func (e *testEnv) writeDefinitions(text string) {
	e.t.Helper()
	require.NoError(e.t, os.WriteFile(e.defsPath, []byte(text), 0644))
}

func (e *testEnv) lines(path string) []string {
	e.t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(e.t, err)
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func packet(src, dst string, dport uint16, action record.Action) record.RawEventRecord {
	return record.RawEventRecord{
		Origin:  record.OriginPacketLog,
		Src:     netip.MustParseAddr(src),
		Dst:     netip.MustParseAddr(dst),
		SrcPort: 40000,
		DstPort: dport,
		Proto:   record.ProtoTCP,
		InDev:   "eth1",
		Action:  action,
	}
}

func conn(id uint32, action record.Action) record.RawEventRecord {
	return record.RawEventRecord{
		Origin:  record.OriginConntrack,
		Src:     netip.MustParseAddr("192.168.1.20"),
		Dst:     netip.MustParseAddr("198.51.100.7"),
		SrcPort: 40000,
		DstPort: 443,
		Proto:   record.ProtoTCP,
		Action:  action,
		ConnID:  id,
	}
}

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) Open(cfg config.Backend) (backend.Handle, error) {
	args := m.Called(cfg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(backend.Handle), args.Error(1)
}

type mockHandle struct {
	mock.Mock
}

func (m *mockHandle) Interfaces() ([]backend.Interface, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]backend.Interface), args.Error(1)
}

func (m *mockHandle) Zones() ([]backend.Zone, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]backend.Zone), args.Error(1)
}

func (m *mockHandle) Services() ([]backend.Service, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]backend.Service), args.Error(1)
}

func (m *mockHandle) Close() error {
	return m.Called().Error(0)
}
