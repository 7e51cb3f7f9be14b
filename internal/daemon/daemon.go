// Package daemon runs scribe's event loop and reload cycle.
//
// A Daemon owns every piece of mutable process state: the live name index,
// the definitions handle, the log files and the counters. Only the goroutine
// calling Run touches them. Other goroutines (signal relay, control RPC
// handlers, metrics scrapes) read atomics or go through ctlplane.Channel.
package daemon

import (
	"os"
	"sort"
	"sync/atomic"
	"time"

	"grimm.is/scribe/internal/backend"
	"grimm.is/scribe/internal/brand"
	"grimm.is/scribe/internal/clock"
	"grimm.is/scribe/internal/config"
	"grimm.is/scribe/internal/ctlplane"
	"grimm.is/scribe/internal/errors"
	"grimm.is/scribe/internal/logfile"
	"grimm.is/scribe/internal/logging"
	"grimm.is/scribe/internal/metrics"
	"grimm.is/scribe/internal/nameindex"
	"grimm.is/scribe/internal/record"
	"grimm.is/scribe/internal/source"
)

// State is the event loop state.
type State int32

const (
	StateIdle State = iota
	StateDraining
	StateReloadPending
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDraining:
		return "draining"
	case StateReloadPending:
		return "reloading"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// AddressResolver fills in the addresses of dynamic interfaces.
type AddressResolver interface {
	ResolveDynamic(ifaces []backend.Interface) error
	// Forget drops cached device names so a recreated device is seen anew.
	Forget()
}

// ConfigLoader re-reads the daemon configuration file.
type ConfigLoader func(path string) (*config.Config, []string, error)

// LoadConfigFile is the default ConfigLoader.
func LoadConfigFile(path string) (*config.Config, []string, error) {
	res, err := config.LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return res.Config, res.Warnings, nil
}

// Options wires a Daemon. Packets and Config are required.
type Options struct {
	ConfigFile string
	Config     *config.Config
	LoadConfig ConfigLoader

	Backend backend.Backend
	Packets source.PacketSource
	Conns   source.ConnSource
	Host    AddressResolver

	Channel *ctlplane.Channel
	Metrics *metrics.Registry
	Clock   clock.Clock
	Logger  *logging.Logger

	// OnProgress, if set, sees every progress value the reload publishes.
	OnProgress func(int)
}

// Daemon is the running logger process.
type Daemon struct {
	cfgPath    string
	cfg        *config.Config
	timings    config.Timings
	loadConfig ConfigLoader

	backend backend.Backend
	handle  backend.Handle
	index   *nameindex.Index
	logs    *logfile.Set

	packets source.PacketSource
	conns   source.ConnSource
	host    AddressResolver

	ch         *ctlplane.Channel
	metrics    *metrics.Registry
	clock      clock.Clock
	logger     *logging.Logger
	onProgress func(int)
	counters   record.Counters
	signals    Signals

	state      atomic.Int32
	startedAt  time.Time
	reloads    atomic.Uint64
	lastReload atomic.Int64
	lastResult atomic.Int32
	info       atomic.Pointer[statusInfo]
}

// statusInfo is republished by the loop after every index swap so status
// readers never touch loop-owned fields.
type statusInfo struct {
	configFile string
	backend    string
	stats      nameindex.Stats
	zones      []string
	services   int
}

// New validates opts. Nothing is opened until Init.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil {
		return nil, errors.New(errors.KindValidation, "daemon config is required")
	}
	if opts.Packets == nil {
		return nil, errors.New(errors.KindValidation, "packet source is required")
	}
	if opts.Conns == nil {
		opts.Conns = source.NopConnSource{}
	}
	if opts.Backend == nil {
		opts.Backend = backend.Default{}
	}
	if opts.LoadConfig == nil {
		opts.LoadConfig = LoadConfigFile
	}
	if opts.Channel == nil {
		opts.Channel = ctlplane.NewChannel()
	}
	if opts.Clock == nil {
		opts.Clock = &clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.WithComponent("loop")
	}

	d := &Daemon{
		cfgPath:    opts.ConfigFile,
		cfg:        opts.Config,
		timings:    opts.Config.Timings(),
		loadConfig: opts.LoadConfig,
		backend:    opts.Backend,
		packets:    opts.Packets,
		conns:      opts.Conns,
		host:       opts.Host,
		ch:         opts.Channel,
		metrics:    opts.Metrics,
		clock:      opts.Clock,
		logger:     opts.Logger,
		onProgress: opts.OnProgress,
		startedAt:  opts.Clock.Now(),
	}
	return d, nil
}

// Init opens the definitions backend, builds the first index and opens the
// log files. Any failure is fatal and leaves nothing open.
func (d *Daemon) Init() error {
	h, err := d.backend.Open(*d.cfg.Backend)
	if err != nil {
		return &FatalError{Step: StepOpenBackend, Err: err}
	}

	defs, err := d.readDefinitions(h, nil)
	if err != nil {
		h.Close()
		return err
	}

	idx, err := d.buildIndex(defs, nil)
	if err != nil {
		h.Close()
		return err
	}

	logs, err := logfile.OpenSet(d.logPaths())
	if err != nil {
		idx.Destroy()
		h.Close()
		return &FatalError{Step: StepOpenLogs, Err: err}
	}

	d.handle = h
	d.index = idx
	d.logs = logs
	d.publish()
	d.setState(StateIdle)

	st := idx.Stats()
	d.logger.Info("initialized",
		"zone_entries", st.ZoneEntries,
		"service_entries", st.ServiceEntries,
		"traffic_log", d.cfg.TrafficLog)
	return nil
}

func (d *Daemon) logPaths() logfile.Paths {
	return logfile.Paths{
		Traffic:     d.cfg.TrafficLog,
		ConnNew:     d.cfg.ConnNewLog,
		Connections: d.cfg.ConnectionsLog,
	}
}

// publish refreshes the status snapshot. Loop goroutine only.
func (d *Daemon) publish() {
	st := d.index.Stats()
	d.info.Store(&statusInfo{
		configFile: d.cfgPath,
		backend:    d.cfg.Backend.Type + ":" + d.cfg.Backend.Path,
		stats:      st,
		zones:      d.index.ZoneNames(),
		services:   len(d.index.ServiceNames()),
	})
	if d.metrics != nil {
		d.metrics.SetIndex(st)
	}
}

func (d *Daemon) setState(s State) { d.state.Store(int32(s)) }

// State returns the current loop state.
func (d *Daemon) State() State { return State(d.state.Load()) }

// Signals returns the flags the signal relay sets.
func (d *Daemon) Signals() *Signals { return &d.signals }

// Channel returns the control channel the loop polls.
func (d *Daemon) Channel() *ctlplane.Channel { return d.ch }

// Counters returns the record tallies. Safe for concurrent readers.
func (d *Daemon) Counters() *record.Counters { return &d.counters }

// Status builds a snapshot for the control channel. Safe from any goroutine.
func (d *Daemon) Status() ctlplane.StatusReply {
	snap := d.counters.Snapshot()
	reply := ctlplane.StatusReply{
		PID:        os.Getpid(),
		Version:    brand.Version,
		StartedAt:  d.startedAt,
		State:      d.State().String(),
		Counters:   snap.ByAction,
		Invalid:    snap.Invalid,
		Total:      snap.Total,
		Dropped:    d.dropped(),
		Reloads:    d.reloads.Load(),
		LastResult: int(d.lastResult.Load()),
	}
	if ns := d.lastReload.Load(); ns != 0 {
		reply.LastReload = time.Unix(0, ns)
	}
	if info := d.info.Load(); info != nil {
		reply.ConfigFile = info.configFile
		reply.Backend = info.backend
		reply.ZoneEntries = info.stats.ZoneEntries
		reply.ZoneBuckets = info.stats.ZoneBuckets
		reply.ServiceEntries = info.stats.ServiceEntries
		reply.ServiceBuckets = info.stats.ServiceBuckets
		reply.Zones = info.zones
		reply.Services = info.services
	}
	return reply
}

func (d *Daemon) dropped() map[string]uint64 {
	out := map[string]uint64{}
	if dr, ok := d.packets.(source.Dropper); ok {
		out["nflog"] = dr.Dropped()
	}
	if dc, ok := d.packets.(source.DecodeCounter); ok {
		out["nflog_undecoded"] = dc.Undecoded()
	}
	return out
}

// SummaryRow is one line of the exit report.
type SummaryRow struct {
	Name  string
	Value uint64
}

// Summary returns the non-zero action tallies sorted by name, then the
// invalid and total rows.
func (d *Daemon) Summary() []SummaryRow {
	snap := d.counters.Snapshot()
	names := make([]string, 0, len(snap.ByAction))
	for name, v := range snap.ByAction {
		if v > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	rows := make([]SummaryRow, 0, len(names)+2)
	for _, name := range names {
		rows = append(rows, SummaryRow{name, snap.ByAction[name]})
	}
	return append(rows, SummaryRow{"invalid", snap.Invalid}, SummaryRow{"total", snap.Total})
}

// Close releases the log files, the kernel sources and the backend handle,
// in that order. It reports every failure.
func (d *Daemon) Close() error {
	d.setState(StateStopped)
	var errs []error
	if d.logs != nil {
		if err := d.logs.Close(); err != nil {
			errs = append(errs, err)
		}
		d.logs = nil
	}
	if err := d.packets.Close(); err != nil {
		errs = append(errs, errors.Wrap(err, errors.KindIO, "failed to close packet source"))
	}
	if err := d.conns.Close(); err != nil {
		errs = append(errs, errors.Wrap(err, errors.KindIO, "failed to close conntrack source"))
	}
	if d.handle != nil {
		if err := d.handle.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, errors.KindIO, "failed to close backend"))
		}
		d.handle = nil
	}
	d.index.Destroy()
	d.index = nil
	return errors.Join(errs...)
}
