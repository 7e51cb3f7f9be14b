package daemon

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"grimm.is/scribe/internal/backend"
	"grimm.is/scribe/internal/ctlplane"
	"grimm.is/scribe/internal/errors"
	"grimm.is/scribe/internal/logging"
	"grimm.is/scribe/internal/nameindex"
)

// Step names reported with fatal errors and to reload requesters.
const (
	StepCloseBackend  = "close-backend"
	StepOpenBackend   = "open-backend"
	StepInterfaces    = "interfaces"
	StepZones         = "zones"
	StepServices      = "services"
	StepAddresses     = "addresses"
	StepZoneTable     = "zone-table"
	StepServiceTable  = "service-table"
	StepTrafficLog    = "traffic-log"
	StepConnLogs      = "connection-logs"
	StepOpenLogs      = "open-logs"
	StepReadPackets   = "read-packets"
	StepReadConntrack = "read-conntrack"
	StepWriteLog      = "write-log"
)

// Published progress values.
const (
	ProgressBackendClosed = 10
	ProgressConfig        = 20
	ProgressBackendOpen   = 30
	ProgressInterfaces    = 40
	ProgressZones         = 50
	ProgressServices      = 60
	ProgressPseudoZones   = 70
	ProgressZoneTable     = 80
	ProgressServiceTable  = 90
	ProgressTrafficLog    = 92
	ProgressConnLogs      = 95
	ProgressDone          = 100
)

// FatalError ends the event loop. The process is expected to clean up and
// exit non-zero.
type FatalError struct {
	Step string
	Err  error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal error in %s: %v", e.Step, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// IsFatal reports whether err carries a FatalError and returns it.
func IsFatal(err error) (*FatalError, bool) {
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// reload runs one full cycle. The current index answers lookups until the
// replacement is complete; then the pointer is swapped and the old index
// destroyed. A non-nil return is always a *FatalError.
func (d *Daemon) reload() error {
	log := logging.WithComponent("reload")
	started := d.clock.Now()
	ticket := d.ch.Begin()
	d.progress(0)
	log.Info("reload started", "request", ticket.ID())

	// Step 1: retire the current index. It stays live until the swap.
	old := d.index

	err := d.rebuild(log, old)

	took := d.clock.Since(started)
	d.reloads.Add(1)
	if d.metrics != nil {
		d.metrics.RecordReload(err == nil, took, d.clock.Now())
	}

	if err != nil {
		fe, _ := IsFatal(err)
		d.lastResult.Store(ctlplane.ResultFailed)
		log.Error("reload failed", append(errors.LogArgs(err), "step", fe.Step)...)
		if cerr := d.ch.Complete(ticket, ctlplane.Completion{
			Result:  ctlplane.ResultFailed,
			Step:    fe.Step,
			Message: fe.Err.Error(),
		}, d.timings.ReloadSyncTimeout); cerr != nil {
			log.Warn("requester did not collect the failure", "error", cerr)
		}
		return err
	}

	// Step 9: publish completion and hand the result to the requester.
	d.progress(ProgressDone)
	d.lastResult.Store(ctlplane.ResultOK)
	d.lastReload.Store(d.clock.Now().UnixNano())
	if cerr := d.ch.Complete(ticket, ctlplane.Completion{Result: ctlplane.ResultOK}, d.timings.ReloadSyncTimeout); cerr != nil {
		log.Warn("requester did not collect the result, continuing", "error", cerr)
	}
	log.Info("reload finished", "took", took.String())
	return nil
}

func (d *Daemon) rebuild(log *logging.Logger, old *nameindex.Index) error {
	// Step 2: close the definitions handle.
	if d.handle != nil {
		h := d.handle
		d.handle = nil
		if err := h.Close(); err != nil {
			return &FatalError{Step: StepCloseBackend, Err: err}
		}
	}
	d.progress(ProgressBackendClosed)

	// Step 3: re-read the config file. The in-memory config survives a failure.
	d.reparseConfig(log)
	d.progress(ProgressConfig)

	// Step 4: reopen the backend from the surviving config.
	h, err := d.backend.Open(*d.cfg.Backend)
	if err != nil {
		return &FatalError{Step: StepOpenBackend, Err: err}
	}
	d.handle = h
	d.progress(ProgressBackendOpen)

	// Step 5: re-read every entity list.
	defs, err := d.readDefinitions(h, d.progress)
	if err != nil {
		return err
	}

	// Steps 6 and 7: pseudo-zones, both tables, swap.
	idx, err := d.buildIndex(defs, d.progress)
	if err != nil {
		return err
	}
	d.index = idx
	d.logDiff(log, old, idx)
	old.Destroy()
	d.publish()

	// Step 8: reopen the logs in append mode.
	paths := d.logPaths()
	if err := d.logs.ReopenTraffic(paths); err != nil {
		return &FatalError{Step: StepTrafficLog, Err: err}
	}
	d.progress(ProgressTrafficLog)
	if err := d.logs.ReopenConnections(paths); err != nil {
		return &FatalError{Step: StepConnLogs, Err: err}
	}
	d.progress(ProgressConnLogs)
	return nil
}

func (d *Daemon) reparseConfig(log *logging.Logger) {
	if d.cfgPath == "" {
		return
	}
	cfg, warnings, err := d.loadConfig(d.cfgPath)
	if err != nil {
		log.Warn("config re-parse failed, keeping previous values", append(errors.LogArgs(err), "path", d.cfgPath)...)
		return
	}
	for _, w := range warnings {
		log.Warn("config: " + w)
	}
	if cfg.NFLogGroup != d.cfg.NFLogGroup || cfg.ConntrackEnabled() != d.cfg.ConntrackEnabled() ||
		cfg.ConntrackWorkers != d.cfg.ConntrackWorkers || cfg.ConntrackReadBuffer != d.cfg.ConntrackReadBuffer {
		log.Warn("source subscription changes take effect after a restart",
			"nflog_group", d.cfg.NFLogGroup, "conntrack", d.cfg.ConntrackEnabled())
		cfg.NFLogGroup = d.cfg.NFLogGroup
		cfg.Conntrack = d.cfg.Conntrack
		cfg.ConntrackWorkers = d.cfg.ConntrackWorkers
		cfg.ConntrackReadBuffer = d.cfg.ConntrackReadBuffer
	}
	if cfg.LogLevel != d.cfg.LogLevel {
		if level, err := logging.ParseLevel(cfg.LogLevel); err == nil {
			logging.Default().SetLevel(level)
		}
	}
	d.cfg = cfg
	d.timings = cfg.Timings()
}

// readDefinitions reads interfaces, zones and services from h and resolves
// dynamic addresses. progress may be nil.
func (d *Daemon) readDefinitions(h backend.Handle, progress func(int)) (*backend.Definitions, error) {
	if progress == nil {
		progress = func(int) {}
	}
	log := logging.WithComponent("backend")

	ifaces, err := h.Interfaces()
	if err != nil {
		return nil, &FatalError{Step: StepInterfaces, Err: err}
	}
	progress(ProgressInterfaces)

	zones, err := h.Zones()
	if err != nil {
		return nil, &FatalError{Step: StepZones, Err: err}
	}
	progress(ProgressZones)

	services, err := h.Services()
	if err != nil {
		return nil, &FatalError{Step: StepServices, Err: err}
	}
	progress(ProgressServices)

	defs := &backend.Definitions{Interfaces: ifaces, Zones: zones, Services: services}
	for _, w := range backend.Check(defs) {
		log.Warn(w)
	}
	if d.host != nil {
		d.host.Forget()
		if err := d.host.ResolveDynamic(defs.Interfaces); err != nil {
			return nil, &FatalError{Step: StepAddresses, Err: err}
		}
	}
	return defs, nil
}

// buildIndex derives every zone entry and builds both tables.
func (d *Daemon) buildIndex(defs *backend.Definitions, progress func(int)) (*nameindex.Index, error) {
	if progress == nil {
		progress = func(int) {}
	}

	entries := nameindex.ZoneEntries(defs.Zones, defs.Interfaces)
	progress(ProgressPseudoZones)

	zt, err := nameindex.BuildZoneTable(entries)
	if err != nil {
		return nil, &FatalError{Step: StepZoneTable, Err: err}
	}
	progress(ProgressZoneTable)

	st, err := nameindex.BuildServiceTable(defs.Services)
	if err != nil {
		zt.Destroy()
		return nil, &FatalError{Step: StepServiceTable, Err: err}
	}
	progress(ProgressServiceTable)

	return nameindex.NewIndex(zt, st, defs.Interfaces), nil
}

func (d *Daemon) progress(p int) {
	d.ch.SetProgress(p)
	if d.onProgress != nil {
		d.onProgress(p)
	}
	if d.metrics != nil {
		d.metrics.ReloadProgress.Set(float64(p))
	}
}

// logDiff reports name changes between two indexes at debug level.
func (d *Daemon) logDiff(log *logging.Logger, old, cur *nameindex.Index) {
	if old == nil {
		return
	}
	for _, part := range []struct {
		what     string
		from, to []string
	}{
		{"zones", old.ZoneNames(), cur.ZoneNames()},
		{"services", old.ServiceNames(), cur.ServiceNames()},
	} {
		diff := NameDiff(part.what, part.from, part.to)
		if diff == "" {
			continue
		}
		log.Debug("index changed", "table", part.what, "diff", diff)
	}
}

// NameDiff renders a unified diff of two sorted name lists, or "" when equal.
func NameDiff(what string, from, to []string) string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        lines(from),
		B:        lines(to),
		FromFile: "previous " + what,
		ToFile:   "current " + what,
		Context:  0,
	})
	if err != nil {
		return ""
	}
	return diff
}

func lines(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	return difflib.SplitLines(strings.Join(names, "\n"))
}
