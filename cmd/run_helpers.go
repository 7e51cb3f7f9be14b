package cmd

import (
	"context"

	"grimm.is/scribe/internal/brand"
	"grimm.is/scribe/internal/config"
	"grimm.is/scribe/internal/ctlplane"
	"grimm.is/scribe/internal/daemon"
	"grimm.is/scribe/internal/errors"
	"grimm.is/scribe/internal/logging"
	"grimm.is/scribe/internal/metrics"
	"grimm.is/scribe/internal/network"
	"grimm.is/scribe/internal/pidfile"
	"grimm.is/scribe/internal/source"
)

// runtime holds what RunDaemon opened so shutdown can release it in reverse
// order on every exit path.
type runtime struct {
	cfg        *config.Config
	configFile string
	logger     *logging.Logger

	pid      *pidfile.File
	host     *network.Host
	packets  *source.NFLogSource
	conns    source.ConnSource
	registry *metrics.Registry
	d        *daemon.Daemon
	ctl      *ctlplane.Server

	cleanups   []func()
	pidCreated bool
	closed     bool
}

func (rt *runtime) addCleanup(fn func()) {
	rt.cleanups = append(rt.cleanups, fn)
}

// shutdown runs the cleanups last-in first-out and removes the PID marker
// last. The daemon closes its sources, so they are only closed here when the
// daemon was never built.
func (rt *runtime) shutdown() {
	if rt.closed {
		return
	}
	rt.closed = true
	for i := len(rt.cleanups) - 1; i >= 0; i-- {
		rt.cleanups[i]()
	}
	rt.cleanups = nil

	if rt.pidCreated {
		if err := rt.pid.Remove(); err != nil {
			rt.logger.Warn("failed to remove PID file", "path", rt.pid.Path(), "error", err)
		}
	}
}

func (rt *runtime) checkPIDFile() error {
	rt.pid = pidfile.New(brand.GetPIDFile())
	pid, err := rt.pid.Check()
	if err != nil {
		return err
	}
	if pid != 0 {
		return errors.Attr(errors.Errorf(errors.KindConflict, "%s is already running (PID %d)", brand.Name, pid), "pid", pid)
	}
	return nil
}

// createPIDFile runs after full initialization so the marker only ever names a
// working daemon.
func (rt *runtime) createPIDFile() error {
	if err := rt.pid.Create(); err != nil {
		return err
	}
	rt.pidCreated = true
	return nil
}

func (rt *runtime) openSources() error {
	timings := rt.cfg.Timings()
	rt.host = network.NewHost(nil)

	packets, err := source.OpenNFLog(source.NFLogConfig{
		Group:       uint16(rt.cfg.NFLogGroup),
		ReadTimeout: timings.ReadTimeout,
		Queue:       rt.cfg.PacketBatch * 16,
		Devices:     rt.host,
		Logger:      logging.WithComponent("nflog"),
	})
	if err != nil {
		return errors.Attr(err, "group", rt.cfg.NFLogGroup)
	}
	rt.packets = packets
	rt.addCleanup(func() {
		if rt.d == nil {
			packets.Close()
		}
	})

	if !rt.cfg.ConntrackEnabled() {
		rt.conns = source.NopConnSource{}
		return nil
	}
	conns, err := source.OpenConntrack(source.ConntrackConfig{
		Workers:    uint8(rt.cfg.ConntrackWorkers),
		Queue:      rt.cfg.ConnBatch * 16,
		ReadBuffer: rt.cfg.ConntrackReadBuffer,
		Logger:     logging.WithComponent("conntrack"),
	})
	if err != nil {
		return err
	}
	rt.conns = conns
	rt.addCleanup(func() {
		if rt.d == nil {
			conns.Close()
		}
	})
	return nil
}

func (rt *runtime) buildDaemon() error {
	if rt.cfg.Metrics != nil && rt.cfg.Metrics.Listen != "" {
		rt.registry = metrics.New(nil)
	}

	d, err := daemon.New(daemon.Options{
		ConfigFile: rt.configFile,
		Config:     rt.cfg,
		Packets:    rt.packets,
		Conns:      rt.conns,
		Host:       rt.host,
		Metrics:    rt.registry,
		Logger:     logging.WithComponent("loop"),
	})
	if err != nil {
		return err
	}
	rt.d = d
	rt.addCleanup(func() {
		if err := d.Close(); err != nil {
			rt.logger.Warn("shutdown reported errors", errors.LogArgs(err)...)
		}
	})

	if rt.registry != nil {
		if err := rt.registry.Register(metrics.NewCountersCollector(d.Counters())); err != nil {
			return errors.Wrap(err, errors.KindInternal, "failed to register counters")
		}
		if err := rt.registry.Register(metrics.DropCounter("nflog", rt.packets.Dropped)); err != nil {
			return errors.Wrap(err, errors.KindInternal, "failed to register nflog drops")
		}
		if err := rt.registry.Register(metrics.DropCounter("nflog_undecoded", rt.packets.Undecoded)); err != nil {
			return errors.Wrap(err, errors.KindInternal, "failed to register nflog decode failures")
		}
	}
	return nil
}

func (rt *runtime) startControlServer() error {
	srv, err := ctlplane.NewServer(rt.d.Channel(), rt.d.Status)
	if err != nil {
		return err
	}
	if err := srv.Start(brand.GetSocketPath()); err != nil {
		return err
	}
	rt.ctl = srv
	rt.addCleanup(func() {
		if err := srv.Stop(); err != nil {
			rt.logger.Warn("failed to stop control server", "error", err)
		}
	})
	return nil
}

func (rt *runtime) startMetrics(ctx context.Context) error {
	if rt.registry == nil {
		return nil
	}
	rt.registry.Started.SetToCurrentTime()
	srv, err := metrics.Listen(rt.cfg.Metrics.Listen, rt.cfg.Metrics.Path, rt.registry)
	if err != nil {
		return err
	}
	metricsCtx, cancel := context.WithCancel(ctx)
	rt.addCleanup(cancel)
	go srv.Serve(metricsCtx)
	return nil
}
