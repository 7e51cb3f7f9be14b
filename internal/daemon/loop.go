package daemon

import (
	"context"

	"grimm.is/scribe/internal/errors"
	"grimm.is/scribe/internal/format"
	"grimm.is/scribe/internal/record"
	"grimm.is/scribe/internal/resolver"
)

// Run drives the event loop until shutdown is requested, ctx is done or a
// fatal error occurs. The caller must have called Init.
func (d *Daemon) Run(ctx context.Context) error {
	if d.index == nil {
		return errors.New(errors.KindInternal, "daemon not initialized")
	}
	d.logger.Info("event loop started", "nflog_group", d.cfg.NFLogGroup, "conntrack", d.cfg.ConntrackEnabled())

	for {
		quit, err := d.tick(ctx)
		if err != nil {
			d.logger.Error("event loop stopped", errors.LogArgs(err)...)
			return err
		}
		if quit {
			d.logger.Info("event loop stopped", "records", d.counters.Total())
			return nil
		}
	}
}

// tick runs one iteration and reports whether the loop should exit.
func (d *Daemon) tick(ctx context.Context) (bool, error) {
	if d.signals.TakeReload() || d.ch.Pending() {
		d.setState(StateReloadPending)
		if err := d.reload(); err != nil {
			return true, err
		}
	}

	d.setState(StateDraining)

	conns, err := d.drainConns()
	if err != nil {
		return true, err
	}
	packets, err := d.drainPackets(ctx)
	if err != nil {
		return true, err
	}

	quit := d.signals.Quit() || ctx.Err() != nil
	if conns+packets == 0 {
		d.setState(StateIdle)
		if !quit {
			d.clock.Sleep(d.timings.IdleInterval)
		}
	}
	return quit, nil
}

// drainConns reads up to ConnBatch queued conntrack records.
func (d *Daemon) drainConns() (int, error) {
	n := 0
	for n < d.cfg.ConnBatch {
		rec, ok, err := d.conns.ReadOne()
		if err != nil {
			return n, &FatalError{Step: StepReadConntrack, Err: err}
		}
		if !ok {
			break
		}
		n++
		if err := d.process(rec); err != nil {
			return n, err
		}
	}
	return n, nil
}

// drainPackets reads one batch from the packet source, blocking for at most
// its read timeout.
func (d *Daemon) drainPackets(ctx context.Context) (int, error) {
	readCtx, cancel := context.WithTimeout(ctx, d.timings.ReadTimeout)
	defer cancel()

	batch, err := d.packets.ReadBatch(readCtx, d.cfg.PacketBatch)
	if err != nil {
		return 0, &FatalError{Step: StepReadPackets, Err: err}
	}
	for _, rec := range batch {
		if err := d.process(rec); err != nil {
			return len(batch), err
		}
	}
	return len(batch), nil
}

// process resolves one record, counts it and writes it to its logs.
func (d *Daemon) process(rec record.RawEventRecord) error {
	status, named := resolver.ResolveIndex(rec, d.index)
	d.counters.Count(status, rec.Action)
	if status == record.StatusInvalid {
		return nil
	}

	switch rec.Origin {
	case record.OriginPacketLog:
		return d.write(d.logs.Traffic.Write, format.Traffic(named), "traffic")
	case record.OriginConntrack:
		line := format.Connection(named)
		if rec.Action == record.ActionConnNew {
			if err := d.write(d.logs.ConnNew.Write, line, "conn_new"); err != nil {
				return err
			}
		}
		return d.write(d.logs.Connections.Write, line, "connections")
	}
	return nil
}

func (d *Daemon) write(w func(string) error, line, log string) error {
	if err := w(line); err != nil {
		return &FatalError{Step: StepWriteLog, Err: err}
	}
	if d.metrics != nil {
		d.metrics.LinesWritten.WithLabelValues(log).Inc()
	}
	return nil
}
