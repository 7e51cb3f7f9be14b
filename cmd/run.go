package cmd

import (
	"context"
	"fmt"
	"os"

	"grimm.is/scribe/internal/brand"
	"grimm.is/scribe/internal/config"
	"grimm.is/scribe/internal/errors"
	"grimm.is/scribe/internal/i18n"
	"grimm.is/scribe/internal/logging"
)

// Printer is the global message printer for the CLI
var Printer = i18n.NewCLIPrinter()

// RunOptions controls a daemon run.
type RunOptions struct {
	ConfigFile string
	Foreground bool
	// Verbose forces debug-level diagnostics.
	Verbose bool
}

// RunDaemon runs the logger until it is told to stop or hits a fatal error.
// In the foreground diagnostics go to stderr and the counters table is
// printed at exit.
func RunDaemon(opts RunOptions) (err error) {
	res, err := loadConfiguration(opts.ConfigFile)
	if err != nil {
		return err
	}
	cfg := res.Config

	logger, sink, err := initializeLogging(cfg, opts)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer sink.Close()
	for _, w := range res.Warnings {
		logger.Warn("config: " + w)
	}

	rt := &runtime{cfg: cfg, configFile: opts.ConfigFile, logger: logger}
	defer rt.shutdown()

	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf(errors.KindInternal, "panic: %v", r)
			logger.Error("daemon crashed", "panic", r)
		}
	}()

	// A second instance must not subscribe to the kernel sources.
	if err := rt.checkPIDFile(); err != nil {
		return err
	}
	if err := rt.openSources(); err != nil {
		return err
	}
	if err := rt.buildDaemon(); err != nil {
		return err
	}
	if err := rt.d.Init(); err != nil {
		logger.Error("initialization failed", errors.LogArgs(err)...)
		return err
	}
	if err := rt.createPIDFile(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := rt.startControlServer(); err != nil {
		return err
	}
	if err := rt.startMetrics(ctx); err != nil {
		return err
	}
	stopRelay := rt.d.Signals().Relay()
	rt.addCleanup(stopRelay)

	logger.Info(brand.Name+" started", "pid", os.Getpid(), "version", brand.Version, "config", opts.ConfigFile)
	runErr := rt.d.Run(ctx)

	if opts.Foreground {
		Printer.Println()
		Printer.Print(RenderSummary(rt.d.Summary()))
	}
	return runErr
}

func loadConfiguration(path string) (*config.LoadResult, error) {
	if path == "" {
		path = brand.GetConfigFile()
	}
	res, err := config.LoadFile(path)
	if err != nil {
		if errors.GetKind(err) == errors.KindNotFound && path == brand.GetConfigFile() {
			return &config.LoadResult{
				Config:   config.Default(),
				Warnings: []string{"no config file at " + path + ", using defaults"},
			}, nil
		}
		return nil, err
	}
	return res, nil
}

func initializeLogging(cfg *config.Config, opts RunOptions) (*logging.Logger, *logging.Sink, error) {
	level := cfg.LogLevel
	if opts.Verbose {
		level = "debug"
	}
	setup := logging.SetupOptions{
		Level:      level,
		JSON:       cfg.LogJSON,
		Foreground: opts.Foreground,
		File:       cfg.DaemonLog,
	}
	if cfg.Syslog != nil {
		setup.Syslog = logging.SyslogConfig{
			Enabled:  cfg.Syslog.Enabled,
			Host:     cfg.Syslog.Host,
			Port:     cfg.Syslog.Port,
			Protocol: cfg.Syslog.Protocol,
			Tag:      cfg.Syslog.Tag,
			Facility: cfg.Syslog.Facility,
		}
	}
	return logging.Setup(setup)
}
