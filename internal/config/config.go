// Package config loads the scribe daemon configuration file.
//
// The file names the three log sinks, the kernel subscription parameters, the
// loop timings and the definitions backend. Zones, networks, hosts, interfaces
// and services live in the backend, not here (see internal/backend).
package config

import (
	"fmt"
	"net"
	"net/netip"
	"path/filepath"
	"strings"
	"time"

	"grimm.is/scribe/internal/brand"
	"grimm.is/scribe/internal/errors"
)

// CurrentSchemaVersion is the latest config schema version.
const CurrentSchemaVersion = "1.0"

const (
	DefaultNFLogGroup        = 8
	DefaultIdleInterval      = 100 * time.Millisecond
	DefaultReadTimeout       = 100 * time.Millisecond
	DefaultReloadSyncTimeout = 30 * time.Second
	DefaultConnBatch         = 64
	DefaultPacketBatch       = 64
	DefaultConntrackWorkers  = 1

	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config is the daemon configuration.
type Config struct {
	SchemaVersion string `hcl:"schema_version,optional" json:"schema_version,omitempty"`

	TrafficLog     string `hcl:"traffic_log,optional" json:"traffic_log,omitempty"`
	ConnNewLog     string `hcl:"conn_new_log,optional" json:"conn_new_log,omitempty"`
	ConnectionsLog string `hcl:"connections_log,optional" json:"connections_log,omitempty"`

	// DaemonLog receives diagnostics when not running in the foreground.
	DaemonLog string `hcl:"daemon_log,optional" json:"daemon_log,omitempty"`
	LogLevel  string `hcl:"log_level,optional" json:"log_level,omitempty"`
	LogJSON   bool   `hcl:"log_json,optional" json:"log_json,omitempty"`

	NFLogGroup       int   `hcl:"nflog_group,optional" json:"nflog_group,omitempty"`
	Conntrack        *bool `hcl:"conntrack,optional" json:"conntrack,omitempty"`
	ConntrackWorkers int   `hcl:"conntrack_workers,optional" json:"conntrack_workers,omitempty"`
	// ConntrackReadBuffer is the ctnetlink receive buffer in bytes. 0 keeps the source default.
	ConntrackReadBuffer int `hcl:"conntrack_read_buffer,optional" json:"conntrack_read_buffer,omitempty"`

	IdleInterval      string `hcl:"idle_interval,optional" json:"idle_interval,omitempty"`
	ReadTimeout       string `hcl:"read_timeout,optional" json:"read_timeout,omitempty"`
	ReloadSyncTimeout string `hcl:"reload_sync_timeout,optional" json:"reload_sync_timeout,omitempty"`
	ConnBatch         int    `hcl:"conn_batch,optional" json:"conn_batch,omitempty"`
	PacketBatch       int    `hcl:"packet_batch,optional" json:"packet_batch,omitempty"`

	Backend *Backend `hcl:"backend,block" json:"backend,omitempty"`
	Syslog  *Syslog  `hcl:"syslog,block" json:"syslog,omitempty"`
	Metrics *Metrics `hcl:"metrics,block" json:"metrics,omitempty"`
}

// Backend selects where interface, zone and service definitions are read from.
type Backend struct {
	Type string `hcl:"type,label" json:"type"`
	Path string `hcl:"path,optional" json:"path,omitempty"`
}

// Syslog configures the optional remote syslog tee for diagnostics.
type Syslog struct {
	Enabled  bool   `hcl:"enabled,optional" json:"enabled,omitempty"`
	Host     string `hcl:"host,optional" json:"host,omitempty"`
	Port     int    `hcl:"port,optional" json:"port,omitempty"`
	Protocol string `hcl:"protocol,optional" json:"protocol,omitempty"`
	Tag      string `hcl:"tag,optional" json:"tag,omitempty"`
	Facility int    `hcl:"facility,optional" json:"facility,omitempty"`
}

// Metrics configures the prometheus endpoint. An empty Listen disables it.
type Metrics struct {
	Listen string `hcl:"listen,optional" json:"listen,omitempty"`
	Path   string `hcl:"path,optional" json:"path,omitempty"`
}

// Default returns a config with every field set to its default.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	if c.SchemaVersion == "" {
		c.SchemaVersion = CurrentSchemaVersion
	}
	logDir := brand.GetLogDir()
	if c.TrafficLog == "" {
		c.TrafficLog = filepath.Join(logDir, "traffic.log")
	}
	if c.ConnNewLog == "" {
		c.ConnNewLog = filepath.Join(logDir, "conn-new.log")
	}
	if c.ConnectionsLog == "" {
		c.ConnectionsLog = filepath.Join(logDir, "connections.log")
	}
	if c.DaemonLog == "" {
		c.DaemonLog = filepath.Join(logDir, brand.LowerName+".log")
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.NFLogGroup == 0 {
		c.NFLogGroup = DefaultNFLogGroup
	}
	if c.Conntrack == nil {
		enabled := true
		c.Conntrack = &enabled
	}
	if c.ConntrackWorkers == 0 {
		c.ConntrackWorkers = DefaultConntrackWorkers
	}
	if c.IdleInterval == "" {
		c.IdleInterval = DefaultIdleInterval.String()
	}
	if c.ReadTimeout == "" {
		c.ReadTimeout = DefaultReadTimeout.String()
	}
	if c.ReloadSyncTimeout == "" {
		c.ReloadSyncTimeout = DefaultReloadSyncTimeout.String()
	}
	if c.ConnBatch == 0 {
		c.ConnBatch = DefaultConnBatch
	}
	if c.PacketBatch == 0 {
		c.PacketBatch = DefaultPacketBatch
	}
	if c.Backend == nil {
		c.Backend = &Backend{Type: BackendFile}
	}
	if c.Backend.Path == "" {
		switch c.Backend.Type {
		case BackendSQLite:
			c.Backend.Path = filepath.Join(brand.GetStateDir(), "definitions.db")
		default:
			c.Backend.Path = brand.GetDefinitionsFile()
		}
	}
	if c.Metrics != nil && c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// ConntrackEnabled reports whether connection tracking events are logged.
func (c *Config) ConntrackEnabled() bool {
	return c.Conntrack == nil || *c.Conntrack
}

// Timings are the parsed loop durations.
type Timings struct {
	IdleInterval      time.Duration
	ReadTimeout       time.Duration
	ReloadSyncTimeout time.Duration
}

// Timings parses the duration strings, substituting defaults for values that
// do not parse. Validate reports those.
func (c *Config) Timings() Timings {
	return Timings{
		IdleInterval:      parseDuration(c.IdleInterval, DefaultIdleInterval),
		ReadTimeout:       parseDuration(c.ReadTimeout, DefaultReadTimeout),
		ReloadSyncTimeout: parseDuration(c.ReloadSyncTimeout, DefaultReloadSyncTimeout),
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Validate checks the config and reports every problem found.
func (c *Config) Validate() error {
	var problems []string

	for name, path := range map[string]string{
		"traffic_log":     c.TrafficLog,
		"conn_new_log":    c.ConnNewLog,
		"connections_log": c.ConnectionsLog,
	} {
		if path == "" {
			problems = append(problems, name+" is empty")
		} else if !filepath.IsAbs(path) {
			problems = append(problems, fmt.Sprintf("%s %q is not an absolute path", name, path))
		}
	}
	if c.TrafficLog != "" && (c.TrafficLog == c.ConnNewLog || c.TrafficLog == c.ConnectionsLog) {
		problems = append(problems, "traffic_log must differ from the connection logs")
	}

	if c.NFLogGroup < 0 || c.NFLogGroup > 65535 {
		problems = append(problems, fmt.Sprintf("nflog_group %d out of range 0-65535", c.NFLogGroup))
	}
	if c.ConntrackWorkers < 0 || c.ConntrackWorkers > 255 {
		problems = append(problems, "conntrack_workers must be between 0 and 255")
	}
	if c.ConntrackReadBuffer < 0 {
		problems = append(problems, "conntrack_read_buffer must not be negative")
	}
	if c.ConnBatch < 0 {
		problems = append(problems, "conn_batch must not be negative")
	}
	if c.PacketBatch < 0 {
		problems = append(problems, "packet_batch must not be negative")
	}

	for name, s := range map[string]string{
		"idle_interval":       c.IdleInterval,
		"read_timeout":        c.ReadTimeout,
		"reload_sync_timeout": c.ReloadSyncTimeout,
	} {
		if s == "" {
			continue
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", name, err))
		} else if d <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be positive", name))
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		problems = append(problems, fmt.Sprintf("unknown log_level %q", c.LogLevel))
	}

	if c.Backend != nil {
		switch c.Backend.Type {
		case BackendFile, BackendSQLite:
		default:
			problems = append(problems, fmt.Sprintf("unknown backend type %q (want file or sqlite)", c.Backend.Type))
		}
	}

	if c.Syslog != nil && c.Syslog.Enabled {
		if c.Syslog.Host == "" {
			problems = append(problems, "syslog.host is required when syslog is enabled")
		}
		switch c.Syslog.Protocol {
		case "", "udp", "tcp":
		default:
			problems = append(problems, fmt.Sprintf("syslog.protocol %q (want udp or tcp)", c.Syslog.Protocol))
		}
	}

	if c.Metrics != nil && c.Metrics.Listen != "" {
		if _, err := netip.ParseAddrPort(c.Metrics.Listen); err != nil {
			if _, _, err := net.SplitHostPort(c.Metrics.Listen); err != nil {
				problems = append(problems, fmt.Sprintf("metrics.listen %q: %v", c.Metrics.Listen, err))
			}
		}
	}

	if len(problems) > 0 {
		return errors.Attr(
			errors.Errorf(errors.KindValidation, "invalid config: %s", strings.Join(problems, "; ")),
			"problems", len(problems))
	}
	return nil
}
