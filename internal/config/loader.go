package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"grimm.is/scribe/internal/brand"
	"grimm.is/scribe/internal/errors"
)

// LoadResult contains the loaded config and metadata about the load.
type LoadResult struct {
	Config   *Config
	Version  SchemaVersion
	Path     string
	Warnings []string
}

// LoadFile loads a config file (HCL or JSON), applies defaults and validates it.
func LoadFile(path string) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		kind := errors.KindIO
		if os.IsNotExist(err) {
			kind = errors.KindNotFound
		}
		return nil, errors.Attr(errors.Wrap(err, kind, "failed to read config file"), "path", path)
	}

	var result *LoadResult
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		result, err = LoadJSON(data)
	default:
		result, err = LoadHCL(data, path)
	}
	if err != nil {
		return nil, errors.Attr(err, "path", path)
	}
	result.Path = path
	return result, nil
}

// LoadHCL parses HCL bytes. Expressions may reference env.NAME and the
// directory variables config_dir, state_dir, log_dir and run_dir.
func LoadHCL(data []byte, filename string) (*LoadResult, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, errors.Errorf(errors.KindValidation, "HCL parse error: %s", diags.Error())
	}

	ctx := EvalContext()

	var versionProbe struct {
		SchemaVersion string   `hcl:"schema_version,optional"`
		Remain        hcl.Body `hcl:",remain"`
	}
	_ = gohcl.DecodeBody(file.Body, ctx, &versionProbe)

	version, err := checkVersion(versionProbe.SchemaVersion)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if diags := gohcl.DecodeBody(file.Body, ctx, &cfg); diags.HasErrors() {
		return nil, errors.Errorf(errors.KindValidation, "HCL decode error: %s", diags.Error())
	}

	return finish(&cfg, version)
}

// LoadJSON parses a JSON config.
func LoadJSON(data []byte) (*LoadResult, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, errors.KindValidation, "JSON parse error")
	}

	version, err := checkVersion(cfg.SchemaVersion)
	if err != nil {
		return nil, err
	}
	return finish(&cfg, version)
}

func checkVersion(s string) (SchemaVersion, error) {
	version, err := ParseVersion(s)
	if err != nil {
		return SchemaVersion{}, errors.Wrap(err, errors.KindValidation, "invalid schema version")
	}
	if !IsSupportedVersion(version) {
		return SchemaVersion{}, errors.Errorf(errors.KindValidation,
			"unsupported config schema version %s (supported: %v)", version, SupportedVersions)
	}
	return version, nil
}

func finish(cfg *Config, version SchemaVersion) (*LoadResult, error) {
	var warnings []string
	if cfg.Backend == nil {
		warnings = append(warnings, "no backend block, using file backend at "+brand.GetDefinitionsFile())
	}
	if cfg.Syslog != nil && !cfg.Syslog.Enabled && cfg.Syslog.Host != "" {
		warnings = append(warnings, "syslog host set but syslog is not enabled")
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &LoadResult{
		Config:   cfg,
		Version:  version,
		Warnings: warnings,
	}, nil
}

// EvalContext returns the variables available to HCL expressions.
func EvalContext() *hcl.EvalContext {
	env := map[string]cty.Value{}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" || !hclsyntax.ValidIdentifier(k) {
			continue
		}
		env[k] = cty.StringVal(v)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env":        cty.ObjectVal(env),
			"config_dir": cty.StringVal(brand.GetConfigDir()),
			"state_dir":  cty.StringVal(brand.GetStateDir()),
			"log_dir":    cty.StringVal(brand.GetLogDir()),
			"run_dir":    cty.StringVal(brand.GetRunDir()),
		},
	}
}

// Describe renders the effective config for `scribe check`.
func (c *Config) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "schema_version      = %q\n", c.SchemaVersion)
	fmt.Fprintf(&b, "traffic_log         = %q\n", c.TrafficLog)
	fmt.Fprintf(&b, "conn_new_log        = %q\n", c.ConnNewLog)
	fmt.Fprintf(&b, "connections_log     = %q\n", c.ConnectionsLog)
	fmt.Fprintf(&b, "nflog_group         = %d\n", c.NFLogGroup)
	fmt.Fprintf(&b, "conntrack           = %t\n", c.ConntrackEnabled())
	fmt.Fprintf(&b, "idle_interval       = %q\n", c.IdleInterval)
	fmt.Fprintf(&b, "read_timeout        = %q\n", c.ReadTimeout)
	fmt.Fprintf(&b, "reload_sync_timeout = %q\n", c.ReloadSyncTimeout)
	if c.Backend != nil {
		fmt.Fprintf(&b, "backend %q { path = %q }\n", c.Backend.Type, c.Backend.Path)
	}
	return b.String()
}
