// Package brand provides centralized naming and default locations for scribe.
//
// The identity is loaded from brand.json at compile time via go:embed so packaging
// scripts and the binary agree on names and directories.
package brand

import (
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
)

//go:embed brand.json
var brandJSON []byte

// Brand holds all branding information
type Brand struct {
	Name                string `json:"name"`
	LowerName           string `json:"lowerName"`
	Vendor              string `json:"vendor"`
	Website             string `json:"website"`
	Repository          string `json:"repository"`
	Description         string `json:"description"`
	Tagline             string `json:"tagline"`
	ConfigEnvPrefix     string `json:"configEnvPrefix"`
	DefaultConfigDir    string `json:"defaultConfigDir"`
	DefaultStateDir     string `json:"defaultStateDir"`
	DefaultLogDir       string `json:"defaultLogDir"`
	DefaultRunDir       string `json:"defaultRunDir"`
	SocketName          string `json:"socketName"`
	BinaryName          string `json:"binaryName"`
	ServiceName         string `json:"serviceName"`
	ConfigFileName      string `json:"configFileName"`
	DefinitionsFileName string `json:"definitionsFileName"`
	Copyright           string `json:"copyright"`
	License             string `json:"license"`
}

var b Brand

func init() {
	if err := json.Unmarshal(brandJSON, &b); err != nil {
		panic("failed to parse brand.json: " + err.Error())
	}

	Name = b.Name
	LowerName = b.LowerName
	Description = b.Description
	ConfigEnvPrefix = b.ConfigEnvPrefix
	DefaultConfigDir = b.DefaultConfigDir
	DefaultStateDir = b.DefaultStateDir
	DefaultLogDir = b.DefaultLogDir
	DefaultRunDir = b.DefaultRunDir
	SocketName = b.SocketName
	BinaryName = b.BinaryName
	ConfigFileName = b.ConfigFileName
	DefinitionsFileName = b.DefinitionsFileName
	Copyright = b.Copyright
}

var (
	Name                string
	LowerName           string
	Description         string
	ConfigEnvPrefix     string
	DefaultConfigDir    string
	DefaultStateDir     string
	DefaultLogDir       string
	DefaultRunDir       string
	SocketName          string
	BinaryName          string
	ConfigFileName      string
	DefinitionsFileName string
	Copyright           string

	// Version is set at build time via -ldflags
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Get returns the full Brand struct
func Get() Brand {
	return b
}

// GetStateDir returns the state directory, checking env vars first.
// Priority: SCRIBE_STATE_DIR > SCRIBE_PREFIX/state > DefaultStateDir
func GetStateDir() string {
	return lookupDir("_STATE_DIR", "state", DefaultStateDir)
}

// GetLogDir returns the log directory, checking env vars first.
// Priority: SCRIBE_LOG_DIR > SCRIBE_PREFIX/log > DefaultLogDir
func GetLogDir() string {
	return lookupDir("_LOG_DIR", "log", DefaultLogDir)
}

// GetConfigDir returns the config directory, checking env vars first.
// Priority: SCRIBE_CONFIG_DIR > SCRIBE_PREFIX/config > DefaultConfigDir
func GetConfigDir() string {
	return lookupDir("_CONFIG_DIR", "config", DefaultConfigDir)
}

// GetRunDir returns the runtime directory for sockets and PID files.
// Priority: SCRIBE_RUN_DIR > SCRIBE_PREFIX/run > DefaultRunDir
func GetRunDir() string {
	return lookupDir("_RUN_DIR", "run", DefaultRunDir)
}

func lookupDir(envSuffix, prefixSub, fallback string) string {
	if dir := os.Getenv(ConfigEnvPrefix + envSuffix); dir != "" {
		return dir
	}
	if prefix := os.Getenv(ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, prefixSub)
	}
	return fallback
}

// GetSocketPath returns the full path to the control socket, e.g. /run/scribe/scribe-ctl.sock.
func GetSocketPath() string {
	return filepath.Join(GetRunDir(), LowerName+"-"+SocketName)
}

// GetPIDFile returns the full path to the PID marker file.
func GetPIDFile() string {
	return filepath.Join(GetRunDir(), LowerName+".pid")
}

// GetConfigFile returns the default daemon configuration file path.
func GetConfigFile() string {
	return filepath.Join(GetConfigDir(), ConfigFileName)
}

// GetDefinitionsFile returns the default zone/service/interface definitions file path.
func GetDefinitionsFile() string {
	return filepath.Join(GetConfigDir(), DefinitionsFileName)
}
