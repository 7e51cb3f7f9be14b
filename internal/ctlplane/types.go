package ctlplane

import "time"

// Result codes returned to reload requesters.
const (
	ResultOK     = 0
	ResultFailed = -1
)

// Empty is used for methods with no arguments.
type Empty struct{}

// ReloadArgs asks for one reload cycle. Timeout bounds how long the call
// waits for completion; zero uses the server default.
type ReloadArgs struct {
	Timeout time.Duration
}

// ReloadReply reports how the cycle ended.
type ReloadReply struct {
	ID     string
	Result int
	// Step names the failing step when Result is ResultFailed.
	Step    string
	Message string
}

// ProgressReply is a snapshot of the reload progress.
type ProgressReply struct {
	ID        string
	Progress  int
	Reloading bool
	// Requested is true when a request is queued but not yet picked up.
	Requested  bool
	LastResult int
	LastStep   string
	Cycles     uint64
}

// StatusReply describes the running daemon.
type StatusReply struct {
	PID        int
	Version    string
	StartedAt  time.Time
	State      string
	ConfigFile string
	Backend    string

	Counters map[string]uint64
	Invalid  uint64
	Total    uint64
	Dropped  map[string]uint64

	ZoneEntries    int
	ZoneBuckets    int
	ServiceEntries int
	ServiceBuckets int
	Zones          []string
	Services       int

	Reloads    uint64
	LastReload time.Time
	LastResult int
}
