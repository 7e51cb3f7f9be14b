package ctlplane

import "time"

// ControlPlaneClient is what the CLI needs from the daemon.
// This interface enables mocking in unit tests.
type ControlPlaneClient interface {
	Close() error
	Reload(timeout time.Duration) (*ReloadReply, error)
	Progress() (*ProgressReply, error)
	Status() (*StatusReply, error)
}

var _ ControlPlaneClient = (*Client)(nil)
