package ctlplane

import (
	"net/rpc"
	"strings"
	"sync"
	"time"

	"grimm.is/scribe/internal/errors"
)

// Client is the RPC client for the daemon's control socket.
type Client struct {
	path   string
	client *rpc.Client
	mu     sync.RWMutex
}

// NewClient connects to the control socket at path.
func NewClient(path string) (*Client, error) {
	client, err := rpc.Dial("unix", path)
	if err != nil {
		return nil, errors.Attr(errors.Wrap(err, errors.KindUnavailable, "failed to connect to daemon (is it running?)"), "path", path)
	}
	return &Client{path: path, client: client}, nil
}

// Close closes the RPC connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		err := c.client.Close()
		c.client = nil
		return err
	}
	return nil
}

// call wraps the RPC call with reconnection logic
func (c *Client) call(serviceMethod string, args any, reply any) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	if client == nil {
		if err := c.reconnect(nil); err != nil {
			return err
		}
		c.mu.RLock()
		client = c.client
		c.mu.RUnlock()
	}

	err := client.Call(serviceMethod, args, reply)
	if err == nil {
		return nil
	}

	if err == rpc.ErrShutdown || isNetworkError(err) {
		// pass the failed client so concurrent callers reconnect once
		if recErr := c.reconnect(client); recErr != nil {
			return errors.Wrapf(recErr, errors.KindUnavailable, "RPC call failed (%v) and reconnection failed", err)
		}
		c.mu.RLock()
		client = c.client
		c.mu.RUnlock()
		err = client.Call(serviceMethod, args, reply)
	}
	if err != nil {
		return remoteError(err)
	}
	return nil
}

func (c *Client) reconnect(oldClient *rpc.Client) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != oldClient && c.client != nil {
		return nil
	}
	if c.client != nil {
		c.client.Close()
	}

	client, err := rpc.Dial("unix", c.path)
	if err != nil {
		return errors.Attr(errors.Wrap(err, errors.KindUnavailable, "failed to reconnect to daemon"), "path", c.path)
	}
	c.client = client
	return nil
}

func isNetworkError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "connection is shut down") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "bad file descriptor") ||
		strings.Contains(msg, "unexpected EOF") ||
		strings.Contains(msg, "use of closed network connection")
}

// remoteError restores the kind of errors that crossed the wire as text.
func remoteError(err error) error {
	se, ok := err.(rpc.ServerError)
	if !ok {
		return errors.Wrap(err, errors.KindUnavailable, "RPC call failed")
	}
	msg := string(se)
	kind := errors.KindInternal
	switch {
	case strings.Contains(msg, "did not complete in time"), strings.Contains(msg, "cancelled"):
		kind = errors.KindTimeout
	case strings.Contains(msg, "not available"):
		kind = errors.KindUnavailable
	}
	return errors.New(kind, msg)
}

// Reload asks the daemon for a reload and waits up to timeout for the result.
func (c *Client) Reload(timeout time.Duration) (*ReloadReply, error) {
	var reply ReloadReply
	if err := c.call("Control.Reload", &ReloadArgs{Timeout: timeout}, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// Progress returns the current reload progress.
func (c *Client) Progress() (*ProgressReply, error) {
	var reply ProgressReply
	if err := c.call("Control.Progress", &Empty{}, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// Status returns the daemon status.
func (c *Client) Status() (*StatusReply, error) {
	var reply StatusReply
	if err := c.call("Control.Status", &Empty{}, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}
