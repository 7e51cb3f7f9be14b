package ctlplane

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"grimm.is/scribe/internal/errors"
)

// Completion is what a finished cycle hands to its requesters.
type Completion struct {
	Result  int
	Step    string
	Message string
}

type reloadRequest struct {
	id      string
	waiters int
	done    chan struct{} // closed by Complete
	acked   chan struct{} // closed once every waiter has left after completion
	result  Completion
	closed  bool
}

// leave must be called with Channel.mu held.
func (r *reloadRequest) leave() {
	r.waiters--
	if r.waiters == 0 && r.closed {
		close(r.acked)
	}
}

// Ticket identifies the request a reload cycle is serving. A nil Ticket means
// the cycle was started by a signal and nobody is waiting.
type Ticket struct {
	req *reloadRequest
}

// ID returns the request id, or "" for a nil Ticket.
func (t *Ticket) ID() string {
	if t == nil {
		return ""
	}
	return t.req.id
}

// Channel is the reload handshake between requesters and the event loop.
type Channel struct {
	mu sync.Mutex

	// pending collects requesters until the loop takes it. Requests arriving
	// while a cycle runs queue for the next cycle.
	pending *reloadRequest
	active  *reloadRequest

	progress   int
	reloading  bool
	lastResult Completion
	cycles     uint64
}

// NewChannel returns an idle channel.
func NewChannel() *Channel {
	return &Channel{}
}

// Request sets the reload flag and waits for the cycle to complete. Callers
// that arrive before the loop picks the flag up share one cycle.
func (c *Channel) Request(ctx context.Context, timeout time.Duration) (string, Completion, error) {
	c.mu.Lock()
	if c.pending == nil {
		c.pending = &reloadRequest{
			id:    uuid.NewString(),
			done:  make(chan struct{}),
			acked: make(chan struct{}),
		}
	}
	req := c.pending
	req.waiters++
	c.mu.Unlock()

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case <-req.done:
		c.mu.Lock()
		res := req.result
		req.leave()
		c.mu.Unlock()
		return req.id, res, nil
	case <-timer:
		c.mu.Lock()
		req.leave()
		c.mu.Unlock()
		return req.id, Completion{}, errors.Attr(errors.New(errors.KindTimeout, "reload did not complete in time"), "id", req.id)
	case <-ctx.Done():
		c.mu.Lock()
		req.leave()
		c.mu.Unlock()
		return req.id, Completion{}, errors.Wrap(ctx.Err(), errors.KindTimeout, "reload request cancelled")
	}
}

// Pending reports whether a requester is waiting for a cycle.
func (c *Channel) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// Begin starts a cycle: progress resets to 0 and the pending request, if
// any, becomes the one this cycle serves.
func (c *Channel) Begin() *Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.progress = 0
	c.reloading = true
	if c.pending == nil {
		c.active = nil
		return nil
	}
	c.active, c.pending = c.pending, nil
	return &Ticket{req: c.active}
}

// SetProgress publishes progress for the running cycle. Values lower than the
// current one are ignored so readers never see progress go backwards.
func (c *Channel) SetProgress(p int) {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	c.mu.Lock()
	if p > c.progress {
		c.progress = p
	}
	c.mu.Unlock()
}

// Progress returns the current cycle's progress.
func (c *Channel) Progress() ProgressReply {
	c.mu.Lock()
	defer c.mu.Unlock()
	reply := ProgressReply{
		Progress:   c.progress,
		Reloading:  c.reloading,
		Requested:  c.pending != nil,
		LastResult: c.lastResult.Result,
		LastStep:   c.lastResult.Step,
		Cycles:     c.cycles,
	}
	if c.active != nil {
		reply.ID = c.active.id
	}
	return reply
}

// Complete ends the cycle and hands res to the requesters of t. It then waits
// up to timeout for them to collect the result. A timeout is reported but the
// cycle is finished either way.
func (c *Channel) Complete(t *Ticket, res Completion, timeout time.Duration) error {
	c.mu.Lock()
	c.reloading = false
	c.lastResult = res
	c.cycles++
	if t == nil || t.req != c.active {
		c.mu.Unlock()
		return nil
	}
	req := c.active
	c.active = nil
	req.result = res
	req.closed = true
	close(req.done)
	if req.waiters == 0 {
		close(req.acked)
	}
	c.mu.Unlock()

	if timeout <= 0 {
		return nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-req.acked:
		return nil
	case <-timer.C:
		return errors.Attr(errors.New(errors.KindTimeout, "requester did not collect the reload result"), "id", req.id)
	}
}
