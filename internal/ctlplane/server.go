package ctlplane

import (
	"context"
	"net"
	"net/rpc"
	"os"
	"path/filepath"
	"sync"

	"grimm.is/scribe/internal/config"
	"grimm.is/scribe/internal/errors"
	"grimm.is/scribe/internal/logging"
)

// DefaultReloadTimeout bounds a Control.Reload call when the caller gives
// none. It matches how long the daemon waits for the requester.
const DefaultReloadTimeout = config.DefaultReloadSyncTimeout

// StatusFunc builds a status snapshot. It is called from RPC goroutines and
// must only read atomics or other concurrency-safe state.
type StatusFunc func() StatusReply

// Control is the RPC receiver registered as "Control".
type Control struct {
	ctx    context.Context
	ch     *Channel
	status StatusFunc
	logger *logging.Logger
}

// Reload requests a cycle and waits for it.
func (c *Control) Reload(args *ReloadArgs, reply *ReloadReply) error {
	timeout := args.Timeout
	if timeout <= 0 {
		timeout = DefaultReloadTimeout
	}

	c.logger.Info("reload requested")
	id, res, err := c.ch.Request(c.ctx, timeout)
	reply.ID = id
	if err != nil {
		return err
	}
	reply.Result = res.Result
	reply.Step = res.Step
	reply.Message = res.Message
	return nil
}

// Progress reports the running cycle's progress.
func (c *Control) Progress(args *Empty, reply *ProgressReply) error {
	*reply = c.ch.Progress()
	return nil
}

// Status reports counters and index sizes.
func (c *Control) Status(args *Empty, reply *StatusReply) error {
	if c.status == nil {
		return errors.New(errors.KindUnavailable, "status not available")
	}
	*reply = c.status()
	return nil
}

// Server serves Control on a unix socket.
type Server struct {
	rpc      *rpc.Server
	logger   *logging.Logger
	cancel   context.CancelFunc
	mu       sync.Mutex
	listener net.Listener
	path     string
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
}

// NewServer registers Control over ch.
func NewServer(ch *Channel, status StatusFunc) (*Server, error) {
	logger := logging.WithComponent("ctlplane")
	ctx, cancel := context.WithCancel(context.Background())
	srv := rpc.NewServer()
	if err := srv.RegisterName("Control", &Control{ctx: ctx, ch: ch, status: status, logger: logger}); err != nil {
		cancel()
		return nil, errors.Wrap(err, errors.KindInternal, "failed to register RPC service")
	}
	return &Server{rpc: srv, logger: logger, cancel: cancel, conns: make(map[net.Conn]struct{})}, nil
}

// Start listens on the unix socket at path, replacing a leftover socket file.
func (s *Server) Start(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Attr(errors.Wrap(err, errors.KindIO, "failed to create socket directory"), "path", path)
	}
	os.Remove(path)

	listener, err := net.Listen("unix", path)
	if err != nil {
		return errors.Attr(errors.Wrap(err, errors.KindUnavailable, "failed to listen"), "path", path)
	}
	if err := os.Chmod(path, 0660); err != nil {
		listener.Close()
		return errors.Attr(errors.Wrap(err, errors.KindIO, "failed to set socket permissions"), "path", path)
	}
	s.path = path
	return s.StartWithListener(listener)
}

// StartWithListener serves on an existing listener.
func (s *Server) StartWithListener(listener net.Listener) error {
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("control channel listening", "addr", listener.Addr().String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := listener.Accept()
			if err != nil {
				if !errors.Is(err, net.ErrClosed) {
					s.logger.Error("accept failed", errors.LogArgs(err)...)
				}
				return
			}
			s.track(conn, true)
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer s.track(conn, false)
				defer func() {
					if r := recover(); r != nil {
						s.logger.Error("RPC connection handler panicked", "panic", r)
					}
				}()
				s.rpc.ServeConn(conn)
			}()
		}
	}()
	return nil
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

// Stop closes the listener and every open connection, then removes the
// socket file. Requesters blocked in Reload are released.
func (s *Server) Stop() error {
	s.cancel()
	s.mu.Lock()
	var err error
	if s.listener != nil {
		err = s.listener.Close()
		s.listener = nil
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	if s.path != "" {
		os.Remove(s.path)
	}
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return errors.Wrap(err, errors.KindIO, "failed to close control listener")
	}
	return nil
}
