package ctlplane

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/scribe/internal/config"
	"grimm.is/scribe/internal/errors"
)

func socketPath(t *testing.T) string {
	t.Helper()
	// unix socket paths are short; t.TempDir can exceed the limit
	dir, err := os.MkdirTemp("", "scribe-ctl")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "ctl.sock")
}

// serveLoop plays the event loop: it completes every request with result.
func serveLoop(t *testing.T, ch *Channel, res Completion) chan struct{} {
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
			}
			if ch.Pending() {
				ticket := ch.Begin()
				for _, p := range []int{10, 50, 100} {
					ch.SetProgress(p)
				}
				ch.Complete(ticket, res, time.Second)
			}
			time.Sleep(time.Millisecond)
		}
	}()
	t.Cleanup(func() { close(stop) })
	return stop
}

func TestServer_ReloadOverSocket(t *testing.T) {
	path := socketPath(t)
	ch := NewChannel()
	srv, err := NewServer(ch, func() StatusReply {
		return StatusReply{PID: 42, State: "idle", Counters: map[string]uint64{"DROP": 3}}
	})
	require.NoError(t, err)
	require.NoError(t, srv.Start(path))
	defer srv.Stop()

	serveLoop(t, ch, Completion{Result: ResultOK})

	client, err := NewClient(path)
	require.NoError(t, err)
	defer client.Close()

	reply, err := client.Reload(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, ResultOK, reply.Result)
	assert.NotEmpty(t, reply.ID)

	progress, err := client.Progress()
	require.NoError(t, err)
	assert.Equal(t, 100, progress.Progress)
	assert.GreaterOrEqual(t, progress.Cycles, uint64(1))

	status, err := client.Status()
	require.NoError(t, err)
	assert.Equal(t, 42, status.PID)
	assert.Equal(t, uint64(3), status.Counters["DROP"])
}

func TestServer_ReloadFailureResult(t *testing.T) {
	path := socketPath(t)
	ch := NewChannel()
	srv, err := NewServer(ch, nil)
	require.NoError(t, err)
	require.NoError(t, srv.Start(path))
	defer srv.Stop()

	serveLoop(t, ch, Completion{Result: ResultFailed, Step: "services"})

	client, err := NewClient(path)
	require.NoError(t, err)
	defer client.Close()

	reply, err := client.Reload(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, ResultFailed, reply.Result)
	assert.Equal(t, "services", reply.Step)

	_, err = client.Status()
	require.Error(t, err)
	assert.Equal(t, errors.KindUnavailable, errors.GetKind(err))
}

func TestServer_ReloadTimeout(t *testing.T) {
	path := socketPath(t)
	srv, err := NewServer(NewChannel(), nil)
	require.NoError(t, err)
	require.NoError(t, srv.Start(path))
	defer srv.Stop()

	client, err := NewClient(path)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Reload(20 * time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, errors.KindTimeout, errors.GetKind(err))
}

func TestClient_Reconnects(t *testing.T) {
	path := socketPath(t)
	status := func() StatusReply { return StatusReply{State: "idle"} }

	srv, err := NewServer(NewChannel(), status)
	require.NoError(t, err)
	require.NoError(t, srv.Start(path))

	client, err := NewClient(path)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Status()
	require.NoError(t, err)

	require.NoError(t, srv.Stop())
	assert.NoFileExists(t, path)

	srv2, err := NewServer(NewChannel(), status)
	require.NoError(t, err)
	require.NoError(t, srv2.Start(path))
	defer srv2.Stop()

	reply, err := client.Status()
	require.NoError(t, err)
	assert.Equal(t, "idle", reply.State)
}

func TestNewClient_NoDaemon(t *testing.T) {
	_, err := NewClient(filepath.Join(t.TempDir(), "none.sock"))
	require.Error(t, err)
	assert.Equal(t, errors.KindUnavailable, errors.GetKind(err))
}

func TestServer_StopReleasesBlockedReload(t *testing.T) {
	path := socketPath(t)
	srv, err := NewServer(NewChannel(), nil)
	require.NoError(t, err)
	require.NoError(t, srv.Start(path))

	client, err := NewClient(path)
	require.NoError(t, err)
	defer client.Close()

	errc := make(chan error, 1)
	go func() {
		_, err := client.Reload(time.Minute)
		errc <- err
	}()
	time.Sleep(20 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		srv.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop blocked on a pending reload")
	}
	assert.Error(t, <-errc)
}

func TestDefaultReloadTimeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, DefaultReloadTimeout)
	assert.Equal(t, config.DefaultReloadSyncTimeout, DefaultReloadTimeout)
}
