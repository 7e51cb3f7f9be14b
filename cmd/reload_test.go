package cmd

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"grimm.is/scribe/internal/ctlplane"
	"grimm.is/scribe/internal/errors"
)

func TestRunReload_Success(t *testing.T) {
	client := &ctlplane.MockControlPlaneClient{}
	client.On("Reload", 5*time.Second).
		After(50*time.Millisecond).
		Return(&ctlplane.ReloadReply{ID: "r1", Result: ctlplane.ResultOK}, nil)
	client.On("Progress").Return(&ctlplane.ProgressReply{Progress: 40, Reloading: true}, nil).Maybe()

	var out bytes.Buffer
	require.NoError(t, RunReload(client, ReloadOptions{Timeout: 5 * time.Second, Poll: 5 * time.Millisecond}, &out))

	assert.Contains(t, out.String(), "reload complete")
	assert.LessOrEqual(t, bytes.Count(out.Bytes(), []byte("40%")), 1, "unchanged progress is printed once")
	client.AssertCalled(t, "Reload", 5*time.Second)
}

func TestRunReload_FailureReportsStep(t *testing.T) {
	client := &ctlplane.MockControlPlaneClient{}
	client.On("Reload", mock.Anything).Return(&ctlplane.ReloadReply{
		Result:  ctlplane.ResultFailed,
		Step:    "zones",
		Message: "zones table is locked",
	}, nil)

	err := RunReload(client, ReloadOptions{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zones")
	assert.Equal(t, "zones", errors.GetAttributes(err)["step"])
	client.AssertCalled(t, "Reload", ctlplane.DefaultReloadTimeout)
}

func TestRunReload_TransportError(t *testing.T) {
	client := &ctlplane.MockControlPlaneClient{}
	client.On("Reload", mock.Anything).Return(nil, errors.New(errors.KindTimeout, "reload did not complete in time"))

	err := RunReload(client, ReloadOptions{Timeout: time.Second}, &bytes.Buffer{})
	assert.Equal(t, errors.KindTimeout, errors.GetKind(err))
}

func startSleeper(t *testing.T) (pidPath string, proc *exec.Cmd) {
	t.Helper()
	proc = exec.Command("sleep", "30")
	require.NoError(t, proc.Start())
	go proc.Wait()
	t.Cleanup(func() { proc.Process.Kill() })

	pidPath = filepath.Join(t.TempDir(), "scribe.pid")
	require.NoError(t, os.WriteFile(pidPath, []byte(strconv.Itoa(proc.Process.Pid)+"\n"), 0644))
	return pidPath, proc
}

func TestRunStop(t *testing.T) {
	pidPath, proc := startSleeper(t)

	var out bytes.Buffer
	require.NoError(t, RunStop(pidPath, 5*time.Second, &out))
	assert.Contains(t, out.String(), "Sent SIGTERM to process "+strconv.Itoa(proc.Process.Pid))
	assert.Contains(t, out.String(), "Stopped.")
}

func TestRunStop_NoPIDFile(t *testing.T) {
	err := RunStop(filepath.Join(t.TempDir(), "scribe.pid"), 0, &bytes.Buffer{})
	assert.Equal(t, errors.KindNotFound, errors.GetKind(err))
}
