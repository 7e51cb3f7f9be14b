//go:build linux

package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/scribe/internal/logging"
	"grimm.is/scribe/internal/testutil"
)

func TestNFLog_SubscribeAndClose(t *testing.T) {
	testutil.RequireKernel(t)

	src, err := OpenNFLog(NFLogConfig{Group: 4242, ReadTimeout: 20 * time.Millisecond, Logger: logging.Discard()})
	require.NoError(t, err)

	batch, err := src.ReadBatch(context.Background(), 8)
	require.NoError(t, err)
	assert.Empty(t, batch, "nothing logs to an unused group")

	require.NoError(t, src.Close())
	assert.NoError(t, src.Close(), "second close is a no-op")
}

func TestConntrack_SubscribeAndClose(t *testing.T) {
	testutil.RequireKernel(t)

	src, err := OpenConntrack(ConntrackConfig{Workers: 1, Logger: logging.Discard()})
	require.NoError(t, err)

	_, _, err = src.ReadOne()
	require.NoError(t, err)
	require.NoError(t, src.Close())
}
