package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/scribe/internal/ctlplane"
	"grimm.is/scribe/internal/daemon"
	"grimm.is/scribe/internal/errors"
)

func sampleStatus(started time.Time) *ctlplane.StatusReply {
	return &ctlplane.StatusReply{
		PID:            4242,
		Version:        "1.2.3",
		StartedAt:      started,
		State:          "idle",
		Backend:        "file:/etc/scribe/definitions.hcl",
		Counters:       map[string]uint64{"ACCEPT": 12, "DROP": 3, "REJECT": 0},
		Invalid:        1,
		Total:          16,
		Dropped:        map[string]uint64{"nflog": 2},
		ZoneEntries:    7,
		ZoneBuckets:    21,
		ServiceEntries: 2,
		ServiceBuckets: 1000,
		Services:       2,
		Reloads:        1,
		LastReload:     started.Add(time.Minute),
	}
}

func TestRenderStatus(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	text := RenderStatus(sampleStatus(started), started.Add(90*time.Minute))

	assert.Contains(t, text, "IDLE")
	assert.Contains(t, text, "4242")
	assert.Contains(t, text, "1h30m0s")
	assert.Contains(t, text, "ACCEPT")
	assert.Contains(t, text, "DROP")
	assert.NotContains(t, text, "REJECT", "zero counters are hidden")
	assert.Contains(t, text, "nflog:")
	assert.Contains(t, text, "7 entries in 21 buckets")
}

func TestRenderStatus_FailedReload(t *testing.T) {
	st := sampleStatus(time.Now())
	st.LastResult = ctlplane.ResultFailed
	assert.Contains(t, RenderStatus(st, time.Now()), "failed")
}

func TestRunStatus(t *testing.T) {
	client := &ctlplane.MockControlPlaneClient{}
	client.On("Status").Return(sampleStatus(time.Now()), nil).Once()

	var out bytes.Buffer
	require.NoError(t, RunStatus(client, &out))
	assert.Contains(t, out.String(), "file:/etc/scribe/definitions.hcl")
	client.AssertExpectations(t)
}

func TestRunStatus_Unavailable(t *testing.T) {
	client := &ctlplane.MockControlPlaneClient{}
	client.On("Status").Return(nil, errors.New(errors.KindUnavailable, "status is not available"))

	err := RunStatus(client, &bytes.Buffer{})
	assert.Equal(t, errors.KindUnavailable, errors.GetKind(err))
}

func TestRenderSummary(t *testing.T) {
	text := RenderSummary([]daemon.SummaryRow{
		{Name: "ACCEPT", Value: 1500},
		{Name: "invalid", Value: 0},
		{Name: "total", Value: 1500},
	})
	assert.Contains(t, text, "Records")
	assert.Contains(t, text, "ACCEPT")
	assert.Contains(t, text, "invalid")
	assert.Contains(t, text, "total")
}
