package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/scribe/internal/nameindex"
	"grimm.is/scribe/internal/record"
)

func TestCountersCollector(t *testing.T) {
	var c record.Counters
	c.Count(record.StatusResolved, record.ActionDrop)
	c.Count(record.StatusPartiallyResolved, record.ActionDrop)
	c.Count(record.StatusResolved, record.ActionConnNew)
	c.Count(record.StatusInvalid, record.ActionNone)

	coll := NewCountersCollector(&c)
	expected := `
# HELP scribe_invalid_records_total Records dropped because they carried no action
# TYPE scribe_invalid_records_total counter
scribe_invalid_records_total 1
`
	require.NoError(t, testutil.CollectAndCompare(coll, strings.NewReader(expected), "scribe_invalid_records_total"))

	// one series per action
	assert.Equal(t, len(record.Actions())+1, testutil.CollectAndCount(coll))

	c.Count(record.StatusResolved, record.ActionDrop)
	out := gather(t, New(&c))
	assert.Contains(t, out, `scribe_records_total{action="DROP"} 3`)
	assert.Contains(t, out, `scribe_records_total{action="NEW"} 1`)
}

func TestRecordReload(t *testing.T) {
	r := New(nil)
	now := time.Unix(1700000000, 0)

	r.RecordReload(true, 20*time.Millisecond, now)
	r.RecordReload(false, time.Millisecond, now.Add(time.Minute))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.ReloadsTotal.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ReloadsTotal.WithLabelValues(ResultFailure)))
	assert.Equal(t, float64(now.Unix()), testutil.ToFloat64(r.LastReload))
}

func TestSetIndex(t *testing.T) {
	r := New(nil)
	r.SetIndex(nameindex.Stats{
		ZoneEntries: 12, ZoneBuckets: 36,
		ServiceEntries: 1000, ServiceBuckets: 500000,
		Services: nameindex.ChainStats{Max: 2},
	})

	assert.Equal(t, 12.0, testutil.ToFloat64(r.IndexEntries.WithLabelValues("zones")))
	assert.Equal(t, 500000.0, testutil.ToFloat64(r.IndexBuckets.WithLabelValues("services")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.ChainMax.WithLabelValues("services")))
}

func TestDropCounter(t *testing.T) {
	var n uint64 = 7
	r := New(nil)
	require.NoError(t, r.Register(DropCounter("nflog", func() uint64 { return n })))
	assert.Contains(t, gather(t, r), `scribe_source_dropped_total{source="nflog"} 7`)
}

func TestServer(t *testing.T) {
	var c record.Counters
	c.Count(record.StatusResolved, record.ActionAccept)

	srv, err := Listen("127.0.0.1:0", "/metrics", New(&c))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.Serve(ctx)
		close(done)
	}()

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `scribe_records_total{action="ACCEPT"} 1`)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func gather(t *testing.T, r *Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	promhttp.HandlerFor(r.Gatherer(), promhttp.HandlerOpts{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}
