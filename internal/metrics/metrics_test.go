package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/srg/blethermo/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersAndServes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.ReadingsAccepted.Inc()
	m.ObserveLogWrite(true)
	m.ObserveLogWrite(false)
	m.ObserveLogWrite(false)
	m.Temperature.Set(21.5)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReadingsAccepted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LogWrites.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LogWrites.WithLabelValues("error")))

	rec := httptest.NewRecorder()
	metrics.Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "blethermo_temperature_celsius 21.5")
	assert.Contains(t, string(body), `blethermo_datalog_writes_total{result="error"} 2`)
}

func TestWatchQueue(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	depth, sent := 3, int64(7)
	m.WatchQueue("raw", func() int { return depth }, func() int64 { return sent })
	m.WatchQueue("accepted", func() int { return 0 }, func() int64 { return 0 })

	expected := `
# HELP blethermo_queue_depth Messages buffered between pipeline stages.
# TYPE blethermo_queue_depth gauge
blethermo_queue_depth{queue="accepted"} 0
blethermo_queue_depth{queue="raw"} 3
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "blethermo_queue_depth"))

	depth = 1
	expected = strings.Replace(expected, `{queue="raw"} 3`, `{queue="raw"} 1`, 1)
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "blethermo_queue_depth"))
	count, err := testutil.GatherAndCount(reg, "blethermo_queue_sent_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNew_NilRegistererIsIsolated(t *testing.T) {
	a := metrics.New(nil)
	b := metrics.New(nil)

	a.ScanCycles.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.ScanCycles))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ScanCycles))
}
