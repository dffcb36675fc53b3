package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func Test_SubmissionMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSubmissionMetrics(reg)

	m.Started()
	m.Started()
	assert.Equal(t, float64(2), testutil.ToFloat64(m.inFlight))

	m.Finished("confirmed", 3)
	m.Finished("refused", 0)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.inFlight))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.outcomes.WithLabelValues("confirmed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.outcomes.WithLabelValues("refused")))

	m.FeesAdjusted(2)
	m.FeesAdjusted(0)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.feeAdjustments))

	m.StageCompleted("forged", 20*time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(m.stageDuration))
	assert.Equal(t, 1, testutil.CollectAndCount(m.polls))
}

func Test_NilSubmissionMetrics(t *testing.T) {
	var m *SubmissionMetrics
	assert.NotPanics(t, func() {
		m.Started()
		m.Finished("failed", 1)
		m.StageCompleted("signed", time.Second)
		m.FeesAdjusted(1)
	})
}

func Test_ServerHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSubmissionMetrics(reg)
	m.Started()
	m.Finished("confirmed", 1)

	srv := httptest.NewServer(NewServer("127.0.0.1:0", reg, zaptest.NewLogger(t)).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `tezos_client_submissions_total{state="confirmed"} 1`))
}
