package metrics

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counters(t *testing.T) {
	r := New()

	r.ProbeStarted("PARAM_URL")
	r.ProbeStarted("PARAM_URL")
	r.ProbeStarted("PARAM_JSON")
	r.RequestSent()
	r.FindingReported("Array confusion found in JSON body")
	r.ProbeFailed()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.probesTotal.WithLabelValues("PARAM_URL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.probesTotal.WithLabelValues("PARAM_JSON")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.requestsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.findingsTotal.WithLabelValues("Array confusion found in JSON body")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.probeErrorsTotal))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ProbeStarted("PARAM_URL")
		r.RequestSent()
		r.FindingReported("x")
		r.ProbeFailed()
	})
}

func TestRecorder_Serve(t *testing.T) {
	r := New()
	r.RequestSent()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, _, err := r.Serve(ctx, "127.0.0.1:0")
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "typeconfusion_requests_total 1")
}
