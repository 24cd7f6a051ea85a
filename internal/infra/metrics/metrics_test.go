package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()
	m.ObserveRow("certificate", false)
	m.ObserveRow("certificate", false)
	m.ObserveRow("certificate", true)
	m.ObserveBatch("certificate", "completed")
	m.ObserveBatch("certificate", "partial")
	m.ObserveBatch("offer_letter", "rejected")
	m.ObserveDispatch(nil)
	m.ObserveDispatch(errors.New("smtp down"))
	m.ObserveRender("certificate", 150*time.Millisecond, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.rows.WithLabelValues("certificate", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rows.WithLabelValues("certificate", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.batches.WithLabelValues("certificate", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.batches.WithLabelValues("certificate", "partial")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.batches.WithLabelValues("offer_letter", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatches.WithLabelValues("failed")))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRow("certificate", true)
	m.ObserveBatch("certificate", "rejected")
	m.ObserveRender("certificate", time.Second, nil)
	m.ObserveDispatch(nil)
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveRow("offer_letter", false)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `certdispatch_batch_rows_total{kind="offer_letter",outcome="success"} 1`)
}
