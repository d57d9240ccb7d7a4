package metrics_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/serroba/docstore/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordBatch(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	m.RecordBatch("generate", 3, 10*time.Millisecond, nil)
	m.RecordBatch("import", 1, time.Millisecond, errors.New("boom"))

	expected := `
# HELP docstore_bulk_batches_total Bulk write requests by mode and status
# TYPE docstore_bulk_batches_total counter
docstore_bulk_batches_total{mode="generate",status="ok"} 1
docstore_bulk_batches_total{mode="import",status="error"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"docstore_bulk_batches_total"))
}

func TestMetrics_RecordItemAndSeq(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	m.RecordItem("generate", "ok")
	m.RecordItem("generate", "ok")
	m.RecordItem("generate", "conflict")
	m.SetLastSeq(42)

	count, err := testutil.GatherAndCount(m.Registry(), "docstore_bulk_items_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	expected := `
# HELP docstore_changes_last_seq Highest sequence number assigned
# TYPE docstore_changes_last_seq gauge
docstore_changes_last_seq 42
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"docstore_changes_last_seq"))
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	m.RecordRequest(http.MethodPost, "/_bulk_docs", "201")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `docstore_http_requests_total{code="201",method="POST",route="/_bulk_docs"} 1`)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *metrics.Metrics

	m.RecordBatch("generate", 1, time.Second, nil)
	m.RecordItem("generate", "ok")
	m.SetLastSeq(1)
	m.RecordRequest("GET", "/", "200")

	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
