package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_Namespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.MintsListed.Add(3)
	m.LookupsCompleted.WithLabelValues("holder", "resolved").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "test_collection_mints_listed_total")
	assert.Contains(t, names, "test_resolver_lookups_completed_total")
}

func TestNewMetrics_DefaultNamespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("", reg)

	m.RunsTotal.WithLabelValues("fresh", "success").Inc()

	expected := `
# HELP nft_holders_snapshot_runs_total Total number of snapshot runs by mode and status
# TYPE nft_holders_snapshot_runs_total counter
nft_holders_snapshot_runs_total{mode="fresh",status="success"} 1
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "nft_holders_snapshot_runs_total")
	assert.NoError(t, err)
}

func TestRecordFunctions(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.LookupsCompleted.WithLabelValues("owner", "failed"))
	RecordLookup("owner", "failed")
	assert.Equal(t, before+1, testutil.ToFloat64(DefaultMetrics.LookupsCompleted.WithLabelValues("owner", "failed")))

	before = testutil.ToFloat64(DefaultMetrics.RetryAttempts.WithLabelValues("holder"))
	RecordRetry("holder")
	assert.Equal(t, before+1, testutil.ToFloat64(DefaultMetrics.RetryAttempts.WithLabelValues("holder")))

	before = testutil.ToFloat64(DefaultMetrics.RPCCallErrors.WithLabelValues("getAccountInfo"))
	RecordRPCLatency("getAccountInfo", 0.1, nil)
	RecordRPCLatency("getAccountInfo", 0.2, errors.New("boom"))
	assert.Equal(t, before+1, testutil.ToFloat64(DefaultMetrics.RPCCallErrors.WithLabelValues("getAccountInfo")))

	beforeOK := testutil.ToFloat64(DefaultMetrics.RowsSaved.WithLabelValues("succeeded"))
	beforeFailed := testutil.ToFloat64(DefaultMetrics.RowsSaved.WithLabelValues("failed"))
	RecordRowsSaved(5, 2)
	assert.Equal(t, beforeOK+5, testutil.ToFloat64(DefaultMetrics.RowsSaved.WithLabelValues("succeeded")))
	assert.Equal(t, beforeFailed+2, testutil.ToFloat64(DefaultMetrics.RowsSaved.WithLabelValues("failed")))

	MarkRunSucceeded(1700000000)
	assert.Equal(t, float64(1700000000), testutil.ToFloat64(DefaultMetrics.LastSuccessfulRun))
}

func TestTrackInFlight(t *testing.T) {
	g := DefaultMetrics.StageInFlight.WithLabelValues("test-stage")

	done := TrackInFlight("test-stage")
	assert.Equal(t, float64(1), testutil.ToFloat64(g))

	done()
	assert.Equal(t, float64(0), testutil.ToFloat64(g))
}

func TestHandler(t *testing.T) {
	RecordMintsListed(1)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "nft_holders_collection_mints_listed_total")
}
