package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("GET", "/x", 200, time.Millisecond)
		m.ObserveStats(time.Millisecond)
		m.StatsCacheHit()
		m.StatsCacheMiss()
		m.ExpenseWrite("create")
		m.EventPublished(true)
		m.EventConsumed(false)
	})
}

func TestCountersAndHandler(t *testing.T) {
	m := New()
	m.StatsCacheHit()
	m.StatsCacheHit()
	m.StatsCacheMiss()
	m.ExpenseWrite("create")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.statsCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.statsCache.WithLabelValues("miss")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "moneylens_stats_cache_lookups_total"))
	assert.True(t, strings.Contains(body, "moneylens_expenses_writes_total"))
}
