package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agendacal/internal/model"
)

func TestObserveSchedule(t *testing.T) {
	m := New()
	b := model.Buckets{
		Before: []*model.CalendarEvent{{ID: "a"}, {ID: "b"}},
		After:  []*model.CalendarEvent{{ID: "c"}},
	}
	m.ObserveSchedule(b, 1, 2*time.Millisecond)
	m.ObserveSchedule(b, 0, time.Millisecond)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.scheduled.WithLabelValues("before")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.scheduled.WithLabelValues("after")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejected))
}

func TestObserveFetchAndRefresh(t *testing.T) {
	m := New()
	m.ObserveFetch("work", "fresh")
	m.ObserveFetch("work", "fresh")
	m.ObserveFetch("work", "stale")
	m.ObserveRefresh(time.Unix(1710000000, 0), nil)
	m.ObserveRefresh(time.Unix(1710000900, 0), errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.icsFetches.WithLabelValues("work", "fresh")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshes.WithLabelValues("error")))
	assert.Equal(t, 1710000000.0, testutil.ToFloat64(m.lastRefresh))
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.ObserveRequest("/api/schedule", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `agendacal_http_requests_total{route="/api/schedule",status="200"} 1`)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveSchedule(model.Buckets{}, 3, time.Second)
	m.ObserveFetch("x", "error")
	m.ObserveRefresh(time.Now(), nil)
	m.ObserveRequest("/", 200, time.Second)
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
