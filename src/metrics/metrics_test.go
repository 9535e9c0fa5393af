package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestObserveHelpers(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObservePoll("health", nil)
	m.ObservePoll("health", errors.New("rpc down"))
	m.ObservePoll("health", nil)

	hf := 1.42
	m.ObservePosition("0xabc", &hf, 12.5, 1)
	m.ObserveWrite("reduce", "confirmed", 2)
	m.ObserveOracleUpdate(nil)

	body := scrape(t, m)
	assert.Contains(t, body, `fxhedge_polls_total{result="ok",task="health"} 2`)
	assert.Contains(t, body, `fxhedge_polls_total{result="error",task="health"} 1`)
	assert.Contains(t, body, `fxhedge_health_factor{owner="0xabc"} 1.42`)
	assert.Contains(t, body, `fxhedge_risk_severity{owner="0xabc"} 1`)
	assert.Contains(t, body, `fxhedge_writes_total{action="reduce",status="confirmed"} 1`)
	assert.Contains(t, body, `fxhedge_oracle_updates_total{result="ok"} 1`)

	m.ObservePosition("0xabc", nil, 0, 0)
	assert.NotContains(t, scrape(t, m), `fxhedge_health_factor{owner="0xabc"}`)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObservePoll("x", nil)
	m.ObserveSkip("x")
	m.ObserveDiscard("x")
	m.ObserveRate("BRL", "on_chain", 0.2)
	m.ObserveWrite("close", "failed", 0)
	m.ObserveOracleUpdate(nil)
	assert.NotNil(t, m.Handler())
}

func TestNewNoopIsUnregistered(t *testing.T) {
	m := NewNoop()
	m.ObserveSkip("rates")
	// registering a second noop set must not panic
	_ = NewNoop()
}
