package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRecorders(t *testing.T) {
	m := New("test")

	m.RecordDetection("detect", "vs_format")
	m.RecordDetection("detect", "vs_format")
	m.RecordProposal("auto_settle")
	m.RecordMarketCreated(decimal.NewFromInt(100))
	m.RecordSettlement("auto", nil)
	m.RecordSettlement("auto", errors.New("boom"))
	m.RecordCycle(time.Second, 7, 2, nil)

	body := scrape(t, m)
	assert.Contains(t, body, `test_detections_total{pattern="vs_format",source="detect"} 2`)
	assert.Contains(t, body, `test_settlement_proposals_total{status="auto_settle"} 1`)
	assert.Contains(t, body, `test_markets_created_total 1`)
	assert.Contains(t, body, `test_market_liquidity_seeded_total 100`)
	assert.Contains(t, body, `test_settlements_total{kind="auto",result="error"} 1`)
	assert.Contains(t, body, `test_monitor_streams_seen 7`)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *OracleMetrics
	assert.NotPanics(t, func() {
		m.RecordDetection("detect", "vs_format")
		m.RecordDecision("ignore")
		m.RecordFailure("fetch")
		m.RecordHTTP(http.MethodGet, 200, time.Millisecond)
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New("")
	m.RecordDecision("create_market")

	assert.Contains(t, scrape(t, m), `battleoracle_decisions_total{decision="create_market"} 1`)
}

func scrape(t *testing.T, m *OracleMetrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}
