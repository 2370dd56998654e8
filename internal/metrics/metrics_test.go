package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	return rec.Body.String()
}

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.ObserveTick(OutcomeOK, 10*time.Millisecond)
	m.ObserveTick(OutcomeOK, 20*time.Millisecond)
	m.ObserveTick(OutcomePartial, time.Millisecond)
	m.InstrumentFailed("GEAR")
	m.OrdersFilled(3)
	m.AlertsFired(2)
	m.SetPrice("STMP", 2040)

	body := scrape(t, m)
	for _, want := range []string{
		`cogexchange_ticks_total{outcome="ok"} 2`,
		`cogexchange_ticks_total{outcome="partial"} 1`,
		`cogexchange_tick_duration_seconds_count 3`,
		`cogexchange_instrument_failures_total{symbol="GEAR"} 1`,
		`cogexchange_orders_filled_total 3`,
		`cogexchange_alerts_fired_total 2`,
		`cogexchange_price{symbol="STMP"} 2040`,
	} {
		assert.Contains(t, body, want)
	}
}

func TestNew_Independent(t *testing.T) {
	a, b := New(), New()
	a.OrdersFilled(1)

	assert.Contains(t, scrape(t, a), "cogexchange_orders_filled_total 1")
	assert.Contains(t, scrape(t, b), "cogexchange_orders_filled_total 0")
}
