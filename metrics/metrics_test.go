package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sampler/define"
)

func scrape(t *testing.T, m *Metrics) string {
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestObserve(t *testing.T) {
	m := New()
	m.ObserveTick(40305, 1013.2)
	m.ObserveTick(40306, 1013)
	m.ObserveTank("1", 101.5, define.InvalidReading)
	m.SetTankState("1", define.TankSampled)
	m.SetPlumbingState(define.PlumbingMainLineFailure)
	m.SetThermalTripped()
	m.IncSampleAttempt("1")

	body := scrape(t, m)
	assert.Contains(t, body, "sampler_log_ticks_total 2")
	assert.Contains(t, body, "sampler_t_plus_ms 40306")
	assert.Contains(t, body, "sampler_canister_pressure_hpa 1013")
	assert.Contains(t, body, `sampler_tank_pressure_hpa{tank="1"} 101.5`)
	assert.Contains(t, body, `sampler_tank_state{tank="1"} 6`)
	assert.Contains(t, body, "sampler_plumbing_state 1")
	assert.Contains(t, body, "sampler_thermal_tripped 1")
	assert.Contains(t, body, `sampler_sample_attempts_total{collection="1"} 1`)
	assert.NotContains(t, body, "sampler_tank_temperature_kelvin{")
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveTick(1, 2)
		m.ObserveTank("1", 1, 2)
		m.SetThermalTripped()
		m.IncAccelOverrun()
	})
}
