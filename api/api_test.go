package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sampler/accel"
	"sampler/clock"
	"sampler/component"
	"sampler/config"
	"sampler/define"
	"sampler/device"
	"sampler/metrics"
	"sampler/process"
	"sampler/telemetry"
)

func newMission(t *testing.T) *process.Mission {
	t.Helper()
	now := int64(5000)
	c := clock.New(func() int64 { return now }, 1000, true)
	rec := telemetry.NewRecorder(&telemetry.MemorySink{}, &telemetry.MemorySink{}, func() int64 { return now }, c.TPlusMs, false)

	valves := device.NewValveManager(device.NewMemoryGPIO())
	valves.Register(27, "main")
	tank := device.NewTank("1", valves.Register(9, "tank1"), component.NewFilePressureSensor("tank1", []float64{100}))
	tank.SetState(define.TankSampled)
	tanks := device.NewTankSet(tank)

	col := device.NewCollection(config.CollectionConfig{Num: 1, UpStartTimeMs: 40305, UpDurationMs: 100})
	col.AssignTank(0)

	return process.NewMission(process.MissionOptions{
		Clock:       c,
		Recorder:    rec,
		Tanks:       tanks,
		Collections: []*device.Collection{col},
		Valves:      valves,
	})
}

type fakeAccel struct{}

func (fakeAccel) Stats() accel.Stats { return accel.Stats{Samples: 7, Connected: true} }

func newTestEngine(t *testing.T, mission MissionProvider) *httptestEngine {
	t.Helper()
	m := metrics.New()
	s := NewServer(mission, m)
	s.SetAccel(fakeAccel{})
	r := NewEngine(true)
	s.SetupRoutes(r)
	return &httptestEngine{t: t, handler: r}
}

type httptestEngine struct {
	t       *testing.T
	handler http.Handler
}

func (e *httptestEngine) get(path string) (*httptest.ResponseRecorder, map[string]any) {
	e.t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Origin", "http://pad.local")
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)

	var body map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(e.t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestGetMission(t *testing.T) {
	e := newTestEngine(t, newMission(t))
	w, body := e.get("/api/v2/mission")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", body["status"])

	data := body["data"].(map[string]any)
	assert.Equal(t, "READY", data["plumbing"])
	assert.Equal(t, false, data["thermalTripped"])
	clk := data["clock"].(map[string]any)
	assert.EqualValues(t, 4000, clk["tPlusMs"])
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestGetTanksAndCollections(t *testing.T) {
	e := newTestEngine(t, newMission(t))

	w, body := e.get("/api/v2/mission/tanks")
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]any)
	assert.EqualValues(t, 1, data["total"])
	tank := data["tanks"].([]any)[0].(map[string]any)
	assert.Equal(t, "1", tank["name"])
	assert.Equal(t, "SAMPLED", tank["state"])
	assert.EqualValues(t, 9, tank["valvePin"])

	w, body = e.get("/api/v2/mission/collections")
	require.Equal(t, http.StatusOK, w.Code)
	data = body["data"].(map[string]any)
	col := data["collections"].([]any)[0].(map[string]any)
	assert.EqualValues(t, 1, col["num"])
	assert.Equal(t, "1", col["tank"])
	assert.Equal(t, true, col["sampled"])

	w, body = e.get("/api/v2/mission/valves")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["data"].([]any), 2)
}

func TestSnapshotDoesNotConsumeReplay(t *testing.T) {
	m := newMission(t)
	e := newTestEngine(t, m)
	for i := 0; i < 3; i++ {
		w, _ := e.get("/api/v2/mission")
		require.Equal(t, http.StatusOK, w.Code)
	}
	sensor := m.Tanks().Get(0).Sensor()
	assert.InDelta(t, 100, sensor.Pressure(), 1e-9, "状态接口不应读取传感器")
}

func TestHealth(t *testing.T) {
	w, body := newTestEngine(t, newMission(t)).get("/api/v2/system/health")
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "healthy", data["status"])
	assert.Equal(t, true, data["clockReady"])

	w, body = newTestEngine(t, nil).get("/api/v2/system/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "unhealthy", body["data"].(map[string]any)["status"])
}

func TestMissionUnavailable(t *testing.T) {
	w, body := newTestEngine(t, nil).get("/api/v2/mission/tanks")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "error", body["status"])
}

func TestSystemStatusAndModels(t *testing.T) {
	component.RegisterSensorTypes()
	e := newTestEngine(t, newMission(t))

	w, body := e.get("/api/v2/system/models")
	require.Equal(t, http.StatusOK, w.Code)
	models := body["data"].(map[string]any)["models"].([]any)
	assert.Contains(t, models, "nova")
	assert.Contains(t, models, "mprls")

	w, body = e.get("/api/v2/system/status")
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]any)
	assert.EqualValues(t, 7, data["accel"].(map[string]any)["samples"])
}

func TestMetricsRoute(t *testing.T) {
	w, _ := newTestEngine(t, newMission(t)).get("/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sampler_plumbing_state")
}
