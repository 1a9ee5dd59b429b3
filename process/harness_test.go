package process

import (
	"sync"
	"testing"

	"sampler/clock"
	"sampler/config"
	"sampler/define"
	"sampler/device"
	"sampler/metrics"
	"sampler/telemetry"
)

const (
	pinMain    = 27
	pinDynamic = 10
	pinStatic  = 22
)

// simTank 储气罐物理量
type simTank struct {
	pressure    float64
	rate        float64 // 主阀、动压阀和罐阀同时打开时每毫秒的压力变化
	cap         float64 // 压力上限，0 表示不限
	temperature float64
}

// plant 模拟管路：每次 Yield 推进 1ms，并按当前阀门电平更新压力和温度
type plant struct {
	mu   sync.Mutex
	gpio *device.MemoryGPIO
	now  int64

	tanks        []*simTank
	tankPins     []int
	manifold     float64
	manifoldRate float64 // 主阀和动压阀同时打开时
	probeRate    float64 // 只有主阀打开时
	dpv          float64
	dpvRate      float64
	dpvReads     int
}

func (p *plant) nowMs() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.now
}

func (p *plant) advance() {
	main := p.gpio.Level(pinMain)
	dynamic := p.gpio.Level(pinDynamic)
	open := make([]bool, len(p.tankPins))
	for i, pin := range p.tankPins {
		open[i] = p.gpio.Level(pin)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.now++
	p.dpv += p.dpvRate
	switch {
	case main && dynamic:
		p.manifold += p.manifoldRate
	case main:
		p.manifold += p.probeRate
	}
	if !main || !dynamic {
		return
	}
	for i, t := range p.tanks {
		if !open[i] {
			continue
		}
		t.pressure += t.rate
		if t.cap > 0 && t.pressure > t.cap {
			t.pressure = t.cap
		}
	}
}

func (p *plant) read(f func() float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return f()
}

// simPressure 读 plant 的压力传感器
type simPressure struct {
	id    string
	ready bool
	read  func() float64
}

func (s *simPressure) GetID() string           { return s.id }
func (s *simPressure) GetModel() string        { return "sim" }
func (s *simPressure) Ready() bool             { return s.ready }
func (s *simPressure) Pressure() float64       { return s.read() }
func (s *simPressure) TriplePressure() float64 { return s.read() }

// simTemperature 读 plant 的温度传感器
type simTemperature struct {
	id   string
	read func() float64
}

func (s *simTemperature) GetID() string              { return s.id }
func (s *simTemperature) GetModel() string           { return "sim_temperature" }
func (s *simTemperature) Ready() bool                { return true }
func (s *simTemperature) Temperature() float64       { return s.read() }
func (s *simTemperature) TripleTemperature() float64 { return s.read() }

// simTankSensor 同时提供压力和温度
type simTankSensor struct {
	simPressure
	temp func() float64
}

func (s *simTankSensor) Temperature() float64       { return s.temp() }
func (s *simTankSensor) TripleTemperature() float64 { return s.temp() }
func (s *simTankSensor) PressureAndTemperature() (float64, float64) {
	return s.read(), s.temp()
}

type harness struct {
	t       *testing.T
	plant   *plant
	gpio    *device.MemoryGPIO
	cfg     *config.Config
	valves  *device.ValveManager
	main    *device.Valve
	dynamic *device.Valve
	static  *device.Valve
	tanks   []*device.Tank
	dpv     *simTemperature

	manifold *simPressure
	mission  *Mission
	lp       *LogPressures
	events   *telemetry.MemorySink
	table    *telemetry.MemorySink
	metrics  *metrics.Metrics
}

// testConfig 缩短时间参数的默认配置
func testConfig() *config.Config {
	cfg := config.GetDefaultConfig()
	cfg.Collections = []config.CollectionConfig{{
		Num:                       1,
		UpStartTimeMs:             2000,
		BleedDurationMs:           500,
		UpDrivingPressure:         1100,
		UpFinalStagnationPressure: 1000,
		ChokePressure:             600,
		UpDurationMs:              100,
	}}
	cfg.Vent.DurationMs = 1000
	return cfg
}

// newHarness 按给定储气罐组建任务，第 i 个储气罐的阀门引脚为 100+i
func newHarness(t *testing.T, cfg *config.Config, tanks ...*simTank) *harness {
	t.Helper()
	gpio := device.NewMemoryGPIO()
	p := &plant{gpio: gpio, tanks: tanks, manifold: 800, dpv: 300}
	h := &harness{t: t, plant: p, gpio: gpio, cfg: cfg, events: &telemetry.MemorySink{}, table: &telemetry.MemorySink{}, metrics: metrics.New()}

	h.valves = device.NewValveManager(gpio)
	h.main = h.valves.Register(pinMain, "main")
	h.dynamic = h.valves.Register(pinDynamic, "dynamic")
	h.static = h.valves.Register(pinStatic, "static")

	set := device.NewTankSet()
	for i, st := range tanks {
		st := st
		pin := 100 + i
		p.tankPins = append(p.tankPins, pin)
		name := string(rune('A' + i))
		sensor := &simTankSensor{
			simPressure: simPressure{id: "tank" + name, ready: true, read: func() float64 { return p.read(func() float64 { return st.pressure }) }},
			temp:        func() float64 { return p.read(func() float64 { return st.temperature }) },
		}
		tank := device.NewTank(name, h.valves.Register(pin, "tank"+name), sensor)
		set.Add(tank)
		h.tanks = append(h.tanks, tank)
	}

	h.manifold = &simPressure{id: "manifold", ready: true, read: func() float64 { return p.read(func() float64 { return p.manifold }) }}
	h.dpv = &simTemperature{id: "dpv", read: func() float64 {
		return p.read(func() float64 {
			p.dpvReads++
			return p.dpv
		})
	}}
	canister := &simPressure{id: "canister", ready: true, read: func() float64 { return 1013.25 }}

	c := clock.New(p.nowMs, 0, true)
	recorder := telemetry.NewRecorder(h.events, h.table, p.nowMs, c.TPlusMs, false)
	var collections []*device.Collection
	for _, plan := range cfg.Collections {
		collections = append(collections, device.NewCollection(plan))
	}
	h.mission = NewMission(MissionOptions{
		Clock:       c,
		Recorder:    recorder,
		Metrics:     h.metrics,
		Tanks:       set,
		Collections: collections,
		Valves:      h.valves,
		Yield:       p.advance,
	})
	h.lp = NewLogPressures(h.mission, h.tanks, canister, h.dpv, cfg.Thermal)
	return h
}

func (h *harness) initialCheck() *InitialPressureCheck {
	return NewInitialPressureCheck(h.mission, h.lp, h.manifold, h.main, h.cfg.InitialCheck)
}

func (h *harness) sampleUpwards() *SampleUpwards {
	return NewSampleUpwards(h.mission, h.lp, h.manifold, h.main, h.dynamic, h.static, h.cfg.Sampling)
}

func (h *harness) ventHotAir() *VentHotAir {
	return NewVentHotAir(h.mission, h.lp, h.dpv, h.valves.GetAllValves(), h.main, h.static, h.cfg.Vent)
}

// prepare 执行初始检查和储气罐分配
func (h *harness) prepare() {
	h.t.Helper()
	if err := h.initialCheck().Run(); err != nil {
		h.t.Fatalf("InitialPressureCheck: %v", err)
	}
	if err := NewSwapTanks(h.mission).Run(); err != nil {
		h.t.Fatalf("SwapTanks: %v", err)
	}
}

func (h *harness) tankState(i int) define.TankState { return h.tanks[i].State() }

func (h *harness) tankPressure(i int) float64 {
	return h.plant.read(func() float64 { return h.plant.tanks[i].pressure })
}

func (h *harness) setDPV(k, rate float64) {
	h.plant.mu.Lock()
	defer h.plant.mu.Unlock()
	h.plant.dpv = k
	h.plant.dpvRate = rate
}
