// Package process 采样流程：共享任务状态、LogPressures、InitialPressureCheck、
// SwapTanks、SampleUpwards、VentHotAir 以及按顺序执行它们的 Pipeline。
//
// 所有等待都是以任务时间为准的轮询循环，每次迭代调用一次 LogPressures 并让出控制权，
// 温度阈值只在这里被检查。
package process

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"sampler/clock"
	"sampler/component"
	"sampler/define"
	"sampler/device"
	"sampler/metrics"
	"sampler/telemetry"
)

var (
	// ErrNotReady 共享任务状态缺少时钟或遥测
	ErrNotReady = errors.New("任务状态未就绪")
	// ErrMissingCollaborator 流程缺少必要的传感器、阀门或子流程
	ErrMissingCollaborator = errors.New("缺少必要组件")
	// ErrNoTankForCollection 采样计划多于可分配的储气罐
	ErrNoTankForCollection = errors.New("采样计划没有可用的储气罐")
)

// Process 流程
type Process interface {
	Name() string
	Run() error
}

// MissionOptions 共享任务状态的组成部分
type MissionOptions struct {
	Clock       *clock.Clock
	Recorder    *telemetry.Recorder
	Metrics     *metrics.Metrics
	Tanks       *device.TankSet
	Collections []*device.Collection
	Valves      *device.ValveManager
	Yield       func() // 每次轮询迭代后调用，nil 时休眠 1ms
}

// Mission 共享任务状态，显式传给每个流程。
// 标志位都是原子变量，后台协程和状态接口可以并发读取。
type Mission struct {
	clock       *clock.Clock
	recorder    *telemetry.Recorder
	metrics     *metrics.Metrics
	tanks       *device.TankSet
	collections []*device.Collection
	valves      *device.ValveManager
	yield       func()

	plumbing atomic.Int32
	thermal  atomic.Bool
	sampling atomic.Bool

	readingsMu sync.RWMutex
	readings   Readings
}

// Readings 最近一次 LogPressures 的读数
type Readings struct {
	TPlusMs          int64     `json:"tPlusMs"`
	TankPressures    []float64 `json:"tankPressures"`
	TankTemperatures []float64 `json:"tankTemperatures"`
	CanisterPressure float64   `json:"canisterPressure"`
	DPVTemperature   float64   `json:"dpvTemperature"`
}

// NewMission 创建共享任务状态，主管路初始为 Ready
func NewMission(opts MissionOptions) *Mission {
	yield := opts.Yield
	if yield == nil {
		yield = func() { time.Sleep(time.Millisecond) }
	}
	tanks := opts.Tanks
	if tanks == nil {
		tanks = device.NewTankSet()
	}
	m := &Mission{
		clock:       opts.Clock,
		recorder:    opts.Recorder,
		metrics:     opts.Metrics,
		tanks:       tanks,
		collections: opts.Collections,
		valves:      opts.Valves,
		yield:       yield,
	}
	m.readings.CanisterPressure = define.InvalidReading
	m.readings.DPVTemperature = define.InvalidReading
	return m
}

// Ready 时钟和遥测都已设置
func (m *Mission) Ready() error {
	if m == nil || m.clock == nil || m.recorder == nil {
		return ErrNotReady
	}
	return nil
}

func (m *Mission) Clock() *clock.Clock               { return m.clock }
func (m *Mission) Metrics() *metrics.Metrics         { return m.metrics }
func (m *Mission) Tanks() *device.TankSet            { return m.tanks }
func (m *Mission) Collections() []*device.Collection { return m.collections }
func (m *Mission) Valves() *device.ValveManager      { return m.valves }
func (m *Mission) Recorder() *telemetry.Recorder     { return m.recorder }

// TPlusMs 当前任务时间
func (m *Mission) TPlusMs() int64 { return m.clock.TPlusMs() }

// Yield 让出控制权
func (m *Mission) Yield() { m.yield() }

// Eventf 写任务事件
func (m *Mission) Eventf(format string, args ...any) {
	if m.recorder != nil {
		m.recorder.Eventf(format, args...)
	}
}

// Plumbing 主管路状态
func (m *Mission) Plumbing() define.PlumbingState {
	return define.PlumbingState(m.plumbing.Load())
}

// SetPlumbing 设置主管路状态
func (m *Mission) SetPlumbing(s define.PlumbingState) {
	prev := define.PlumbingState(m.plumbing.Swap(int32(s)))
	if prev != s {
		m.Eventf("主管路状态: %s -> %s", prev, s)
	}
	m.metrics.SetPlumbingState(s)
}

// ThermalTripped 温度阈值是否已触发（触发后不可恢复）
func (m *Mission) ThermalTripped() bool { return m.thermal.Load() }

// TripThermal 触发温度阈值，只有第一次调用返回 true
func (m *Mission) TripThermal() bool {
	if !m.thermal.CompareAndSwap(false, true) {
		return false
	}
	m.Eventf("温度阈值已触发并锁定")
	m.metrics.SetThermalTripped()
	return true
}

// Sampling 是否正在采样
func (m *Mission) Sampling() bool { return m.sampling.Load() }

// SetSampling 设置采样标志
func (m *Mission) SetSampling(v bool) { m.sampling.Store(v) }

// SetTankState 修改储气罐状态并记录
func (m *Mission) SetTankState(t *device.Tank, s define.TankState) {
	prev := t.State()
	t.SetState(s)
	m.Eventf("储气罐 %s 状态: %s -> %s", t.Name(), prev, s)
	m.metrics.SetTankState(t.Name(), s)
}

func (m *Mission) storeReadings(r Readings) {
	m.readingsMu.Lock()
	defer m.readingsMu.Unlock()
	m.readings = r
}

// LastReadings 最近一次读数
func (m *Mission) LastReadings() Readings {
	m.readingsMu.RLock()
	defer m.readingsMu.RUnlock()
	r := m.readings
	r.TankPressures = append([]float64(nil), r.TankPressures...)
	r.TankTemperatures = append([]float64(nil), r.TankTemperatures...)
	return r
}

// waitUntil 轮询直到任务时间到达 deadlineMs。
// abortOnThermal 为 true 时温度阈值触发立即返回 true。
func (m *Mission) waitUntil(lp *LogPressures, deadlineMs int64, abortOnThermal bool) bool {
	for {
		if abortOnThermal && m.ThermalTripped() {
			return true
		}
		if m.TPlusMs() >= deadlineMs {
			return false
		}
		lp.Tick()
		m.Yield()
	}
}

// TankSnapshot 储气罐状态
type TankSnapshot struct {
	ID     device.TankID  `json:"id"`
	Name   string         `json:"name"`
	State  string         `json:"state"`
	Valve  int            `json:"valvePin"`
	Sensor component.Info `json:"sensor"`
}

// CollectionSnapshot 采样计划状态
type CollectionSnapshot struct {
	Num           int    `json:"num"`
	UpStartTimeMs int64  `json:"upStartTimeMs"`
	Tank          string `json:"tank,omitempty"`
	TankState     string `json:"tankState,omitempty"`
	SampledCount  int    `json:"sampledCount"`
	Sampled       bool   `json:"sampled"`
}

// Snapshot 任务状态快照
type Snapshot struct {
	Clock          clock.Snapshot       `json:"clock"`
	Plumbing       string               `json:"plumbing"`
	ThermalTripped bool                 `json:"thermalTripped"`
	Sampling       bool                 `json:"sampling"`
	Tanks          []TankSnapshot       `json:"tanks"`
	Collections    []CollectionSnapshot `json:"collections"`
	Valves         []device.ValveStatus `json:"valves"`
	Readings       Readings             `json:"readings"`
	Telemetry      telemetry.Stats      `json:"telemetry"`
}

// TankSnapshots 储气罐状态列表
func (m *Mission) TankSnapshots() []TankSnapshot {
	out := make([]TankSnapshot, 0, m.tanks.Len())
	for _, id := range m.tanks.IDs() {
		t := m.tanks.Get(id)
		ts := TankSnapshot{ID: id, Name: t.Name(), State: t.State().String()}
		if t.Valve() != nil {
			ts.Valve = t.Valve().Pin()
		}
		if s := t.Sensor(); s != nil {
			ts.Sensor = component.Describe(s)
		}
		out = append(out, ts)
	}
	return out
}

// CollectionSnapshots 采样计划状态列表
func (m *Mission) CollectionSnapshots() []CollectionSnapshot {
	out := make([]CollectionSnapshot, 0, len(m.collections))
	for _, c := range m.collections {
		cs := CollectionSnapshot{
			Num:           c.Num(),
			UpStartTimeMs: c.Plan.UpStartTimeMs,
			SampledCount:  c.SampledCount(),
			Sampled:       c.Sampled(m.tanks),
		}
		if t := m.tanks.Get(c.Tank()); t != nil {
			cs.Tank = t.Name()
			cs.TankState = t.State().String()
		}
		out = append(out, cs)
	}
	return out
}

// Snapshot 获取任务状态快照，不读取任何传感器
func (m *Mission) Snapshot() Snapshot {
	s := Snapshot{
		Plumbing:       m.Plumbing().String(),
		ThermalTripped: m.ThermalTripped(),
		Sampling:       m.Sampling(),
		Tanks:          m.TankSnapshots(),
		Collections:    m.CollectionSnapshots(),
		Readings:       m.LastReadings(),
	}
	if m.clock != nil {
		s.Clock = m.clock.Snapshot()
	}
	if m.recorder != nil {
		s.Telemetry = m.recorder.Stats()
	}
	if m.valves != nil {
		for _, v := range m.valves.GetAllValves() {
			s.Valves = append(s.Valves, v.Status())
		}
	}
	return s
}

func missing(process, what string) error {
	return fmt.Errorf("%s: %w: %s", process, ErrMissingCollaborator, what)
}
