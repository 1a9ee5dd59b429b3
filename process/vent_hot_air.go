package process

import (
	"sampler/component"
	"sampler/config"
	"sampler/define"
	"sampler/device"
)

// VentOutcome 排气结束原因
type VentOutcome string

const (
	VentTargetReached VentOutcome = "TARGET_REACHED"
	VentRiseAbort     VentOutcome = "RISE_ABORT"
	VentTimeout       VentOutcome = "TIMEOUT"
)

type tempSample struct {
	kelvin float64
	atMs   int64
}

// VentHotAir 采样结束后打开主阀和静压阀排出热气。
// 温度降到目标以下、超过最长时间或温升过快时停止。
type VentHotAir struct {
	mission *Mission
	lp      *LogPressures
	dpv     component.TemperatureSensor
	valves  []*device.Valve
	main    *device.Valve
	static  *device.Valve
	cfg     config.VentConfig

	outcome VentOutcome
	history []tempSample
}

func NewVentHotAir(m *Mission, lp *LogPressures, dpv component.TemperatureSensor, valves []*device.Valve, main, static *device.Valve, cfg config.VentConfig) *VentHotAir {
	return &VentHotAir{mission: m, lp: lp, dpv: dpv, valves: valves, main: main, static: static, cfg: cfg}
}

func (p *VentHotAir) Name() string { return "VentHotAir" }

// Outcome 最近一次排气的结束原因
func (p *VentHotAir) Outcome() VentOutcome { return p.outcome }

func (p *VentHotAir) Run() error {
	m := p.mission
	if err := m.Ready(); err != nil {
		return err
	}
	m.Eventf("开始 VentHotAir")
	switch {
	case p.lp == nil:
		return missing(p.Name(), "LogPressures")
	case len(p.valves) == 0:
		return missing(p.Name(), "阀门列表")
	case p.main == nil:
		return missing(p.Name(), "主阀")
	case p.static == nil:
		return missing(p.Name(), "静压阀")
	case p.dpv == nil:
		return missing(p.Name(), "热端温度传感器")
	}
	if m.ThermalTripped() {
		m.Eventf("因 TEMP_THRESH_REACHED 进入排气")
	} else {
		m.Eventf("未触发 TEMP_THRESH_REACHED，例行排气")
	}

	p.execute()
	m.Eventf("VentHotAir 完成: %s", p.outcome)
	return nil
}

func (p *VentHotAir) execute() {
	m := p.mission
	for _, v := range p.valves {
		if err := v.Close(); err != nil {
			m.Eventf("%v", err)
			continue
		}
		m.Eventf("阀门 %s 已关闭", v.Name())
	}

	for _, v := range []*device.Valve{p.main, p.static} {
		if err := v.Open(); err != nil {
			m.Eventf("%v", err)
		}
	}
	m.Eventf("主阀和静压阀已打开")
	defer func() {
		for _, v := range []*device.Valve{p.main, p.static} {
			if err := v.Close(); err != nil {
				m.Eventf("%v", err)
			}
		}
		m.Eventf("主阀和静压阀已关闭")
	}()

	p.history = p.history[:0]
	p.outcome = VentTimeout
	deadline := m.TPlusMs() + p.cfg.DurationMs
	for m.TPlusMs() < deadline {
		p.lp.Tick()
		if p.step() {
			return
		}
		m.Yield()
	}
	m.Eventf("排气达到最长时间 %d ms", p.cfg.DurationMs)
}

// step 处理一次温度读数，返回是否结束排气。
// 目标判断、历史记录和温升率都使用三次采样中值；单次读数只用来决定是否先做目标确认。
func (p *VentHotAir) step() bool {
	m := p.mission
	single := p.dpv.Temperature()
	current := p.dpv.TripleTemperature()
	if !define.IsValid(current) {
		return false
	}
	if define.IsValid(single) && single < p.cfg.TargetTemp && current < p.cfg.TargetTemp {
		m.Eventf("热端温度 %.2fK 低于目标 %.2fK，排气完成", current, p.cfg.TargetTemp)
		p.outcome = VentTargetReached
		return true
	}

	now := m.TPlusMs()
	p.history = append(p.history, tempSample{kelvin: current, atMs: now})

	// 只保留窗口加缓冲时间以内的读数
	horizon := p.cfg.ComparisonWindowMs + p.cfg.BufferMs
	kept := p.history[:0]
	for _, s := range p.history {
		if now-s.atMs <= horizon {
			kept = append(kept, s)
		}
	}
	p.history = kept

	// 温升率只用年龄在 (window, window+buffer] 之间的读数
	var old []tempSample
	for _, s := range p.history {
		if now-s.atMs > p.cfg.ComparisonWindowMs {
			old = append(old, s)
		}
	}
	if len(old) < 2 {
		return false
	}

	ref := old[len(old)-1]
	seconds := float64(now-ref.atMs) / 1000
	rate := (current - ref.kelvin) / seconds
	if rate > p.cfg.RiseThreshold {
		m.Eventf("温度上升 (%.1fK -> %.1fK，%.3fs 内 %.2fK/s)，停止排气！", ref.kelvin, current, seconds, rate)
		p.outcome = VentRiseAbort
		return true
	}
	return false
}
