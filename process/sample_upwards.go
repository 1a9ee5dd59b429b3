package process

import (
	"math"
	"strconv"

	"sampler/component"
	"sampler/config"
	"sampler/define"
	"sampler/device"
)

// Outcome 单个采样计划的结果
type Outcome string

const (
	OutcomeSampled         Outcome = "SAMPLED"
	OutcomeFailedSample    Outcome = "FAILED_SAMPLE"
	OutcomeValveFailure    Outcome = "VALVE_FAILURE"
	OutcomeMainLineFailure Outcome = "MAIN_LINE_FAILURE"
	OutcomeThermalAbort    Outcome = "THERMAL_ABORT"
	OutcomeSkipped         Outcome = "SKIPPED"
)

// Result 采样计划的执行结果
type Result struct {
	Collection int     `json:"collection"`
	Tank       string  `json:"tank,omitempty"`
	Outcome    Outcome `json:"outcome"`
	Attempts   int     `json:"attempts"`
	Reason     string  `json:"reason,omitempty"`
}

// SampleUpwards 按顺序执行每个采样计划：吹扫、开阀采样，失败时区分继续尝试、阀门故障和主管路故障
type SampleUpwards struct {
	mission  *Mission
	lp       *LogPressures
	manifold component.PressureSensor // 可为 nil
	main     *device.Valve
	dynamic  *device.Valve
	static   *device.Valve
	cfg      config.SamplingConfig

	results []Result
}

func NewSampleUpwards(m *Mission, lp *LogPressures, manifold component.PressureSensor, main, dynamic, static *device.Valve, cfg config.SamplingConfig) *SampleUpwards {
	return &SampleUpwards{mission: m, lp: lp, manifold: manifold, main: main, dynamic: dynamic, static: static, cfg: cfg}
}

func (p *SampleUpwards) Name() string { return "SampleUpwards" }

// Results 每个采样计划的结果
func (p *SampleUpwards) Results() []Result { return p.results }

func (p *SampleUpwards) Run() error {
	m := p.mission
	if err := m.Ready(); err != nil {
		return err
	}
	m.Eventf("开始 SampleUpwards")
	switch {
	case len(m.Collections()) == 0:
		return missing(p.Name(), "采样计划")
	case p.lp == nil:
		return missing(p.Name(), "LogPressures")
	case p.main == nil || p.dynamic == nil || p.static == nil:
		return missing(p.Name(), "主阀、动压阀或静压阀")
	}

	p.results = p.results[:0]
	for _, c := range m.Collections() {
		r := p.sample(c)
		m.Eventf("采样计划 %d 结果: %s (尝试 %d 次) %s", r.Collection, r.Outcome, r.Attempts, r.Reason)
		p.results = append(p.results, r)
	}
	m.Eventf("SampleUpwards 完成")
	return nil
}

func (p *SampleUpwards) open(valves ...*device.Valve) {
	for _, v := range valves {
		if err := v.Open(); err != nil {
			p.mission.Eventf("%v", err)
		}
	}
}

func (p *SampleUpwards) close(valves ...*device.Valve) {
	for _, v := range valves {
		if err := v.Close(); err != nil {
			p.mission.Eventf("%v", err)
		}
	}
}

func (p *SampleUpwards) manifoldPressure() float64 {
	if p.manifold == nil {
		return define.InvalidReading
	}
	return p.manifold.TriplePressure()
}

// flow 打开动压阀、主阀和储气罐阀 durationMs，期间持续记录；温度阈值触发时提前关闭
func (p *SampleUpwards) flow(t *device.Tank, durationMs int64) (aborted bool) {
	m := p.mission
	p.open(p.dynamic, p.main, t.Valve())
	aborted = m.waitUntil(p.lp, m.TPlusMs()+durationMs, true)
	p.close(p.dynamic, p.main, t.Valve())
	return aborted
}

// quiet 两次读数是否都有效且变化低于噪声阈值
func (p *SampleUpwards) quiet(before, after float64) bool {
	if !define.IsValid(before) || !define.IsValid(after) {
		return true
	}
	return math.Abs(after-before) < p.cfg.NoiseThreshold
}

func (p *SampleUpwards) sample(c *device.Collection) Result {
	m := p.mission
	r := Result{Collection: c.Num(), Outcome: OutcomeSkipped}

	t := m.Tanks().Get(c.Tank())
	if t == nil {
		r.Reason = "没有分配储气罐"
		return r
	}
	r.Tank = t.Name()

	switch {
	case t.State() == define.TankLastResort:
		r.Reason = "储气罐为 LAST_RESORT，尚未定义采样前的有效性检验"
		return r
	case t.State() != define.TankReady:
		r.Reason = "储气罐状态为 " + t.State().String()
		return r
	case m.Plumbing() == define.PlumbingMainLineFailure:
		r.Reason = "主管路故障"
		return r
	}

	plan := c.Plan
	m.Eventf("采样计划 %d 等待至 T+%d ms 开始吹扫", plan.Num, plan.UpStartTimeMs-plan.BleedDurationMs)
	if m.waitUntil(p.lp, plan.UpStartTimeMs-plan.BleedDurationMs, true) {
		r.Outcome, r.Reason = OutcomeThermalAbort, "等待期间温度阈值触发"
		return r
	}

	// 吹扫
	m.Eventf("采样计划 %d 开始吹扫 %d ms", plan.Num, plan.BleedDurationMs)
	p.open(p.dynamic, p.static)
	aborted := m.waitUntil(p.lp, m.TPlusMs()+plan.BleedDurationMs, true)
	p.close(p.static)
	if aborted {
		p.close(p.dynamic)
		r.Outcome, r.Reason = OutcomeThermalAbort, "吹扫期间温度阈值触发"
		return r
	}

	refTank := t.Sensor().TriplePressure()
	refManifold := p.manifoldPressure()
	m.Eventf("参考压力: 储气罐 %.2f hPa, 歧管 %.2f hPa", refTank, refManifold)

	target := p.cfg.TargetRatio * plan.UpFinalStagnationPressure

	m.SetSampling(true)
	defer m.SetSampling(false)

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		r.Attempts = c.IncSampledCount()
		m.metrics.IncSampleAttempt(strconv.Itoa(plan.Num))

		if define.IsValid(refTank) && refTank >= plan.ChokePressure {
			m.Eventf("警告：储气罐 %s 压力 %.2f hPa 已达到阻塞流上限 %.2f hPa", t.Name(), refTank, plan.ChokePressure)
		}

		m.Eventf("采样计划 %d 第 %d 次采样，开阀 %d ms", plan.Num, attempt, plan.UpDurationMs)
		if p.flow(t, plan.UpDurationMs) {
			m.SetTankState(t, define.TankFailedSample)
			r.Outcome, r.Reason = OutcomeThermalAbort, "采样期间温度阈值触发"
			return r
		}

		post := t.Sensor().TriplePressure()
		m.Eventf("采样后储气罐压力 %.2f hPa (目标 %.2f hPa)", post, target)
		if define.IsValid(post) && post >= target {
			m.SetTankState(t, define.TankSampled)
			r.Outcome = OutcomeSampled
			return r
		}

		if attempt == p.cfg.MaxAttempts {
			m.SetTankState(t, define.TankFailedSample)
			r.Outcome, r.Reason = OutcomeFailedSample, "达到最大尝试次数"
			return r
		}

		if p.quiet(refTank, post) {
			manifold := p.manifoldPressure()
			m.Eventf("储气罐压力没有变化，歧管压力 %.2f -> %.2f hPa", refManifold, manifold)
			if define.IsValid(refManifold) && define.IsValid(manifold) && math.Abs(manifold-refManifold) < p.cfg.NoiseThreshold {
				m.SetPlumbing(define.PlumbingMainLineFailure)
				m.SetTankState(t, define.TankFailedSample)
				r.Outcome, r.Reason = OutcomeMainLineFailure, "储气罐和歧管压力都没有变化"
				return r
			}
			m.SetTankState(t, define.TankFailedSample)
			r.Outcome, r.Reason = OutcomeValveFailure, "歧管压力变化但储气罐没有，储气罐阀门故障"
			return r
		}

		// 压力在上升但不够快，短时探测确认
		m.Eventf("储气罐压力上升不足，短时探测 %d ms", p.cfg.TSmallMs)
		if p.flow(t, p.cfg.TSmallMs) {
			m.SetTankState(t, define.TankFailedSample)
			r.Outcome, r.Reason = OutcomeThermalAbort, "短时探测期间温度阈值触发"
			return r
		}
		probe := t.Sensor().TriplePressure()
		m.Eventf("短时探测后储气罐压力 %.2f hPa", probe)
		if p.quiet(post, probe) {
			m.SetTankState(t, define.TankFailedSample)
			r.Outcome, r.Reason = OutcomeFailedSample, "短时探测压力没有变化，储气罐真空已破坏"
			return r
		}
		if probe >= target {
			m.SetTankState(t, define.TankSampled)
			r.Outcome = OutcomeSampled
			return r
		}

		refTank = probe
		refManifold = p.manifoldPressure()
	}

	// MaxAttempts 已由配置校验保证至少为 1
	m.SetTankState(t, define.TankFailedSample)
	r.Outcome = OutcomeFailedSample
	return r
}
