package process

import (
	"math"

	"sampler/component"
	"sampler/config"
	"sampler/define"
	"sampler/device"
)

// InitialPressureCheck 任务开始时对每个储气罐分级，并探测主管路是否完好
type InitialPressureCheck struct {
	mission   *Mission
	lp        *LogPressures
	manifold  component.PressureSensor // 可为 nil
	mainValve *device.Valve
	cfg       config.InitialCheckConfig

	pressures map[device.TankID]float64
}

func NewInitialPressureCheck(m *Mission, lp *LogPressures, manifold component.PressureSensor, mainValve *device.Valve, cfg config.InitialCheckConfig) *InitialPressureCheck {
	return &InitialPressureCheck{mission: m, lp: lp, manifold: manifold, mainValve: mainValve, cfg: cfg}
}

func (p *InitialPressureCheck) Name() string { return "InitialPressureCheck" }

// Pressures 分级时各储气罐的三次采样压力
func (p *InitialPressureCheck) Pressures() map[device.TankID]float64 { return p.pressures }

func (p *InitialPressureCheck) Run() error {
	m := p.mission
	if err := m.Ready(); err != nil {
		return err
	}
	m.Eventf("开始 InitialPressureCheck")
	if m.Tanks().Len() == 0 {
		return missing(p.Name(), "储气罐")
	}
	if p.lp == nil {
		return missing(p.Name(), "LogPressures")
	}
	if p.manifold != nil && p.mainValve == nil {
		return missing(p.Name(), "主阀")
	}

	p.classifyTanks()
	m.SetPlumbing(p.probeMainLine())
	p.promoteLastResort()

	m.Eventf("InitialPressureCheck 完成")
	return nil
}

// classify 按三次采样压力分级
func (p *InitialPressureCheck) classify(pressure float64) define.TankState {
	switch {
	case !define.IsValid(pressure):
		return define.TankUnreachable
	case pressure > p.cfg.CriticalPressure:
		return define.TankCritical
	case pressure > p.cfg.UnsafePressure:
		return define.TankUnsafe
	default:
		return define.TankReady
	}
}

func (p *InitialPressureCheck) classifyTanks() {
	m := p.mission
	tanks := m.Tanks()
	p.pressures = make(map[device.TankID]float64, tanks.Len())

	for _, id := range tanks.IDs() {
		t := tanks.Get(id)
		sensor := t.Sensor()
		pressure := define.InvalidReading
		if sensor != nil && sensor.Ready() && define.IsValid(sensor.Pressure()) {
			pressure = sensor.TriplePressure()
		}
		p.pressures[id] = pressure
		m.Eventf("储气罐 %s 初始压力: %.2f hPa", t.Name(), pressure)
		m.SetTankState(t, p.classify(pressure))
	}
}

// probeMainLine 打开主阀一段时间，比较前后歧管压力
func (p *InitialPressureCheck) probeMainLine() define.PlumbingState {
	m := p.mission
	if p.manifold == nil || !p.manifold.Ready() {
		m.Eventf("没有歧管压力传感器，假定主管路正常")
		return define.PlumbingReady
	}

	before := p.manifold.TriplePressure()
	if !define.IsValid(before) {
		m.Eventf("歧管压力读数无效，假定主管路正常")
		return define.PlumbingReady
	}
	m.Eventf("探测主管路，歧管压力: %.2f hPa", before)

	if err := p.mainValve.Open(); err != nil {
		m.Eventf("打开主阀失败: %v", err)
	}
	m.waitUntil(p.lp, m.TPlusMs()+p.cfg.ProbeDurationMs, false)
	if err := p.mainValve.Close(); err != nil {
		m.Eventf("关闭主阀失败: %v", err)
	}

	after := p.manifold.TriplePressure()
	if !define.IsValid(after) {
		m.Eventf("探测后歧管压力读数无效，假定主管路正常")
		return define.PlumbingReady
	}
	delta := after - before
	m.Eventf("探测后歧管压力: %.2f hPa (变化 %.2f hPa)", after, delta)

	if math.Abs(delta) > p.cfg.MainLineDelta || after > p.cfg.CriticalPressure {
		m.Eventf("主管路探测异常，判定主管路故障")
		return define.PlumbingMainLineFailure
	}
	return define.PlumbingReady
}

// promoteLastResort 没有完全安全的储气罐或主管路故障时，选压力最低的可用储气罐作为最后手段
func (p *InitialPressureCheck) promoteLastResort() {
	m := p.mission
	tanks := m.Tanks()

	allReady := true
	for _, t := range tanks.All() {
		if t.State() != define.TankReady {
			allReady = false
			break
		}
	}
	if m.Plumbing() == define.PlumbingReady && allReady {
		return
	}

	best := device.NoTank
	for _, id := range tanks.IDs() {
		s := tanks.Get(id).State()
		if s != define.TankReady && s != define.TankUnsafe {
			continue
		}
		if best == device.NoTank || p.pressures[id] < p.pressures[best] {
			best = id
		}
	}
	if best == device.NoTank {
		m.Eventf("没有可作为最后手段的储气罐")
		return
	}
	m.SetTankState(tanks.Get(best), define.TankLastResort)
}
