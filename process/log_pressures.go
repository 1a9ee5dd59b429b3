package process

import (
	"errors"
	"fmt"
	"log"

	"sampler/component"
	"sampler/config"
	"sampler/define"
	"sampler/device"
)

// LogPressures 每次调用记录一行压力数据，并按最小间隔做温度安全检查。
// 温度阈值一旦触发，之后只记录数据不再检查。
type LogPressures struct {
	mission  *Mission
	tanks    []*device.Tank
	canister component.PressureSensor
	dpv      component.TemperatureSensor
	cfg      config.ThermalConfig

	checked     bool
	lastCheckMs int64
	warned      bool
}

// NewLogPressures 创建 LogPressures，tanks 的顺序即压力表的列顺序
func NewLogPressures(m *Mission, tanks []*device.Tank, canister component.PressureSensor, dpv component.TemperatureSensor, cfg config.ThermalConfig) *LogPressures {
	return &LogPressures{mission: m, tanks: tanks, canister: canister, dpv: dpv, cfg: cfg}
}

func (lp *LogPressures) Name() string { return "LogPressures" }

// Columns 压力表的数据列
func (lp *LogPressures) Columns() []string {
	cols := make([]string, 0, len(lp.tanks)+1)
	for _, t := range lp.tanks {
		cols = append(cols, fmt.Sprintf("Pressure Tank %s (hPa)", t.Name()))
	}
	return append(cols, "Pressure Canister (hPa)")
}

func (lp *LogPressures) validate() error {
	if err := lp.mission.Ready(); err != nil {
		return err
	}
	if len(lp.tanks) == 0 {
		return missing(lp.Name(), "储气罐压力传感器")
	}
	if lp.dpv == nil {
		return missing(lp.Name(), "热端温度传感器")
	}
	if lp.canister == nil {
		return missing(lp.Name(), "舱内压力传感器")
	}
	return nil
}

// Run 记录一行并在需要时检查温度
func (lp *LogPressures) Run() error {
	if err := lp.validate(); err != nil {
		return err
	}
	lp.execute()
	return nil
}

// Tick 供等待循环调用，错误只在第一次出现时报告
func (lp *LogPressures) Tick() {
	if lp == nil {
		return
	}
	if err := lp.Run(); err != nil && !lp.warned {
		lp.warned = true
		log.Printf("⚠️ LogPressures 无法运行: %v", err)
		if !errors.Is(err, ErrNotReady) {
			lp.mission.Eventf("LogPressures 无法运行: %v", err)
		}
	}
}

func (lp *LogPressures) execute() {
	m := lp.mission
	now := m.TPlusMs()

	readings := Readings{
		TPlusMs:          now,
		TankPressures:    make([]float64, len(lp.tanks)),
		TankTemperatures: make([]float64, len(lp.tanks)),
		DPVTemperature:   define.InvalidReading,
	}
	tripped := m.ThermalTripped()
	for i, t := range lp.tanks {
		readings.TankTemperatures[i] = define.InvalidReading
		if pt, ok := t.TemperatureSensor(); ok && !tripped {
			readings.TankPressures[i], readings.TankTemperatures[i] = pt.PressureAndTemperature()
		} else if s := t.Sensor(); s != nil {
			readings.TankPressures[i] = s.Pressure()
		} else {
			readings.TankPressures[i] = define.InvalidReading
		}
		m.metrics.ObserveTank(t.Name(), readings.TankPressures[i], readings.TankTemperatures[i])
	}
	readings.CanisterPressure = lp.canister.Pressure()

	m.recorder.Row(append(append([]float64(nil), readings.TankPressures...), readings.CanisterPressure))
	m.metrics.ObserveTick(now, readings.CanisterPressure)

	if !tripped && (!lp.checked || now >= lp.lastCheckMs+lp.cfg.CheckIntervalMs) {
		lp.checked = true
		lp.lastCheckMs = now
		readings.DPVTemperature = lp.checkThermal(readings.TankTemperatures)
	}
	m.storeReadings(readings)
}

func exceeds(v, bound float64) bool {
	return define.IsValid(v) && v >= bound
}

// checkThermal 先查热端，再查各储气罐；单次读数超限后用三次采样确认。返回热端单次读数。
func (lp *LogPressures) checkThermal(tankTemps []float64) float64 {
	m := lp.mission

	dpv := lp.dpv.Temperature()
	m.metrics.SetDPVTemperature(dpv)
	if exceeds(dpv, lp.cfg.TAnytime) {
		m.Eventf("热端温度可能超过 T_ANYTIME: %.2fK，进行三次采样确认...", dpv)
		confirmed := lp.dpv.TripleTemperature()
		if exceeds(confirmed, lp.cfg.TAnytime) {
			m.TripThermal()
			m.Eventf("TEMP_THRESH_REACHED! 热端温度超过 T_ANYTIME: %.2fK，已三次确认", confirmed)
			return dpv
		}
	}

	bound, boundName := lp.cfg.TAnytime, "T_ANYTIME"
	if m.Sampling() {
		bound, boundName = lp.cfg.TSample, "T_SAMPLE"
	}
	over := false
	for _, t := range tankTemps {
		if exceeds(t, bound) {
			over = true
			break
		}
	}
	if !over {
		return dpv
	}

	m.Eventf("储气罐温度可能超过 %s: %v K，进行三次采样确认...", boundName, tankTemps)
	for _, t := range lp.tanks {
		pt, ok := t.TemperatureSensor()
		if !ok {
			continue
		}
		confirmed := pt.TripleTemperature()
		if exceeds(confirmed, bound) {
			m.TripThermal()
			m.Eventf("TEMP_THRESH_REACHED! 储气罐 %s 温度超过 %s: %.2fK，已三次确认", t.Name(), boundName, confirmed)
			return dpv
		}
	}
	return dpv
}
