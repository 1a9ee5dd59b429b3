package process

import (
	"log"
)

// StageResult 单个流程的执行结果
type StageResult struct {
	Name       string `json:"name"`
	Error      string `json:"error,omitempty"`
	StartMs    int64  `json:"startMs"`
	DurationMs int64  `json:"durationMs"`
}

// Report 流水线执行报告
type Report struct {
	Stages      []StageResult `json:"stages"`
	Collections []Result      `json:"collections"`
	Vent        VentOutcome   `json:"vent,omitempty"`
	Mission     Snapshot      `json:"mission"`
}

// Failed 是否有流程返回错误
func (r Report) Failed() bool {
	for _, s := range r.Stages {
		if s.Error != "" {
			return true
		}
	}
	return false
}

// Pipeline 依次执行 InitialPressureCheck、SwapTanks、SampleUpwards，最后总是执行 VentHotAir。
// 某个流程出错只记录并继续下一个。
type Pipeline struct {
	mission *Mission
	initial *InitialPressureCheck
	swap    *SwapTanks
	sample  *SampleUpwards
	vent    *VentHotAir
}

func NewPipeline(m *Mission, initial *InitialPressureCheck, swap *SwapTanks, sample *SampleUpwards, vent *VentHotAir) *Pipeline {
	return &Pipeline{mission: m, initial: initial, swap: swap, sample: sample, vent: vent}
}

func (p *Pipeline) runStage(proc Process, report *Report) {
	m := p.mission
	start := m.TPlusMs()
	res := StageResult{Name: proc.Name(), StartMs: start}
	if err := proc.Run(); err != nil {
		res.Error = err.Error()
		log.Printf("❌ %s 失败: %v", proc.Name(), err)
		m.Eventf("%s 失败: %v", proc.Name(), err)
	}
	res.DurationMs = m.TPlusMs() - start
	report.Stages = append(report.Stages, res)
}

// Run 执行完整流程并返回报告
func (p *Pipeline) Run() Report {
	m := p.mission
	var report Report

	log.Printf("🚀 开始采样流程")
	for _, proc := range []Process{p.initial, p.swap, p.sample} {
		if isNil(proc) {
			continue
		}
		p.runStage(proc, &report)
	}
	if p.sample != nil {
		report.Collections = append(report.Collections, p.sample.Results()...)
	}
	if p.vent != nil {
		p.runStage(p.vent, &report)
		report.Vent = p.vent.Outcome()
	}

	report.Mission = m.Snapshot()
	for _, c := range report.Collections {
		m.Eventf("总结: 采样计划 %d -> %s", c.Collection, c.Outcome)
	}
	m.Eventf("总结: 主管路 %s, 温度阈值触发: %t", report.Mission.Plumbing, report.Mission.ThermalTripped)
	log.Printf("✅ 采样流程结束")
	return report
}

func isNil(p Process) bool {
	switch v := p.(type) {
	case *InitialPressureCheck:
		return v == nil
	case *SwapTanks:
		return v == nil
	case *SampleUpwards:
		return v == nil
	default:
		return p == nil
	}
}
