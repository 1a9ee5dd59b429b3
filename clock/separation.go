package clock

import "sync/atomic"

// EventLogger 任务事件日志
type EventLogger interface {
	Eventf(format string, args ...any)
}

// SeparationSwitch 分离开关触发器，只响应第一次触发
type SeparationSwitch struct {
	clock *Clock
	minMs int64
	maxMs int64
	log   EventLogger
	fired atomic.Bool
}

// NewSeparationSwitch 创建分离开关触发器，[minMs, maxMs] 为可接受的 t0 偏移窗口
func NewSeparationSwitch(c *Clock, minMs, maxMs int64, log EventLogger) *SeparationSwitch {
	return &SeparationSwitch{clock: c, minMs: minMs, maxMs: maxMs, log: log}
}

// Armed 是否尚未触发
func (s *SeparationSwitch) Armed() bool { return !s.fired.Load() }

// Fire 用触发时刻校正 t0。偏移超出窗口时记录并忽略。
// 第一次触发后即解除，无论校正是否被接受。
func (s *SeparationSwitch) Fire(tsMs int64) (applied bool, delta int64) {
	if !s.fired.CompareAndSwap(false, true) {
		return false, 0
	}

	diff := tsMs - s.clock.T0Ms()
	if diff < s.minMs || diff > s.maxMs {
		s.eventf("分离开关触发！与估算 t0 相差 %d ms，超出允许范围 [%d, %d]，忽略", diff, s.minMs, s.maxMs)
		return false, diff
	}

	delta = s.clock.CorrectReference(tsMs)
	s.eventf("分离开关触发！新 t0: %d ms，相对估算调整 %d ms", tsMs, delta)
	return true, delta
}

func (s *SeparationSwitch) eventf(format string, args ...any) {
	if s.log != nil {
		s.log.Eventf(format, args...)
	}
}
