package device

import (
	"sync/atomic"

	"sampler/component"
	"sampler/define"
)

// Tank 储气罐：阀门和压力传感器在构造后不可更换，只有状态可变
type Tank struct {
	name   string
	valve  *Valve
	sensor component.PressureSensor
	state  atomic.Int32
}

// NewTank 创建储气罐，初始状态为 Unknown
func NewTank(name string, valve *Valve, sensor component.PressureSensor) *Tank {
	return &Tank{name: name, valve: valve, sensor: sensor}
}

func (t *Tank) Name() string                     { return t.name }
func (t *Tank) Valve() *Valve                    { return t.valve }
func (t *Tank) Sensor() component.PressureSensor { return t.sensor }

// TemperatureSensor 传感器是否同时测温
func (t *Tank) TemperatureSensor() (component.PressureTemperatureSensor, bool) {
	pt, ok := t.sensor.(component.PressureTemperatureSensor)
	return pt, ok
}

func (t *Tank) State() define.TankState { return define.TankState(t.state.Load()) }

func (t *Tank) SetState(s define.TankState) { t.state.Store(int32(s)) }

// TankID 储气罐在 TankSet 中的下标
type TankID int

// NoTank 未分配储气罐
const NoTank TankID = -1

// TankSet 储气罐存储区，采样计划只持有 TankID
type TankSet struct {
	tanks []*Tank
}

func NewTankSet(tanks ...*Tank) *TankSet {
	return &TankSet{tanks: tanks}
}

// Add 加入储气罐并返回其 ID
func (s *TankSet) Add(t *Tank) TankID {
	s.tanks = append(s.tanks, t)
	return TankID(len(s.tanks) - 1)
}

// Get 按 ID 获取，ID 无效时返回 nil
func (s *TankSet) Get(id TankID) *Tank {
	if id < 0 || int(id) >= len(s.tanks) {
		return nil
	}
	return s.tanks[id]
}

// IDs 按声明顺序返回所有 ID
func (s *TankSet) IDs() []TankID {
	ids := make([]TankID, len(s.tanks))
	for i := range s.tanks {
		ids[i] = TankID(i)
	}
	return ids
}

func (s *TankSet) Len() int { return len(s.tanks) }

// All 按声明顺序返回所有储气罐
func (s *TankSet) All() []*Tank {
	out := make([]*Tank, len(s.tanks))
	copy(out, s.tanks)
	return out
}
