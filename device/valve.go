package device

import (
	"fmt"
	"sync/atomic"
)

// Valve 电磁阀，只记录最后一次下发的电平
type Valve struct {
	pin   int
	name  string
	gpio  GPIO
	open  atomic.Bool
	count atomic.Int32
}

// Pin 引脚号
func (v *Valve) Pin() int { return v.pin }

// Name 阀门名称
func (v *Valve) Name() string { return v.name }

// IsOpen 最后一次下发的是否为打开
func (v *Valve) IsOpen() bool { return v.open.Load() }

// OpenCount 打开次数
func (v *Valve) OpenCount() int { return int(v.count.Load()) }

// Open 拉高引脚打开阀门
func (v *Valve) Open() error {
	if err := v.gpio.SetOutput(v.pin, true); err != nil {
		return fmt.Errorf("打开阀门 %s 失败：%w", v.name, err)
	}
	v.open.Store(true)
	v.count.Add(1)
	return nil
}

// Close 拉低引脚关闭阀门
func (v *Valve) Close() error {
	if err := v.gpio.SetOutput(v.pin, false); err != nil {
		return fmt.Errorf("关闭阀门 %s 失败：%w", v.name, err)
	}
	v.open.Store(false)
	return nil
}

// ValveStatus 阀门状态
type ValveStatus struct {
	Name      string `json:"name"`
	Pin       int    `json:"pin"`
	Open      bool   `json:"open"`
	OpenCount int    `json:"openCount"`
}

// Status 获取阀门状态
func (v *Valve) Status() ValveStatus {
	return ValveStatus{Name: v.name, Pin: v.pin, Open: v.IsOpen(), OpenCount: v.OpenCount()}
}
