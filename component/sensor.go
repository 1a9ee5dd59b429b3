// Package component 传感器抽象：能力接口、三次采样中值滤波以及各型号实现。
//
// 传感器故障（通信失败、读数超出量程）一律返回 define.InvalidReading，不返回错误。
package component

import (
	"time"

	"sampler/define"
)

// Sensor 所有传感器的公共部分
type Sensor interface {
	GetID() string
	GetModel() string
	Ready() bool // 构造时是否成功读到有效数据
}

// PressureSensor 压力传感器（hPa）
type PressureSensor interface {
	Sensor
	Pressure() float64
	TriplePressure() float64
}

// TemperatureSensor 温度传感器（K）
type TemperatureSensor interface {
	Sensor
	Temperature() float64
	TripleTemperature() float64
}

// PressureTemperatureSensor 同时提供压力和温度
type PressureTemperatureSensor interface {
	PressureSensor
	TemperatureSensor
	PressureAndTemperature() (pressure, temperature float64) // 一次读取同时返回两者
}

// Info 传感器描述，供状态接口展示
type Info struct {
	ID             string `json:"id"`
	Model          string `json:"model"`
	Ready          bool   `json:"ready"`
	HasPressure    bool   `json:"hasPressure"`
	HasTemperature bool   `json:"hasTemperature"`
}

// Describe 获取传感器描述
func Describe(s Sensor) Info {
	if s == nil {
		return Info{}
	}
	_, p := s.(PressureSensor)
	_, t := s.(TemperatureSensor)
	return Info{ID: s.GetID(), Model: s.GetModel(), Ready: s.Ready(), HasPressure: p, HasTemperature: t}
}

// base 各实现共用的标识字段
type base struct {
	id    string
	model string
	ready bool
}

func (b *base) GetID() string    { return b.id }
func (b *base) GetModel() string { return b.model }
func (b *base) Ready() bool      { return b.ready }

// sampleThree 连续读三次，两次之间等待 interval，返回有效读数的中值
func sampleThree(read func() float64, interval time.Duration) float64 {
	var samples [3]float64
	for i := range samples {
		samples[i] = read()
		if i < 2 && interval > 0 {
			time.Sleep(interval)
		}
	}
	return TripleMedian(samples)
}

// inSpan 判断读数是否在物理量程内
func inSpan(v, lo, hi float64) float64 {
	if !define.IsValid(v) || v < lo || v > hi {
		return define.InvalidReading
	}
	return v
}
