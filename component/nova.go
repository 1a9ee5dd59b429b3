package component

import (
	"log"
	"time"

	"tinygo.org/x/drivers"

	"sampler/define"
)

// Nova NPI-19-I2C 30 psi 绝压传感器常量
const (
	NovaAddress = 0x28

	novaCountMin = 1638  // 10% VDD
	novaCountMax = 14745 // 90% VDD
	novaPSIMax   = 30.0

	novaStatusDiagnostic = 0x3

	novaTempMinC = -50.0
	novaTempMaxC = 150.0

	// NovaSampleInterval 三次采样间隔
	NovaSampleInterval = 5 * time.Millisecond
)

// KelvinOffset 摄氏度转开尔文
const KelvinOffset = 273.15

// Nova 储气罐和歧管上的压力温度传感器
type Nova struct {
	base
	bus      drivers.I2C
	addr     uint16
	interval time.Duration
}

// NewNova 创建 Nova 传感器，bus 通常是带锁的多路复用器通道
func NewNova(id string, bus drivers.I2C, addr uint16) *Nova {
	if addr == 0 {
		addr = NovaAddress
	}
	n := &Nova{
		base:     base{id: id, model: "nova"},
		bus:      bus,
		addr:     addr,
		interval: NovaSampleInterval,
	}
	n.ready = define.IsValid(n.Pressure())
	if n.ready {
		log.Printf("✅ 压力传感器 %s (Nova) 就绪", id)
	} else {
		log.Printf("⚠️ 压力传感器 %s (Nova) 未就绪", id)
	}
	return n
}

func (n *Nova) read(buf []byte) bool {
	if n.bus == nil {
		return false
	}
	// 总线忙时 Tx 返回 bus.ErrBusBusy，本次读数作废
	if err := n.bus.Tx(n.addr, nil, buf); err != nil {
		return false
	}
	return buf[0]>>6 != novaStatusDiagnostic
}

func novaPressure(hi, lo byte) float64 {
	raw := float64(uint16(hi&0x3F)<<8 | uint16(lo))
	if raw < novaCountMin || raw > novaCountMax {
		return define.InvalidReading
	}
	psi := (raw - novaCountMin) * novaPSIMax / (novaCountMax - novaCountMin)
	return inSpan(psi*PSIToHPa, 0, novaPSIMax*PSIToHPa)
}

func novaTemperature(hi, lo byte) float64 {
	counts := float64(uint16(hi)<<3 | uint16(lo>>5))
	c := counts*200/2047 + novaTempMinC
	return inSpan(c+KelvinOffset, novaTempMinC+KelvinOffset, novaTempMaxC+KelvinOffset)
}

// Pressure 读取压力（hPa）
func (n *Nova) Pressure() float64 {
	buf := make([]byte, 2)
	if !n.read(buf) {
		return define.InvalidReading
	}
	return novaPressure(buf[0], buf[1])
}

// PressureAndTemperature 一次读取压力和温度
func (n *Nova) PressureAndTemperature() (float64, float64) {
	buf := make([]byte, 4)
	if !n.read(buf) {
		return define.InvalidReading, define.InvalidReading
	}
	return novaPressure(buf[0], buf[1]), novaTemperature(buf[2], buf[3])
}

// Temperature 读取温度（K）
func (n *Nova) Temperature() float64 {
	_, t := n.PressureAndTemperature()
	return t
}

// TriplePressure 三次采样中值
func (n *Nova) TriplePressure() float64 {
	return sampleThree(n.Pressure, n.interval)
}

// TripleTemperature 三次采样中值
func (n *Nova) TripleTemperature() float64 {
	return sampleThree(n.Temperature, n.interval)
}
