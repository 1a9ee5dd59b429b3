package component

import (
	"log"
	"time"

	"tinygo.org/x/drivers"

	"sampler/define"
)

// MPRLS Honeywell MPRLS0025PA 压力传感器常量
const (
	MPRLSAddress = 0x18

	mprlsCountMin = 0x19999A // 10% 满量程
	mprlsCountMax = 0xE66666 // 90% 满量程
	mprlsPSIMax   = 25.0

	mprlsStatusBusy       = 0x20
	mprlsStatusIntegrity  = 0x04
	mprlsStatusSaturation = 0x01

	// MPRLSConversionTime 单次转换时间（200 Hz）
	MPRLSConversionTime = 5 * time.Millisecond
)

// PSIToHPa 磅力每平方英寸换算为百帕
const PSIToHPa = 68.9476

// MPRLS 舱内压力传感器
type MPRLS struct {
	base
	bus      drivers.I2C
	addr     uint16
	convWait time.Duration
}

// NewMPRLS 创建 MPRLS。bus 为 nil（通道不可用）时传感器永久未就绪。
func NewMPRLS(id string, bus drivers.I2C, addr uint16) *MPRLS {
	if addr == 0 {
		addr = MPRLSAddress
	}
	m := &MPRLS{
		base:     base{id: id, model: "mprls"},
		bus:      bus,
		addr:     addr,
		convWait: MPRLSConversionTime,
	}
	m.ready = define.IsValid(m.Pressure())
	if m.ready {
		log.Printf("✅ 压力传感器 %s (MPRLS) 就绪", id)
	} else {
		log.Printf("⚠️ 压力传感器 %s (MPRLS) 未就绪", id)
	}
	return m
}

// Pressure 触发一次转换并读取压力（hPa）
func (m *MPRLS) Pressure() float64 {
	if m.bus == nil {
		return define.InvalidReading
	}
	if err := m.bus.Tx(m.addr, []byte{0xAA, 0x00, 0x00}, nil); err != nil {
		return define.InvalidReading
	}
	time.Sleep(m.convWait)

	buf := make([]byte, 4)
	if err := m.bus.Tx(m.addr, nil, buf); err != nil {
		return define.InvalidReading
	}
	if buf[0]&(mprlsStatusBusy|mprlsStatusIntegrity|mprlsStatusSaturation) != 0 {
		return define.InvalidReading
	}

	raw := uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
	psi := (float64(raw) - mprlsCountMin) * mprlsPSIMax / (mprlsCountMax - mprlsCountMin)
	return inSpan(psi*PSIToHPa, 0, mprlsPSIMax*PSIToHPa)
}

// TriplePressure 三次采样中值，每次读取已包含转换等待
func (m *MPRLS) TriplePressure() float64 {
	if m.bus == nil {
		return define.InvalidReading
	}
	return sampleThree(m.Pressure, 0)
}
