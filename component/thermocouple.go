package component

import (
	"log"
	"time"

	"tinygo.org/x/drivers"

	"sampler/define"
)

// MCP9600 热电偶放大器常量（K 型）
const (
	MCP9600Address = 0x67

	mcp9600RegHotJunction = 0x00
	mcp9600RegDeviceID    = 0x20
	mcp9600DeviceID       = 0x40

	thermocoupleMinC = -200.0
	thermocoupleMaxC = 1372.0

	// ThermocoupleSampleInterval 三次采样间隔
	ThermocoupleSampleInterval = 5 * time.Millisecond
)

// Thermocouple 热端（DPV）热电偶
type Thermocouple struct {
	base
	bus      drivers.I2C
	addr     uint16
	interval time.Duration
}

// NewThermocouple 创建热电偶，芯片 ID 不符或首次读数无效时未就绪
func NewThermocouple(id string, bus drivers.I2C, addr uint16) *Thermocouple {
	if addr == 0 {
		addr = MCP9600Address
	}
	t := &Thermocouple{
		base:     base{id: id, model: "mcp9600"},
		bus:      bus,
		addr:     addr,
		interval: ThermocoupleSampleInterval,
	}
	t.ready = t.probe() && define.IsValid(t.Temperature())
	if t.ready {
		log.Printf("✅ 热电偶 %s (MCP9600) 就绪", id)
	} else {
		log.Printf("⚠️ 热电偶 %s (MCP9600) 未就绪", id)
	}
	return t
}

func (t *Thermocouple) probe() bool {
	if t.bus == nil {
		return false
	}
	buf := make([]byte, 2)
	if err := t.bus.Tx(t.addr, []byte{mcp9600RegDeviceID}, buf); err != nil {
		return false
	}
	return buf[0] == mcp9600DeviceID
}

// Temperature 读取热端温度（K）
func (t *Thermocouple) Temperature() float64 {
	if t.bus == nil {
		return define.InvalidReading
	}
	buf := make([]byte, 2)
	if err := t.bus.Tx(t.addr, []byte{mcp9600RegHotJunction}, buf); err != nil {
		return define.InvalidReading
	}
	c := float64(int16(uint16(buf[0])<<8|uint16(buf[1]))) * 0.0625
	return inSpan(c+KelvinOffset, thermocoupleMinC+KelvinOffset, thermocoupleMaxC+KelvinOffset)
}

// TripleTemperature 三次采样中值
func (t *Thermocouple) TripleTemperature() float64 {
	return sampleThree(t.Temperature, t.interval)
}
