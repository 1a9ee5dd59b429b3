package accel

import (
	"errors"
	"fmt"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/lsm6ds3tr"
)

// ErrNotConnected 总线上没有应答的加速度计
var ErrNotConnected = errors.New("LSM6DS3TR 未连接")

// LSM6DS3TRSource LSM6DS3TR 六轴传感器，只使用加速度
type LSM6DS3TRSource struct {
	bus  drivers.I2C
	addr uint16
	dev  *lsm6ds3tr.Device
}

// NewLSM6DS3TRSource 创建加速度来源，addr 为 0 时使用驱动默认地址
func NewLSM6DS3TRSource(bus drivers.I2C, addr uint16) *LSM6DS3TRSource {
	return &LSM6DS3TRSource{bus: bus, addr: addr}
}

func (s *LSM6DS3TRSource) Name() string { return "LSM6DS3TR" }

// Connect 检查设备应答并重新配置量程和采样率
func (s *LSM6DS3TRSource) Connect() error {
	s.dev = nil
	if s.bus == nil {
		return ErrNotConnected
	}
	dev := lsm6ds3tr.New(s.bus)
	if s.addr != 0 {
		dev.Address = s.addr
	}
	if !dev.Connected() {
		return ErrNotConnected
	}
	err := dev.Configure(lsm6ds3tr.Configuration{
		AccelRange:      lsm6ds3tr.ACCEL_8G,
		AccelSampleRate: lsm6ds3tr.ACCEL_SR_104,
		GyroRange:       lsm6ds3tr.GYRO_1000DPS,
		GyroSampleRate:  lsm6ds3tr.GYRO_SR_104,
	})
	if err != nil {
		return fmt.Errorf("配置 LSM6DS3TR 失败：%w", err)
	}
	s.dev = dev
	return nil
}

// Read 读取三轴加速度（μg）
func (s *LSM6DS3TRSource) Read() (Sample, error) {
	if s.dev == nil {
		return Sample{}, ErrNotConnected
	}
	x, y, z, err := s.dev.ReadAcceleration()
	if err != nil {
		return Sample{}, fmt.Errorf("读取加速度失败：%w", err)
	}
	return Sample{X: x, Y: y, Z: z}, nil
}
