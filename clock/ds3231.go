package clock

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/ds3231"
)

// ErrOscillatorStopped DS3231 振荡器曾停止，时间不可信
var ErrOscillatorStopped = errors.New("DS3231 时间无效（振荡器曾停止）")

// DS3231 实时时钟芯片
type DS3231 struct {
	dev ds3231.Device
}

// NewDS3231 在给定总线上创建 DS3231
func NewDS3231(bus drivers.I2C) *DS3231 {
	d := &DS3231{dev: ds3231.New(bus)}
	d.dev.Configure()
	return d
}

// ReadTime 读取芯片时间
func (d *DS3231) ReadTime() (time.Time, error) {
	if !d.dev.IsTimeValid() {
		return time.Time{}, ErrOscillatorStopped
	}
	return d.dev.ReadTime()
}
