// Package bus 提供 I2C 总线访问：Linux i2c-dev 设备、带超时的共享锁以及 TCA9548A 多路复用器。
//
// 所有类型都实现 tinygo.org/x/drivers 的 I2C 接口，可直接交给驱动使用。
package bus

import (
	"errors"
	"sync"
	"time"

	"tinygo.org/x/drivers"
)

var (
	_ drivers.I2C = (*Shared)(nil)
	_ drivers.I2C = (*Channel)(nil)
	_ drivers.I2C = (*Dev)(nil)
)

// ErrBusBusy 在超时时间内未能获得总线
var ErrBusBusy = errors.New("I2C 总线忙")

// Bus 最小 I2C 事务接口
type Bus interface {
	Tx(addr uint16, w, r []byte) error
}

// Shared 多个设备共用的总线，同一时刻只允许一个事务
type Shared struct {
	bus     Bus
	mu      sync.Mutex
	timeout time.Duration
}

// NewShared 包装底层总线，timeout 为等待锁的最长时间
func NewShared(b Bus, timeout time.Duration) *Shared {
	return &Shared{bus: b, timeout: timeout}
}

func (s *Shared) lock() error {
	if s.mu.TryLock() {
		return nil
	}
	deadline := time.Now().Add(s.timeout)
	for {
		time.Sleep(100 * time.Microsecond)
		if s.mu.TryLock() {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrBusBusy
		}
	}
}

// WithLock 持有总线锁执行 fn
func (s *Shared) WithLock(fn func(b Bus) error) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	return fn(s.bus)
}

// Tx 执行一次加锁事务
func (s *Shared) Tx(addr uint16, w, r []byte) error {
	return s.WithLock(func(b Bus) error {
		return b.Tx(addr, w, r)
	})
}

// ReadRegister 读寄存器
func (s *Shared) ReadRegister(addr uint8, reg uint8, buf []byte) error {
	return s.Tx(uint16(addr), []byte{reg}, buf)
}

// WriteRegister 写寄存器
func (s *Shared) WriteRegister(addr uint8, reg uint8, buf []byte) error {
	return s.Tx(uint16(addr), append([]byte{reg}, buf...), nil)
}
