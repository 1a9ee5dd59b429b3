package bus

import (
	"fmt"
	"log"
)

// DefaultMuxAddress TCA9548A 默认地址
const DefaultMuxAddress = 0x70

// Mux TCA9548A 八路 I2C 多路复用器
type Mux struct {
	shared  *Shared
	addr    uint16
	current int
}

// NewMux 创建多路复用器
func NewMux(shared *Shared, addr uint16) *Mux {
	if addr == 0 {
		addr = DefaultMuxAddress
	}
	return &Mux{shared: shared, addr: addr, current: -1}
}

// Probe 读取控制寄存器确认复用器存在
func (m *Mux) Probe() error {
	return m.shared.WithLock(func(b Bus) error {
		buf := make([]byte, 1)
		if err := b.Tx(m.addr, nil, buf); err != nil {
			return fmt.Errorf("多路复用器 0x%02x 无响应：%w", m.addr, err)
		}
		log.Printf("✅ 多路复用器 0x%02x 就绪", m.addr)
		return nil
	})
}

// 调用方已持有总线锁
func (m *Mux) selectLocked(b Bus, n int) error {
	if m.current == n {
		return nil
	}
	if err := b.Tx(m.addr, []byte{1 << uint(n)}, nil); err != nil {
		m.current = -1
		return fmt.Errorf("切换多路复用器通道 %d 失败：%w", n, err)
	}
	m.current = n
	return nil
}

// Channel 获取第 n 路的总线视图
func (m *Mux) Channel(n int) *Channel {
	return &Channel{mux: m, n: n}
}

// Channel 多路复用器的一路，每次事务前自动切换通道
type Channel struct {
	mux *Mux
	n   int
}

// Tx 切换通道后执行事务，两步在同一把锁内完成
func (c *Channel) Tx(addr uint16, w, r []byte) error {
	if c.n < 0 || c.n > 7 {
		return fmt.Errorf("多路复用器通道 %d 超出范围", c.n)
	}
	return c.mux.shared.WithLock(func(b Bus) error {
		if err := c.mux.selectLocked(b, c.n); err != nil {
			return err
		}
		return b.Tx(addr, w, r)
	})
}

// ReadRegister 读寄存器
func (c *Channel) ReadRegister(addr uint8, reg uint8, buf []byte) error {
	return c.Tx(uint16(addr), []byte{reg}, buf)
}

// WriteRegister 写寄存器
func (c *Channel) WriteRegister(addr uint8, reg uint8, buf []byte) error {
	return c.Tx(uint16(addr), append([]byte{reg}, buf...), nil)
}
