package device

import (
	"fmt"
	"sync"
)

// MemoryGPIO 内存中的 GPIO，用于演练模式和测试
type MemoryGPIO struct {
	mu      sync.Mutex
	levels  map[int]bool
	setup   map[int]bool
	history []PinEvent
	fail    map[int]bool
	onSet   func(pin int, high bool)
}

// PinEvent 一次电平变化
type PinEvent struct {
	Pin  int
	High bool
}

func NewMemoryGPIO() *MemoryGPIO {
	return &MemoryGPIO{levels: make(map[int]bool), setup: make(map[int]bool), fail: make(map[int]bool)}
}

// OnSet 设置电平变化回调（在锁外调用）
func (g *MemoryGPIO) OnSet(fn func(pin int, high bool)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onSet = fn
}

// Fail 让指定引脚的写操作失败
func (g *MemoryGPIO) Fail(pin int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fail[pin] = true
}

func (g *MemoryGPIO) Setup(pin int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.setup[pin] = true
	g.levels[pin] = false
	return nil
}

func (g *MemoryGPIO) SetOutput(pin int, high bool) error {
	g.mu.Lock()
	if g.fail[pin] {
		g.mu.Unlock()
		return fmt.Errorf("GPIO %d 写入失败", pin)
	}
	g.levels[pin] = high
	g.history = append(g.history, PinEvent{Pin: pin, High: high})
	fn := g.onSet
	g.mu.Unlock()

	if fn != nil {
		fn(pin, high)
	}
	return nil
}

func (g *MemoryGPIO) Release(pin int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.setup, pin)
	return nil
}

// Level 当前电平
func (g *MemoryGPIO) Level(pin int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.levels[pin]
}

// IsSetup 引脚是否已配置且未释放
func (g *MemoryGPIO) IsSetup(pin int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.setup[pin]
}

// History 所有电平变化
func (g *MemoryGPIO) History() []PinEvent {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]PinEvent(nil), g.history...)
}
