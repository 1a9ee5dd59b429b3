package device

import (
	"errors"
	"fmt"
	"log"
	"sync"
)

// ValveManager 阀门注册表，每个引脚只能注册一次
type ValveManager struct {
	gpio   GPIO
	valves map[int]*Valve
	order  []int
	mutex  sync.RWMutex
}

func NewValveManager(gpio GPIO) *ValveManager {
	return &ValveManager{gpio: gpio, valves: make(map[int]*Valve)}
}

// Register 注册阀门并拉低引脚。引脚重复时只打印警告，返回已注册的阀门。
func (m *ValveManager) Register(pin int, name string) *Valve {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if existing, exists := m.valves[pin]; exists {
		log.Printf("⚠️ 引脚 %d 已被阀门 %s 注册，忽略 %s", pin, existing.name, name)
		return existing
	}

	v := &Valve{pin: pin, name: name, gpio: m.gpio}
	if err := m.gpio.Setup(pin); err != nil {
		log.Printf("⚠️ 阀门 %s (引脚 %d) 初始化失败: %v", name, pin, err)
	}
	m.valves[pin] = v
	m.order = append(m.order, pin)
	log.Printf("✅ 阀门 %s 已注册 (引脚 %d)", name, pin)
	return v
}

func (m *ValveManager) GetValve(pin int) (*Valve, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	v, exists := m.valves[pin]
	if !exists {
		return nil, fmt.Errorf("引脚 %d 没有注册阀门", pin)
	}
	return v, nil
}

// GetAllValves 按注册顺序返回所有阀门
func (m *ValveManager) GetAllValves() []*Valve {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	valves := make([]*Valve, 0, len(m.order))
	for _, pin := range m.order {
		valves = append(valves, m.valves[pin])
	}
	return valves
}

// CleanupAll 关闭所有阀门并释放 GPIO
func (m *ValveManager) CleanupAll() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var errs []error
	for _, pin := range m.order {
		v := m.valves[pin]
		if err := v.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := m.gpio.Release(pin); err != nil {
			errs = append(errs, err)
		}
	}
	m.valves = make(map[int]*Valve)
	m.order = nil

	if err := errors.Join(errs...); err != nil {
		log.Printf("⚠️ 清理阀门时出错: %v", err)
		return err
	}
	log.Printf("✅ 所有阀门已关闭并释放")
	return nil
}
