package device

import (
	"context"
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// GPIO 输出引脚控制
type GPIO interface {
	Setup(pin int) error // 配置为输出并拉低
	SetOutput(pin int, high bool) error
	Release(pin int) error
}

// line 已申请的 GPIO 线
type line interface {
	SetValue(value int) error
	Close() error
}

// ChipGPIO 基于 GPIO 字符设备（/dev/gpiochipN）的实现，引脚号即芯片上的 offset
type ChipGPIO struct {
	chip     string
	consumer string

	mu    sync.Mutex
	lines map[int]line

	requestOutput func(offset int) (line, error)
	requestEdge   func(offset int, handler gpiocdev.EventHandler) (line, error)
}

// NewChipGPIO 创建字符设备 GPIO，chip 通常为 gpiochip0
func NewChipGPIO(chip string) *ChipGPIO {
	g := &ChipGPIO{chip: chip, consumer: "sampler", lines: make(map[int]line)}
	g.requestOutput = func(offset int) (line, error) {
		l, err := gpiocdev.RequestLine(g.chip, offset, gpiocdev.AsOutput(0), gpiocdev.WithConsumer(g.consumer))
		if err != nil {
			return nil, err
		}
		return l, nil
	}
	g.requestEdge = func(offset int, handler gpiocdev.EventHandler) (line, error) {
		l, err := gpiocdev.RequestLine(g.chip, offset,
			gpiocdev.AsInput,
			gpiocdev.WithRisingEdge,
			gpiocdev.WithEventHandler(handler),
			gpiocdev.WithConsumer(g.consumer))
		if err != nil {
			return nil, err
		}
		return l, nil
	}
	return g
}

// Setup 申请为输出线，初始电平为低。重复调用只把电平拉低。
func (g *ChipGPIO) Setup(pin int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if l, ok := g.lines[pin]; ok {
		return l.SetValue(0)
	}
	l, err := g.requestOutput(pin)
	if err != nil {
		return fmt.Errorf("申请 GPIO %s:%d 失败：%w", g.chip, pin, err)
	}
	g.lines[pin] = l
	return nil
}

// SetOutput 设置输出电平
func (g *ChipGPIO) SetOutput(pin int, high bool) error {
	g.mu.Lock()
	l, ok := g.lines[pin]
	g.mu.Unlock()
	if !ok {
		return fmt.Errorf("GPIO %d 尚未申请", pin)
	}

	value := 0
	if high {
		value = 1
	}
	if err := l.SetValue(value); err != nil {
		return fmt.Errorf("写入 GPIO %d 失败：%w", pin, err)
	}
	return nil
}

// Release 释放输出线
func (g *ChipGPIO) Release(pin int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	l, ok := g.lines[pin]
	if !ok {
		return nil
	}
	delete(g.lines, pin)
	if err := l.Close(); err != nil {
		return fmt.Errorf("释放 GPIO %d 失败：%w", pin, err)
	}
	return nil
}

// WatchEdge 把引脚申请为输入并监听上升沿，每个沿在调用者的协程里调用一次 fn，直到 ctx 结束
func (g *ChipGPIO) WatchEdge(ctx context.Context, pin int, fn func()) error {
	edges := make(chan struct{}, 1)
	l, err := g.requestEdge(pin, func(evt gpiocdev.LineEvent) {
		if evt.Type != gpiocdev.LineEventRisingEdge {
			return
		}
		select {
		case edges <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return fmt.Errorf("监听 GPIO %s:%d 失败：%w", g.chip, pin, err)
	}
	defer l.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-edges:
			fn()
		}
	}
}
