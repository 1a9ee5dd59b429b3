// Package accel 后台振动采集：独立定时器读取加速度计，写入自己的 CSV，断线后自动重连。
// 采集循环与主流程互不阻塞，只共享只读的任务时间。
package accel

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"sampler/metrics"
	"sampler/telemetry"
)

// defaultIntervalMs 默认采样间隔（毫秒）
const defaultIntervalMs = 10

var (
	// ErrNoSource 没有加速度来源
	ErrNoSource = errors.New("没有加速度来源")
	// ErrInvalidDuration 采集时长必须为正
	ErrInvalidDuration = errors.New("采集时长必须为正")
)

// Sample 一次三轴加速度读数（μg）
type Sample struct {
	X, Y, Z int32
}

// Source 加速度来源。Connect 失败或 Read 出错后引擎会按退避间隔重新 Connect。
type Source interface {
	Name() string
	Connect() error
	Read() (Sample, error)
}

// Stats 采集计数
type Stats struct {
	Samples    int64 `json:"samples"`
	Overruns   int64 `json:"overruns"`
	Reconnects int64 `json:"reconnects"`
	Connected  bool  `json:"connected"`
}

// Engine 管理后台采集循环
type Engine struct {
	source      Source
	writer      *csvWriter
	tplus       func() int64
	metrics     *metrics.Metrics
	stopChan    chan struct{} // 当前循环的停止通道
	done        chan struct{} // 当前循环退出时关闭
	isRunning   bool
	engineMutex sync.Mutex // 保护 isRunning、stopChan、done

	samples    atomic.Int64
	overruns   atomic.Int64
	reconnects atomic.Int64
	connected  atomic.Bool
}

// NewEngine 创建采集引擎，tplus 为任务时间，写入每行的第一列
func NewEngine(source Source, sink telemetry.Sink, tplus func() int64) *Engine {
	return &Engine{source: source, writer: newCSVWriter(sink), tplus: tplus}
}

// SetMetrics 设置指标
func (e *Engine) SetMetrics(m *metrics.Metrics) { e.metrics = m }

func (e *Engine) sourceName() string {
	if e.source == nil {
		return "加速度计"
	}
	return e.source.Name()
}

// Start 启动采集循环，duration 后自动结束。已在运行时先停止旧循环。
func (e *Engine) Start(ctx context.Context, interval, duration time.Duration) error {
	if e.source == nil {
		return ErrNoSource
	}
	if duration <= 0 {
		return fmt.Errorf("启动振动采集失败：%w", ErrInvalidDuration)
	}
	if interval <= 0 {
		interval = defaultIntervalMs * time.Millisecond
	}

	e.engineMutex.Lock()
	defer e.engineMutex.Unlock()

	if e.isRunning {
		log.Printf("ℹ️ 正在停止当前振动采集以重新启动...")
		close(e.stopChan)
	}

	e.stopChan = make(chan struct{})
	e.done = make(chan struct{})
	e.isRunning = true

	log.Printf("🚀 准备启动振动采集 (%s, 间隔: %v, 时长: %v)", e.sourceName(), interval, duration)
	go e.runCaptureLoop(ctx, e.stopChan, e.done, interval, duration)
	return nil
}

// Run 启动采集并阻塞到结束
func (e *Engine) Run(ctx context.Context, interval, duration time.Duration) error {
	if err := e.Start(ctx, interval, duration); err != nil {
		return err
	}
	e.engineMutex.Lock()
	done := e.done
	e.engineMutex.Unlock()
	<-done
	return nil
}

// Stop 停止当前采集
func (e *Engine) Stop() error {
	e.engineMutex.Lock()
	defer e.engineMutex.Unlock()

	if !e.isRunning {
		log.Printf("ℹ️ 当前没有振动采集在运行")
		return nil
	}

	log.Printf("⏳ 正在发送停止信号给振动采集 (%s)...", e.sourceName())
	close(e.stopChan)
	e.isRunning = false
	return nil
}

// IsRunning 是否正在采集
func (e *Engine) IsRunning() bool {
	e.engineMutex.Lock()
	defer e.engineMutex.Unlock()
	return e.isRunning
}

// Stats 获取采集计数
func (e *Engine) Stats() Stats {
	return Stats{
		Samples:    e.samples.Load(),
		Overruns:   e.overruns.Load(),
		Reconnects: e.reconnects.Load(),
		Connected:  e.connected.Load(),
	}
}

func (e *Engine) connect() bool {
	if err := e.source.Connect(); err != nil {
		log.Printf("❌ 连接 %s 失败: %v", e.sourceName(), err)
		e.connected.Store(false)
		return false
	}
	log.Printf("✅ %s 已连接", e.sourceName())
	e.connected.Store(true)
	return true
}

// runCaptureLoop 采集主循环，在单独的 goroutine 中运行
func (e *Engine) runCaptureLoop(ctx context.Context, stopChan <-chan struct{}, done chan struct{}, interval, duration time.Duration) {
	defer e.handleLoopExit(stopChan, done)

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = interval
	retry.MaxInterval = time.Second
	retry.MaxElapsedTime = 0

	if err := e.writer.header(); err != nil {
		log.Printf("⚠️ 写入振动数据表头失败: %v", err)
	}

	connected := e.connect()
	nextAttempt := time.Now()
	if !connected {
		nextAttempt = nextAttempt.Add(retry.NextBackOff())
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	deadline := time.NewTimer(duration)
	defer deadline.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			log.Printf("🛑 振动采集随任务结束")
			return
		case <-stopChan:
			log.Printf("🛑 振动采集被显式停止")
			return
		case <-deadline.C:
			log.Printf("ℹ️ 振动采集达到时长 %v", duration)
			return
		case now := <-ticker.C:
			// 定时器丢拍说明循环跟不上采样间隔
			if now.Sub(last) >= 2*interval {
				e.overruns.Add(1)
				e.metrics.IncAccelOverrun()
			}
			last = now

			if !connected {
				if now.Before(nextAttempt) {
					continue
				}
				e.reconnects.Add(1)
				e.metrics.IncAccelReconnect()
				if connected = e.connect(); !connected {
					nextAttempt = now.Add(retry.NextBackOff())
					continue
				}
				retry.Reset()
			}

			s, err := e.source.Read()
			if err != nil {
				log.Printf("⚠️ 已连接 %s 但读取失败: %v", e.sourceName(), err)
				connected = false
				e.connected.Store(false)
				nextAttempt = now.Add(retry.NextBackOff())
				continue
			}
			if err := e.writer.row(e.tplus(), s); err != nil {
				log.Printf("❌ 写入振动数据失败: %v", err)
			}
			e.samples.Add(1)
			e.metrics.IncAccelSample()
		}
	}
}

// handleLoopExit 采集 goroutine 退出时的清理
func (e *Engine) handleLoopExit(stopChan <-chan struct{}, done chan struct{}) {
	if err := e.writer.flush(); err != nil {
		log.Printf("⚠️ 振动数据落盘失败: %v", err)
	}

	e.engineMutex.Lock()
	defer e.engineMutex.Unlock()
	defer close(done)

	// 新的循环已经接管引擎状态时只需退出
	if stopChan == e.stopChan {
		e.isRunning = false
		s := e.Stats()
		log.Printf("👋 振动采集结束，共 %d 个样本，%d 次超时，%d 次重连", s.Samples, s.Overruns, s.Reconnects)
	} else {
		log.Printf("ℹ️ 旧的振动采集 goroutine 退出")
	}
}
