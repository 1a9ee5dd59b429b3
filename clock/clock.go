// Package clock 提供任务时间基准（T+）。
//
// t0 是任务零点对应的设备时间（毫秒）。实时时钟不可用时使用估算值，
// 此时 Ready() 为 false，但所有查询照常返回，不阻塞也不 panic。
package clock

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// TimeSource 返回当前设备时间（毫秒）
type TimeSource func() int64

// SystemTime 系统时间（毫秒）
func SystemTime() int64 { return time.Now().UnixMilli() }

// Clock 任务时钟，t0 保存在原子变量中，可被主循环和后台协程同时读取
type Clock struct {
	now         TimeSource
	t0          atomic.Int64
	ready       atomic.Bool
	corrections atomic.Int32
	drift       atomic.Int64
}

// Snapshot 时钟状态快照，用于关机前持久化
type Snapshot struct {
	T0Ms        int64 `json:"t0Ms"`
	TPlusMs     int64 `json:"tPlusMs"`
	NowMs       int64 `json:"nowMs"`
	Ready       bool  `json:"ready"`
	Corrections int32 `json:"corrections"`
	DriftMs     int64 `json:"driftMs"`
}

// New 创建任务时钟
func New(now TimeSource, t0 int64, ready bool) *Clock {
	if now == nil {
		now = SystemTime
	}
	c := &Clock{now: now}
	c.t0.Store(t0)
	c.ready.Store(ready)
	return c
}

// Ready 实时时钟是否成功读取
func (c *Clock) Ready() bool { return c.ready.Load() }

// T0Ms 任务零点的设备时间（未就绪时为估算值）
func (c *Clock) T0Ms() int64 { return c.t0.Load() }

// NowMs 当前设备时间
func (c *Clock) NowMs() int64 { return c.now() }

// TPlusMs 当前任务时间
func (c *Clock) TPlusMs() int64 { return c.now() - c.t0.Load() }

// CorrectReference 原子替换 t0，返回本次调整量
func (c *Clock) CorrectReference(newT0 int64) int64 {
	prior := c.t0.Swap(newT0)
	delta := newT0 - prior
	c.drift.Add(delta)
	c.corrections.Add(1)
	return delta
}

// Snapshot 获取时钟快照
func (c *Clock) Snapshot() Snapshot {
	now := c.now()
	t0 := c.t0.Load()
	return Snapshot{
		T0Ms:        t0,
		TPlusMs:     now - t0,
		NowMs:       now,
		Ready:       c.ready.Load(),
		Corrections: c.corrections.Load(),
		DriftMs:     c.drift.Load(),
	}
}

// Estimate 实时时钟不可用时估算 t0
func Estimate(bootMs, bootDurationMs, earlyActivationMs int64) int64 {
	return bootMs - bootDurationMs - earlyActivationMs
}

// RTC 实时时钟
type RTC interface {
	ReadTime() (time.Time, error)
}

// Fallback 实时时钟读取失败时的估算参数
type Fallback struct {
	BootMs            int64
	BootDurationMs    int64
	EarlyActivationMs int64
	Wait              time.Duration // 读取实时时钟的最长等待时间
}

var errNoRTC = errors.New("未找到实时时钟")

// FromRTC 在限定时间内读取实时时钟并推算 t0，失败则回退到估算值。
//
// 实时时钟在 T-60s 拔出保险销时被清零，因此分钟和秒数即为 T-60 以来经过的时间。
func FromRTC(ctx context.Context, rtc RTC, now TimeSource, fb Fallback) *Clock {
	if now == nil {
		now = SystemTime
	}
	estimated := Estimate(fb.BootMs, fb.BootDurationMs, fb.EarlyActivationMs)
	if rtc == nil {
		log.Printf("⚠️ 没有实时时钟，使用估算 t0: %d ms", estimated)
		return New(now, estimated, false)
	}

	// MaxElapsedTime 为 0 时 backoff 会一直重试，等待时间不为正时只读一次
	var bo backoff.BackOff = &backoff.StopBackOff{}
	if fb.Wait > 0 {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = 50 * time.Millisecond
		exp.MaxElapsedTime = fb.Wait
		bo = exp
	}

	var rtcTime time.Time
	err := backoff.Retry(func() error {
		t, err := rtc.ReadTime()
		if err != nil {
			return err
		}
		rtcTime = t
		return nil
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		log.Printf("⚠️ 读取实时时钟失败: %v，使用估算 t0: %d ms", errors.Join(errNoRTC, err), estimated)
		return New(now, estimated, false)
	}

	nowMs := now()
	sinceTMinus60 := int64(rtcTime.Minute()*60+rtcTime.Second()) * 1000
	t0 := nowMs - sinceTMinus60 + 60000
	log.Printf("✅ 实时时钟就绪，t0: %d ms", t0)
	return New(now, t0, true)
}
