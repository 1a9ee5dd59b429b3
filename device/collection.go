package device

import (
	"sync/atomic"

	"sampler/config"
	"sampler/define"
)

// Collection 采样计划，只引用储气罐 ID，不拥有储气罐
type Collection struct {
	Plan    config.CollectionConfig
	tank    atomic.Int64
	attempt atomic.Int32
}

// NewCollection 创建采样计划，初始未分配储气罐
func NewCollection(plan config.CollectionConfig) *Collection {
	c := &Collection{Plan: plan}
	c.tank.Store(int64(NoTank))
	return c
}

// Num 采样计划编号
func (c *Collection) Num() int { return c.Plan.Num }

// Tank 当前分配的储气罐
func (c *Collection) Tank() TankID { return TankID(c.tank.Load()) }

// AssignTank 分配储气罐
func (c *Collection) AssignTank(id TankID) { c.tank.Store(int64(id)) }

// SampledCount 已尝试采样次数
func (c *Collection) SampledCount() int { return int(c.attempt.Load()) }

// IncSampledCount 记一次采样尝试
func (c *Collection) IncSampledCount() int { return int(c.attempt.Add(1)) }

// Sampled 所分配储气罐的状态是否为 Sampled
func (c *Collection) Sampled(tanks *TankSet) bool {
	t := tanks.Get(c.Tank())
	return t != nil && t.State() == define.TankSampled
}

// SwapTanks 交换两个采样计划的储气罐
func SwapTanks(a, b *Collection) {
	ta, tb := a.Tank(), b.Tank()
	a.AssignTank(tb)
	b.AssignTank(ta)
}
