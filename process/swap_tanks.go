package process

import (
	"errors"
	"fmt"
	"slices"

	"sampler/define"
	"sampler/device"
)

// SwapTanks 按优先级重新分配储气罐：先 LastResort，再按压力从低到高的 Ready，最后其余储气罐
type SwapTanks struct {
	mission *Mission
}

func NewSwapTanks(m *Mission) *SwapTanks {
	return &SwapTanks{mission: m}
}

func (p *SwapTanks) Name() string { return "SwapTanks" }

// Order 计算分配顺序。Ready 储气罐各取一次三次采样压力，无效读数排在最后。
func (p *SwapTanks) Order() []device.TankID {
	tanks := p.mission.Tanks()

	var lastResort, others []device.TankID
	type ranked struct {
		id       device.TankID
		pressure float64
	}
	var ready []ranked

	for _, id := range tanks.IDs() {
		t := tanks.Get(id)
		switch t.State() {
		case define.TankLastResort:
			lastResort = append(lastResort, id)
		case define.TankReady:
			pressure := define.InvalidReading
			if s := t.Sensor(); s != nil {
				pressure = s.TriplePressure()
			}
			ready = append(ready, ranked{id: id, pressure: pressure})
		default:
			others = append(others, id)
		}
	}

	slices.SortStableFunc(ready, func(a, b ranked) int {
		av, bv := define.IsValid(a.pressure), define.IsValid(b.pressure)
		switch {
		case av && !bv:
			return -1
		case !av && bv:
			return 1
		case !av && !bv:
			return 0
		case a.pressure < b.pressure:
			return -1
		case a.pressure > b.pressure:
			return 1
		}
		return 0
	})

	order := make([]device.TankID, 0, tanks.Len())
	order = append(order, lastResort...)
	for _, r := range ready {
		order = append(order, r.id)
	}
	return append(order, others...)
}

func (p *SwapTanks) Run() error {
	m := p.mission
	if err := m.Ready(); err != nil {
		return err
	}
	m.Eventf("开始 SwapTanks")
	if len(m.Collections()) == 0 {
		return missing(p.Name(), "采样计划")
	}
	if m.Tanks().Len() == 0 {
		return missing(p.Name(), "储气罐")
	}

	order := p.Order()
	var errs []error
	for i, c := range m.Collections() {
		if i >= len(order) {
			c.AssignTank(device.NoTank)
			m.Eventf("采样计划 %d 没有可分配的储气罐！", c.Num())
			errs = append(errs, fmt.Errorf("采样计划 %d: %w", c.Num(), ErrNoTankForCollection))
			continue
		}
		t := m.Tanks().Get(order[i])
		c.AssignTank(order[i])
		m.Eventf("采样计划 %d 分配储气罐 %s (%s)", c.Num(), t.Name(), t.State())
	}

	m.Eventf("SwapTanks 完成")
	return errors.Join(errs...)
}
