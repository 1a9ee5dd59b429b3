package cli

import (
	"fmt"
	"log"
	"time"

	"tinygo.org/x/drivers"

	"sampler/accel"
	"sampler/bus"
	"sampler/clock"
	"sampler/component"
	"sampler/config"
	"sampler/device"
)

// hardware 按配置组装的硬件
type hardware struct {
	dev   *bus.Dev
	mux   *bus.Mux
	gpio  device.GPIO
	chip  *device.ChipGPIO // 演练模式下为 nil

	valves  *device.ValveManager
	main    *device.Valve
	dynamic *device.Valve
	static  *device.Valve
	tanks   []*device.Tank

	manifold component.PressureSensor
	canister component.PressureSensor
	dpv      component.TemperatureSensor
	rtc      clock.RTC
	accel    accel.Source
}

// Close 释放阀门和总线
func (h *hardware) Close() error {
	var err error
	if h.valves != nil {
		err = h.valves.CleanupAll()
	}
	if h.dev != nil {
		if cerr := h.dev.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// openBus 打开 I2C 总线和多路复用器。失败时返回 nil，所有传感器都将不可用。
func openBus(cfg config.BusConfig) (*bus.Dev, *bus.Shared, *bus.Mux) {
	dev, err := bus.Open(cfg.Device)
	if err != nil {
		log.Printf("❌ 打开 I2C 总线失败: %v", err)
		return nil, nil, nil
	}
	shared := bus.NewShared(dev, time.Duration(cfg.LockTimeoutMs)*time.Millisecond)
	mux := bus.NewMux(shared, cfg.MultiplexerAddress)
	if err := mux.Probe(); err != nil {
		log.Printf("❌ 多路复用器无应答: %v", err)
		return dev, shared, nil
	}
	log.Printf("✅ I2C 总线 %s 与多路复用器 0x%02X 就绪", dev, cfg.MultiplexerAddress)
	return dev, shared, mux
}

// channel 返回多路复用器通道，不可用时返回 nil 接口
func (h *hardware) channel(n int) drivers.I2C {
	if h.mux == nil {
		return nil
	}
	return h.mux.Channel(n)
}

// sensor 按配置创建传感器。演练模式下只使用回放文件。
func (h *hardware) sensor(id string, sc config.SensorConfig, dryRun, temperature bool) (component.Sensor, error) {
	model := sc.Model
	if dryRun || sc.ReplayFile != "" {
		model = "file"
		if temperature {
			model = "file_temperature"
		}
	}
	params := component.Params{ID: id, Address: sc.Address, ReplayFile: sc.ReplayFile}
	if !dryRun {
		params.Bus = h.channel(sc.Channel)
	}
	if params.ReplayFile == "" && (model == "file" || model == "file_temperature") {
		if temperature {
			return component.NewFileTemperatureSensor(id, nil), nil
		}
		return component.NewFilePressureSensor(id, nil), nil
	}

	s, err := component.CreateSensor(model, params)
	if err != nil {
		return nil, fmt.Errorf("创建传感器 %s 失败：%w", id, err)
	}
	if !s.Ready() {
		log.Printf("⚠️ 传感器 %s (%s) 未就绪，读数将为无效值", id, s.GetModel())
	} else {
		log.Printf("✅ 传感器 %s (%s) 就绪", id, s.GetModel())
	}
	return s, nil
}

func (h *hardware) pressureSensor(id string, sc config.SensorConfig, dryRun bool) (component.PressureSensor, error) {
	s, err := h.sensor(id, sc, dryRun, false)
	if err != nil {
		return nil, err
	}
	ps, ok := s.(component.PressureSensor)
	if !ok {
		return nil, fmt.Errorf("传感器 %s 的型号 %s 不能测量压力", id, sc.Model)
	}
	return ps, nil
}

func (h *hardware) temperatureSensor(id string, sc config.SensorConfig, dryRun bool) (component.TemperatureSensor, error) {
	s, err := h.sensor(id, sc, dryRun, true)
	if err != nil {
		return nil, err
	}
	ts, ok := s.(component.TemperatureSensor)
	if !ok {
		return nil, fmt.Errorf("传感器 %s 的型号 %s 不能测量温度", id, sc.Model)
	}
	return ts, nil
}

// buildHardware 按配置组装总线、阀门和传感器。dryRun 时使用内存 GPIO 和回放传感器。
func buildHardware(cfg *config.Config, dryRun bool) (*hardware, error) {
	h := &hardware{}
	var shared *bus.Shared
	if dryRun {
		log.Printf("ℹ️ 演练模式：使用内存 GPIO 和回放传感器")
		h.gpio = device.NewMemoryGPIO()
	} else {
		h.chip = device.NewChipGPIO(cfg.GPIO.Chip)
		h.gpio = h.chip
		h.dev, shared, h.mux = openBus(cfg.Bus)
	}

	h.valves = device.NewValveManager(h.gpio)
	h.main = h.valves.Register(cfg.Valves.MainPin, "main")
	h.dynamic = h.valves.Register(cfg.Valves.DynamicPin, "dynamic")
	h.static = h.valves.Register(cfg.Valves.StaticPin, "static")

	for _, tc := range cfg.Tanks {
		sensor, err := h.pressureSensor("tank"+tc.Name, tc.Sensor, dryRun)
		if err != nil {
			return h, err
		}
		valve := h.valves.Register(tc.ValvePin, "tank"+tc.Name)
		h.tanks = append(h.tanks, device.NewTank(tc.Name, valve, sensor))
	}

	var err error
	if cfg.Manifold.Present() {
		if h.manifold, err = h.pressureSensor("manifold", cfg.Manifold, dryRun); err != nil {
			return h, err
		}
	}
	if h.canister, err = h.pressureSensor("canister", cfg.Canister, dryRun); err != nil {
		return h, err
	}
	if h.dpv, err = h.temperatureSensor("dpv", cfg.DPV, dryRun); err != nil {
		return h, err
	}

	if shared != nil {
		h.rtc = clock.NewDS3231(shared)
	}
	if cfg.Accel.Enabled && !dryRun {
		h.accel = accel.NewLSM6DS3TRSource(h.channel(cfg.Accel.Channel), cfg.Accel.Address)
	}
	return h, nil
}
