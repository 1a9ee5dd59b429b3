// Package metrics 任务指标，供地面检查时通过 /metrics 拉取。
// 所有方法允许在 nil *Metrics 上调用。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sampler/define"
)

const namespace = "sampler"

// Metrics 任务指标集合
type Metrics struct {
	registry *prometheus.Registry

	tankPressure     *prometheus.GaugeVec
	tankTemperature  *prometheus.GaugeVec
	tankState        *prometheus.GaugeVec
	canisterPressure prometheus.Gauge
	dpvTemperature   prometheus.Gauge
	plumbingState    prometheus.Gauge
	thermalTripped   prometheus.Gauge
	tPlus            prometheus.Gauge
	logTicks         prometheus.Counter
	sampleAttempts   *prometheus.CounterVec
	accelSamples     prometheus.Counter
	accelOverruns    prometheus.Counter
	accelReconnects  prometheus.Counter
}

// New 创建并注册所有指标
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tankPressure: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "tank_pressure_hpa", Help: "最近一次储气罐压力读数",
		}, []string{"tank"}),
		tankTemperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "tank_temperature_kelvin", Help: "最近一次储气罐温度读数",
		}, []string{"tank"}),
		tankState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "tank_state", Help: "储气罐状态（define.TankState 数值）",
		}, []string{"tank"}),
		canisterPressure: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "canister_pressure_hpa", Help: "最近一次舱内压力读数",
		}),
		dpvTemperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "dpv_temperature_kelvin", Help: "最近一次热端温度读数",
		}),
		plumbingState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "plumbing_state", Help: "主管路状态（0 正常，1 主管路故障）",
		}),
		thermalTripped: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "thermal_tripped", Help: "温度阈值是否已触发",
		}),
		tPlus: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "t_plus_ms", Help: "任务时间",
		}),
		logTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "log_ticks_total", Help: "LogPressures 调用次数",
		}),
		sampleAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "sample_attempts_total", Help: "采样尝试次数",
		}, []string{"collection"}),
		accelSamples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "accel_samples_total", Help: "振动采样数",
		}),
		accelOverruns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "accel_overruns_total", Help: "振动采样超时次数",
		}),
		accelReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "accel_reconnects_total", Help: "加速度计重连次数",
		}),
	}
	m.registry.MustRegister(
		m.tankPressure, m.tankTemperature, m.tankState,
		m.canisterPressure, m.dpvTemperature,
		m.plumbingState, m.thermalTripped, m.tPlus, m.logTicks,
		m.sampleAttempts,
		m.accelSamples, m.accelOverruns, m.accelReconnects,
	)
	return m
}

// Handler /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveTick 记录一次 LogPressures 调用
func (m *Metrics) ObserveTick(tPlusMs int64, canister float64) {
	if m == nil {
		return
	}
	m.logTicks.Inc()
	m.tPlus.Set(float64(tPlusMs))
	m.canisterPressure.Set(canister)
}

// ObserveTank 记录储气罐读数
func (m *Metrics) ObserveTank(tank string, pressure, temperature float64) {
	if m == nil {
		return
	}
	m.tankPressure.WithLabelValues(tank).Set(pressure)
	if define.IsValid(temperature) {
		m.tankTemperature.WithLabelValues(tank).Set(temperature)
	}
}

// SetTankState 记录储气罐状态
func (m *Metrics) SetTankState(tank string, s define.TankState) {
	if m == nil {
		return
	}
	m.tankState.WithLabelValues(tank).Set(float64(s))
}

// SetDPVTemperature 记录热端温度
func (m *Metrics) SetDPVTemperature(k float64) {
	if m == nil {
		return
	}
	m.dpvTemperature.Set(k)
}

// SetPlumbingState 记录主管路状态
func (m *Metrics) SetPlumbingState(s define.PlumbingState) {
	if m == nil {
		return
	}
	m.plumbingState.Set(float64(s))
}

// SetThermalTripped 记录温度阈值触发
func (m *Metrics) SetThermalTripped() {
	if m == nil {
		return
	}
	m.thermalTripped.Set(1)
}

// IncSampleAttempt 记一次采样尝试
func (m *Metrics) IncSampleAttempt(collection string) {
	if m == nil {
		return
	}
	m.sampleAttempts.WithLabelValues(collection).Inc()
}

// IncAccelSample 记一次振动采样
func (m *Metrics) IncAccelSample() {
	if m == nil {
		return
	}
	m.accelSamples.Inc()
}

// IncAccelOverrun 记一次振动采样超时
func (m *Metrics) IncAccelOverrun() {
	if m == nil {
		return
	}
	m.accelOverruns.Inc()
}

// IncAccelReconnect 记一次加速度计重连
func (m *Metrics) IncAccelReconnect() {
	if m == nil {
		return
	}
	m.accelReconnects.Inc()
}
