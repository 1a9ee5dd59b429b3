package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig 任务参数校验失败
var ErrInvalidConfig = errors.New("任务参数无效")

// MaxSampleAttempts 每个采样计划最多尝试的次数
const MaxSampleAttempts = 3

// Config 任务参数（启动时一次性加载，运行期间不可修改）
type Config struct {
	Version      string             `mapstructure:"version" yaml:"version"`
	Clock        ClockConfig        `mapstructure:"clock" yaml:"clock"`
	Bus          BusConfig          `mapstructure:"bus" yaml:"bus"`
	GPIO         GPIOConfig         `mapstructure:"gpio" yaml:"gpio"`
	Valves       ValvesConfig       `mapstructure:"valves" yaml:"valves"`
	Tanks        []TankConfig       `mapstructure:"tanks" yaml:"tanks"`
	Manifold     SensorConfig       `mapstructure:"manifold" yaml:"manifold"`
	Canister     SensorConfig       `mapstructure:"canister" yaml:"canister"`
	DPV          SensorConfig       `mapstructure:"dpv" yaml:"dpv"`
	Collections  []CollectionConfig `mapstructure:"collections" yaml:"collections"`
	InitialCheck InitialCheckConfig `mapstructure:"initial_check" yaml:"initial_check"`
	Sampling     SamplingConfig     `mapstructure:"sampling" yaml:"sampling"`
	Thermal      ThermalConfig      `mapstructure:"thermal" yaml:"thermal"`
	Vent         VentConfig         `mapstructure:"vent" yaml:"vent"`
	Loop         LoopConfig         `mapstructure:"loop" yaml:"loop"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry" yaml:"telemetry"`
	Accel        AccelConfig        `mapstructure:"accel" yaml:"accel"`
	Server       ServerConfig       `mapstructure:"server" yaml:"server"`
	Store        StoreConfig        `mapstructure:"store" yaml:"store"`
}

// ClockConfig 任务时钟配置
type ClockConfig struct {
	BootDurationMs    int64 `mapstructure:"boot_duration_ms" yaml:"boot_duration_ms"`       // 上电到脚本运行的估计耗时
	EarlyActivationMs int64 `mapstructure:"early_activation_ms" yaml:"early_activation_ms"` // 提前上电偏移
	RTCWaitMs         int64 `mapstructure:"rtc_wait_ms" yaml:"rtc_wait_ms"`
	CorrectionMinMs   int64 `mapstructure:"correction_min_ms" yaml:"correction_min_ms"`
	CorrectionMaxMs   int64 `mapstructure:"correction_max_ms" yaml:"correction_max_ms"`
	SeparationPin     int   `mapstructure:"separation_pin" yaml:"separation_pin"` // -1 表示不接分离开关
}

// BusConfig I2C 总线配置
type BusConfig struct {
	Device             string `mapstructure:"device" yaml:"device"`
	LockTimeoutMs      int64  `mapstructure:"lock_timeout_ms" yaml:"lock_timeout_ms"`
	MultiplexerAddress uint16 `mapstructure:"multiplexer_address" yaml:"multiplexer_address"`
}

// GPIOConfig GPIO 子系统配置
type GPIOConfig struct {
	Chip string `mapstructure:"chip" yaml:"chip"` // 字符设备名，如 gpiochip0
}

// ValvesConfig 共用管路阀门引脚
type ValvesConfig struct {
	MainPin    int `mapstructure:"main_pin" yaml:"main_pin"`
	DynamicPin int `mapstructure:"dynamic_pin" yaml:"dynamic_pin"`
	StaticPin  int `mapstructure:"static_pin" yaml:"static_pin"`
}

// SensorConfig 传感器配置，Model 为空表示未安装
type SensorConfig struct {
	Model      string `mapstructure:"model" yaml:"model"`
	Channel    int    `mapstructure:"channel" yaml:"channel"`
	Address    uint16 `mapstructure:"address" yaml:"address,omitempty"`
	ReplayFile string `mapstructure:"replay_file" yaml:"replay_file,omitempty"`
}

// Present 传感器是否已配置
func (s SensorConfig) Present() bool { return s.Model != "" }

// TankConfig 储气罐配置
type TankConfig struct {
	Name     string       `mapstructure:"name" yaml:"name"`
	ValvePin int          `mapstructure:"valve_pin" yaml:"valve_pin"`
	Sensor   SensorConfig `mapstructure:"sensor" yaml:"sensor"`
}

// CollectionConfig 采样计划（时间单位 ms，压力单位 hPa）
type CollectionConfig struct {
	Num                       int     `mapstructure:"num" yaml:"num"`
	UpStartTimeMs             int64   `mapstructure:"up_start_time_ms" yaml:"up_start_time_ms"`
	BleedDurationMs           int64   `mapstructure:"bleed_duration_ms" yaml:"bleed_duration_ms"`
	UpDrivingPressure         float64 `mapstructure:"up_driving_pressure" yaml:"up_driving_pressure"`
	UpFinalStagnationPressure float64 `mapstructure:"up_final_stagnation_pressure" yaml:"up_final_stagnation_pressure"`
	ChokePressure             float64 `mapstructure:"choke_pressure" yaml:"choke_pressure"`
	UpDurationMs              int64   `mapstructure:"up_duration_ms" yaml:"up_duration_ms"`
}

// InitialCheckConfig 初始压力检查阈值
type InitialCheckConfig struct {
	CriticalPressure float64 `mapstructure:"critical_pressure" yaml:"critical_pressure"`
	UnsafePressure   float64 `mapstructure:"unsafe_pressure" yaml:"unsafe_pressure"`
	MainLineDelta    float64 `mapstructure:"main_line_delta" yaml:"main_line_delta"`
	ProbeDurationMs  int64   `mapstructure:"probe_duration_ms" yaml:"probe_duration_ms"`
}

// SamplingConfig 采样诊断参数
type SamplingConfig struct {
	TargetRatio    float64 `mapstructure:"target_ratio" yaml:"target_ratio"`
	NoiseThreshold float64 `mapstructure:"noise_threshold" yaml:"noise_threshold"`
	MaxAttempts    int     `mapstructure:"max_attempts" yaml:"max_attempts"`
	TSmallMs       int64   `mapstructure:"t_small_ms" yaml:"t_small_ms"`
}

// ThermalConfig 热安全监测阈值（开尔文）。
// 默认值沿用飞行件参数：采样中的储气罐阈值 TSample 低于平时阈值 TAnytime，采样时更早触发。
type ThermalConfig struct {
	TAnytime        float64 `mapstructure:"t_anytime" yaml:"t_anytime"` // 热端热电偶，以及未采样时的储气罐
	TSample         float64 `mapstructure:"t_sample" yaml:"t_sample"`   // 采样中的储气罐
	CheckIntervalMs int64   `mapstructure:"check_interval_ms" yaml:"check_interval_ms"`
}

// VentConfig 热气排放参数
type VentConfig struct {
	DurationMs         int64   `mapstructure:"duration_ms" yaml:"duration_ms"`
	TargetTemp         float64 `mapstructure:"target_temp" yaml:"target_temp"`
	RiseThreshold      float64 `mapstructure:"rise_threshold" yaml:"rise_threshold"` // K/s
	ComparisonWindowMs int64   `mapstructure:"comparison_window_ms" yaml:"comparison_window_ms"`
	BufferMs           int64   `mapstructure:"buffer_ms" yaml:"buffer_ms"`
}

// LoopConfig 轮询循环配置
type LoopConfig struct {
	YieldMs int64 `mapstructure:"yield_ms" yaml:"yield_ms"`
}

// TelemetryConfig 遥测文件配置
type TelemetryConfig struct {
	Dir  string `mapstructure:"dir" yaml:"dir"`
	Echo bool   `mapstructure:"echo" yaml:"echo"`
}

// AccelConfig 振动采集配置
type AccelConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Channel    int    `mapstructure:"channel" yaml:"channel"`
	Address    uint16 `mapstructure:"address" yaml:"address,omitempty"`
	IntervalMs int64  `mapstructure:"interval_ms" yaml:"interval_ms"`
	DurationMs int64  `mapstructure:"duration_ms" yaml:"duration_ms"`
}

// ServerConfig 状态服务配置
type ServerConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Host       string `mapstructure:"host" yaml:"host"`
	Port       int    `mapstructure:"port" yaml:"port"`
	EnableCORS bool   `mapstructure:"enable_cors" yaml:"enable_cors"`
}

// StoreConfig 时钟基准持久化配置
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// 允许环境变量覆盖的键
var envKeys = []string{
	"bus.device",
	"gpio.chip",
	"telemetry.dir",
	"store.path",
	"server.port",
	"server.enabled",
	"accel.enabled",
}

// LoadConfig 从文件加载配置，缺省字段取默认值，SAMPLER_* 环境变量优先
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SAMPLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("绑定环境变量失败：%w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败：%w", err)
	}

	cfg := GetDefaultConfig()
	// 列表整体替换，不与默认值逐项合并
	if v.IsSet("tanks") {
		cfg.Tanks = nil
	}
	if v.IsSet("collections") {
		cfg.Collections = nil
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败：%w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig 保存配置到文件
func SaveConfig(config *Config, configPath string) error {
	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("创建配置文件失败：%w", err)
	}
	defer file.Close()

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("保存配置文件失败：%w", err)
	}
	return encoder.Close()
}

// Validate 校验任务参数
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if len(c.Tanks) == 0 {
		add("未配置储气罐")
	}
	if len(c.Collections) == 0 {
		add("未配置采样计划")
	}
	if len(c.Collections) > len(c.Tanks) {
		add("采样计划数量 (%d) 多于储气罐数量 (%d)", len(c.Collections), len(c.Tanks))
	}

	pins := map[int]string{}
	claim := func(pin int, owner string) {
		if prev, ok := pins[pin]; ok {
			add("引脚 %d 被 %s 和 %s 重复使用", pin, prev, owner)
			return
		}
		pins[pin] = owner
	}
	claim(c.Valves.MainPin, "main")
	claim(c.Valves.DynamicPin, "dynamic")
	claim(c.Valves.StaticPin, "static")
	names := map[string]bool{}
	for i, t := range c.Tanks {
		if t.Name == "" {
			add("储气罐 #%d 缺少名称", i)
		} else if names[t.Name] {
			add("储气罐名称 %s 重复", t.Name)
		}
		names[t.Name] = true
		claim(t.ValvePin, "tank "+t.Name)
		if !t.Sensor.Present() {
			add("储气罐 %s 缺少压力传感器", t.Name)
		}
	}
	if c.Clock.SeparationPin >= 0 {
		claim(c.Clock.SeparationPin, "separation switch")
	}

	nums := map[int]bool{}
	for _, col := range c.Collections {
		if nums[col.Num] {
			add("采样计划编号 %d 重复", col.Num)
		}
		nums[col.Num] = true
		if col.UpDurationMs <= 0 {
			add("采样计划 %d 的采样时长必须大于 0", col.Num)
		}
		if col.BleedDurationMs < 0 {
			add("采样计划 %d 的吹扫时长不能为负", col.Num)
		}
		if col.UpFinalStagnationPressure <= 0 {
			add("采样计划 %d 的目标滞止压力必须大于 0", col.Num)
		}
	}

	if c.InitialCheck.CriticalPressure <= c.InitialCheck.UnsafePressure {
		add("临界压力 (%.2f) 必须高于不安全压力 (%.2f)", c.InitialCheck.CriticalPressure, c.InitialCheck.UnsafePressure)
	}
	if c.Clock.RTCWaitMs <= 0 {
		add("实时时钟等待时间必须大于 0")
	}
	if c.Clock.CorrectionMinMs > c.Clock.CorrectionMaxMs {
		add("时钟校正窗口无效：%d > %d", c.Clock.CorrectionMinMs, c.Clock.CorrectionMaxMs)
	}
	if c.Sampling.MaxAttempts < 1 || c.Sampling.MaxAttempts > MaxSampleAttempts {
		add("最大采样尝试次数必须在 1 到 %d 之间", MaxSampleAttempts)
	}
	if c.Sampling.TargetRatio <= 0 || c.Sampling.TargetRatio > 1 {
		add("目标压力比例必须在 (0, 1] 之间")
	}
	if c.Thermal.TSample <= 0 || c.Thermal.TAnytime <= 0 {
		add("温度阈值必须大于 0")
	}
	if c.Thermal.CheckIntervalMs < 0 {
		add("温度检查间隔不能为负")
	}
	if c.Vent.DurationMs <= 0 {
		add("排气时长必须大于 0")
	}
	if c.InitialCheck.ProbeDurationMs <= 0 {
		add("主管路探测时长必须大于 0")
	}
	if c.Sampling.TSmallMs <= 0 {
		add("短时探测时长必须大于 0")
	}
	if !c.DPV.Present() {
		add("未配置热端热电偶")
	}
	if !c.Canister.Present() {
		add("未配置舱内压力传感器")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// GetDefaultConfig 获取默认配置
func GetDefaultConfig() *Config {
	return &Config{
		Version: "2.0.0",
		Clock: ClockConfig{
			BootDurationMs:    35000,
			EarlyActivationMs: 0,
			RTCWaitMs:         3000,
			CorrectionMinMs:   -120000,
			CorrectionMaxMs:   5000,
			SeparationPin:     23,
		},
		Bus: BusConfig{
			Device:             "/dev/i2c-1",
			LockTimeoutMs:      10,
			MultiplexerAddress: 0x70,
		},
		GPIO: GPIOConfig{Chip: "gpiochip0"},
		Valves: ValvesConfig{
			MainPin:    27,
			DynamicPin: 10,
			StaticPin:  22,
		},
		Tanks: []TankConfig{
			{Name: "1", ValvePin: 9, Sensor: SensorConfig{Model: "nova", Channel: 2}},
			{Name: "2", ValvePin: 17, Sensor: SensorConfig{Model: "nova", Channel: 3}},
		},
		Manifold: SensorConfig{Model: "nova", Channel: 1},
		Canister: SensorConfig{Model: "mprls", Channel: 0},
		DPV:      SensorConfig{Model: "mcp9600", Channel: 4},
		Collections: []CollectionConfig{
			{
				Num:                       1,
				UpStartTimeMs:             40305,
				BleedDurationMs:           500,
				UpDrivingPressure:         1270.44,
				UpFinalStagnationPressure: 1143.40,
				ChokePressure:             670.79,
				UpDurationMs:              100,
			},
			{
				Num:                       2,
				UpStartTimeMs:             70000,
				BleedDurationMs:           500,
				UpDrivingPressure:         753.43,
				UpFinalStagnationPressure: 678.09,
				ChokePressure:             397.81,
				UpDurationMs:              100,
			},
		},
		InitialCheck: InitialCheckConfig{
			CriticalPressure: 1200,
			UnsafePressure:   900,
			MainLineDelta:    3,
			ProbeDurationMs:  1000,
		},
		Sampling: SamplingConfig{
			TargetRatio:    0.95,
			NoiseThreshold: 3,
			MaxAttempts:    3,
			TSmallMs:       100,
		},
		Thermal: ThermalConfig{
			TAnytime:        470,
			TSample:         400,
			CheckIntervalMs: 15,
		},
		Vent: VentConfig{
			DurationMs:         5000,
			TargetTemp:         380,
			RiseThreshold:      5.0,
			ComparisonWindowMs: 500,
			BufferMs:           250,
		},
		Loop:      LoopConfig{YieldMs: 1},
		Telemetry: TelemetryConfig{Dir: ".", Echo: true},
		Accel: AccelConfig{
			Enabled:    false,
			Channel:    5,
			IntervalMs: 10,
			DurationMs: 600000,
		},
		Server: ServerConfig{
			Enabled:    true,
			Host:       "0.0.0.0",
			Port:       9099,
			EnableCORS: true,
		},
		Store: StoreConfig{Path: "sampler.db"},
	}
}
