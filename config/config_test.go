package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mission.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := GetDefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.Tanks, 2)
	assert.Len(t, cfg.Collections, 2)
	assert.Equal(t, 400.0, cfg.Thermal.TSample)
	assert.Equal(t, 470.0, cfg.Thermal.TAnytime)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mission.yaml")
	cfg := GetDefaultConfig()
	cfg.Server.Port = 9100
	cfg.Tanks[0].Sensor.ReplayFile = "replay/tank1.csv"
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadConfigFillsDefaults(t *testing.T) {
	path := writeFile(t, `
sampling:
  max_attempts: 2
vent:
  target_temp: 360
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Sampling.MaxAttempts)
	assert.Equal(t, 0.95, cfg.Sampling.TargetRatio)
	assert.Equal(t, 360.0, cfg.Vent.TargetTemp)
	assert.Equal(t, int64(5000), cfg.Vent.DurationMs)
	assert.Len(t, cfg.Tanks, 2)
}

func TestLoadConfigReplacesLists(t *testing.T) {
	path := writeFile(t, `
tanks:
  - name: A
    valve_pin: 5
    sensor:
      model: nova
      channel: 6
collections:
  - num: 7
    up_start_time_ms: 50000
    up_final_stagnation_pressure: 900
    up_duration_ms: 200
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Tanks, 1)
	assert.Equal(t, "A", cfg.Tanks[0].Name)
	assert.Equal(t, 6, cfg.Tanks[0].Sensor.Channel)
	require.Len(t, cfg.Collections, 1)
	assert.Equal(t, 7, cfg.Collections[0].Num)
	assert.Equal(t, int64(0), cfg.Collections[0].BleedDurationMs)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeFile(t, "server:\n  port: 9100\n")
	t.Setenv("SAMPLER_SERVER_PORT", "9200")
	t.Setenv("SAMPLER_TELEMETRY_DIR", "/tmp/flight")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, "/tmp/flight", cfg.Telemetry.Dir)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	path := writeFile(t, `
initial_check:
  critical_pressure: 800
  unsafe_pressure: 900
`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"no tanks", func(c *Config) { c.Tanks = nil }, "未配置储气罐"},
		{"more collections than tanks", func(c *Config) { c.Tanks = c.Tanks[:1] }, "多于储气罐数量"},
		{"duplicate pin", func(c *Config) { c.Tanks[1].ValvePin = c.Valves.MainPin }, "重复使用"},
		{"duplicate tank name", func(c *Config) { c.Tanks[1].Name = c.Tanks[0].Name }, "名称 1 重复"},
		{"tank without sensor", func(c *Config) { c.Tanks[0].Sensor = SensorConfig{} }, "缺少压力传感器"},
		{"duplicate collection", func(c *Config) { c.Collections[1].Num = 1 }, "编号 1 重复"},
		{"zero duration", func(c *Config) { c.Collections[0].UpDurationMs = 0 }, "采样时长必须大于 0"},
		{"pressure order", func(c *Config) { c.InitialCheck.UnsafePressure = 1300 }, "必须高于不安全压力"},
		{"correction window", func(c *Config) { c.Clock.CorrectionMinMs = 10000 }, "时钟校正窗口无效"},
		{"attempts", func(c *Config) { c.Sampling.MaxAttempts = 0 }, "尝试次数"},
		{"too many attempts", func(c *Config) { c.Sampling.MaxAttempts = 4 }, "1 到 3 之间"},
		{"rtc wait", func(c *Config) { c.Clock.RTCWaitMs = 0 }, "实时时钟等待时间"},
		{"negative rtc wait", func(c *Config) { c.Clock.RTCWaitMs = -1 }, "实时时钟等待时间"},
		{"ratio", func(c *Config) { c.Sampling.TargetRatio = 1.5 }, "目标压力比例"},
		{"missing dpv", func(c *Config) { c.DPV = SensorConfig{} }, "热端热电偶"},
		{"missing canister", func(c *Config) { c.Canister = SensorConfig{} }, "舱内压力传感器"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Sampling.MaxAttempts = 0
	cfg.Vent.DurationMs = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "尝试次数")
	assert.Contains(t, err.Error(), "排气时长")
}

func TestSeparationPinOptional(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Clock.SeparationPin = -1
	assert.NoError(t, cfg.Validate())

	cfg.Clock.SeparationPin = cfg.Valves.StaticPin
	assert.Error(t, cfg.Validate())
}
