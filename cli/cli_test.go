package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sampler/config"
	"sampler/store"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mission.yaml")

	_, err := execute(t, "config", "init", "-c", path)
	require.NoError(t, err)
	require.FileExists(t, path)

	_, err = execute(t, "config", "init", "-c", path)
	assert.Error(t, err, "已存在的配置文件不应被覆盖")

	_, err = execute(t, "config", "init", "-c", path, "--force")
	assert.NoError(t, err)

	out, err := execute(t, "config", "show", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, "up_start_time_ms: 40305")
	assert.Contains(t, out, "t_anytime: 470")
}

func TestConfigShowInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mission.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sampling:\n  max_attempts: 0\n"), 0o644))

	_, err := execute(t, "config", "show", "-c", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestLoadOrCreateConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mission.yaml")
	cfg, err := loadOrCreateConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config.GetDefaultConfig(), cfg)
	require.FileExists(t, path)

	again, err := loadOrCreateConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestBuildHardwareDryRun(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Accel.Enabled = true

	hw, err := buildHardware(cfg, true)
	require.NoError(t, err)
	defer hw.Close()

	assert.Nil(t, hw.chip)
	assert.Nil(t, hw.dev)
	assert.Nil(t, hw.rtc)
	assert.Nil(t, hw.accel)
	require.Len(t, hw.tanks, 2)
	assert.Equal(t, "1", hw.tanks[0].Name())
	assert.NotNil(t, hw.manifold)
	assert.False(t, hw.manifold.Ready())
	assert.Len(t, hw.valves.GetAllValves(), 5)
}

// dryRunConfig 缩短所有时间参数，整个任务在一秒内结束
func dryRunConfig(dir string) *config.Config {
	cfg := config.GetDefaultConfig()
	cfg.Clock.BootDurationMs = 0
	cfg.Collections = cfg.Collections[:1]
	cfg.Collections[0].UpStartTimeMs = 50
	cfg.Collections[0].BleedDurationMs = 10
	cfg.Collections[0].UpDurationMs = 20
	cfg.InitialCheck.ProbeDurationMs = 20
	cfg.Sampling.TSmallMs = 10
	cfg.Vent.DurationMs = 50
	cfg.Vent.ComparisonWindowMs = 10
	cfg.Vent.BufferMs = 10
	cfg.Server.Enabled = false
	cfg.Telemetry.Dir = filepath.Join(dir, "flight")
	cfg.Telemetry.Echo = false
	cfg.Store.Path = filepath.Join(dir, "sampler.db")
	return cfg
}

func TestRunMissionDryRun(t *testing.T) {
	dir := t.TempDir()
	cfg := dryRunConfig(dir)
	require.NoError(t, cfg.Validate())

	report, err := runMission(context.Background(), cfg, true)
	require.NoError(t, err)
	assert.Len(t, report.Stages, 4)
	assert.Len(t, report.Collections, 1)

	entries, err := os.ReadDir(cfg.Telemetry.Dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.Len(t, names, 2)
	joined := strings.Join(names, " ")
	assert.Contains(t, joined, "_output.txt")
	assert.Contains(t, joined, "_pressures.csv")

	var events []byte
	for _, name := range names {
		if strings.HasSuffix(name, "_output.txt") {
			events, err = os.ReadFile(filepath.Join(cfg.Telemetry.Dir, name))
			require.NoError(t, err)
		}
	}
	assert.Contains(t, string(events), "采样中储气罐温度阈值 400K 低于平时阈值 470K")
	assert.Contains(t, string(events), "任务结束")

	st, err := store.Open(cfg.Store.Path)
	require.NoError(t, err)
	defer st.Close()
	rec, err := st.Latest(context.Background())
	require.NoError(t, err)
	assert.Contains(t, rec.Note, "plumbing=")
}
