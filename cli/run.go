package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"sampler/accel"
	"sampler/api"
	"sampler/clock"
	"sampler/component"
	"sampler/config"
	"sampler/device"
	"sampler/metrics"
	"sampler/process"
	"sampler/store"
	"sampler/telemetry"
)

func newRunCommand() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "执行采样任务",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := loadOrCreateConfig(path)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			_, err = runMission(ctx, cfg, dryRun)
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "演练模式：内存 GPIO，传感器只读回放文件")
	return cmd
}

// runMission 组装硬件并执行一次完整任务。
// 流水线本身不可中断；ctx 只结束后台采集、状态服务和分离开关监听。
func runMission(ctx context.Context, cfg *config.Config, dryRun bool) (process.Report, error) {
	bootMs := clock.SystemTime()
	log.Printf("🚀 启动采样任务 (版本 %s)", Version)
	component.RegisterSensorTypes()

	hw, err := buildHardware(cfg, dryRun)
	defer func() {
		if cerr := hw.Close(); cerr != nil {
			log.Printf("⚠️ 释放硬件失败: %v", cerr)
		}
	}()
	if err != nil {
		return process.Report{}, err
	}

	clk := clock.FromRTC(ctx, hw.rtc, clock.SystemTime, clock.Fallback{
		BootMs:            bootMs,
		BootDurationMs:    cfg.Clock.BootDurationMs,
		EarlyActivationMs: cfg.Clock.EarlyActivationMs,
		Wait:              time.Duration(cfg.Clock.RTCWaitMs) * time.Millisecond,
	})

	events, pressures, err := telemetry.OpenFiles(cfg.Telemetry.Dir, bootMs)
	if err != nil {
		return process.Report{}, err
	}
	defer events.Close()
	defer pressures.Close()
	rec := telemetry.NewRecorder(events, pressures, clock.SystemTime, clk.TPlusMs, cfg.Telemetry.Echo)
	rec.Eventf("任务启动，t0: %d ms，实时时钟就绪: %t", clk.T0Ms(), clk.Ready())
	if cfg.Thermal.TSample < cfg.Thermal.TAnytime {
		rec.Eventf("注意：采样中储气罐温度阈值 %.0fK 低于平时阈值 %.0fK，采样期间更早触发 TEMP_THRESH_REACHED", cfg.Thermal.TSample, cfg.Thermal.TAnytime)
	}

	m := metrics.New()
	var collections []*device.Collection
	for _, plan := range cfg.Collections {
		collections = append(collections, device.NewCollection(plan))
	}
	var yield func()
	if cfg.Loop.YieldMs > 0 {
		d := time.Duration(cfg.Loop.YieldMs) * time.Millisecond
		yield = func() { time.Sleep(d) }
	}
	mission := process.NewMission(process.MissionOptions{
		Clock:       clk,
		Recorder:    rec,
		Metrics:     m,
		Tanks:       device.NewTankSet(hw.tanks...),
		Collections: collections,
		Valves:      hw.valves,
		Yield:       yield,
	})

	lp := process.NewLogPressures(mission, hw.tanks, hw.canister, hw.dpv, cfg.Thermal)
	if err := rec.WriteHeader(lp.Columns()); err != nil {
		log.Printf("⚠️ %v", err)
	}
	pipeline := process.NewPipeline(mission,
		process.NewInitialPressureCheck(mission, lp, hw.manifold, hw.main, cfg.InitialCheck),
		process.NewSwapTanks(mission),
		process.NewSampleUpwards(mission, lp, hw.manifold, hw.main, hw.dynamic, hw.static, cfg.Sampling),
		process.NewVentHotAir(mission, lp, hw.dpv, hw.valves.GetAllValves(), hw.main, hw.static, cfg.Vent),
	)

	bgCtx, cancelBackground := context.WithCancel(ctx)
	defer cancelBackground()
	g, gctx := errgroup.WithContext(bgCtx)

	var engine *accel.Engine
	if hw.accel != nil {
		sink, err := os.OpenFile(filepath.Join(cfg.Telemetry.Dir, fmt.Sprintf("%d_AccelerationData.csv", bootMs)), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			rec.Eventf("无法创建振动数据文件: %v", err)
		} else {
			defer sink.Close()
			engine = accel.NewEngine(hw.accel, sink, clk.TPlusMs)
			engine.SetMetrics(m)
			g.Go(func() error {
				return engine.Run(gctx, time.Duration(cfg.Accel.IntervalMs)*time.Millisecond, time.Duration(cfg.Accel.DurationMs)*time.Millisecond)
			})
		}
	}

	if cfg.Server.Enabled {
		server := api.NewServer(mission, m)
		if engine != nil {
			server.SetAccel(engine)
		}
		r := api.NewEngine(cfg.Server.EnableCORS)
		server.SetupRoutes(r)
		addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
		g.Go(func() error { return api.Serve(gctx, addr, r) })
	}

	if hw.chip != nil && cfg.Clock.SeparationPin >= 0 {
		sw := clock.NewSeparationSwitch(clk, cfg.Clock.CorrectionMinMs, cfg.Clock.CorrectionMaxMs, rec)
		g.Go(func() error {
			watchCtx, disarm := context.WithCancel(gctx)
			defer disarm()
			err := hw.chip.WatchEdge(watchCtx, cfg.Clock.SeparationPin, func() {
				sw.Fire(clk.NowMs())
				disarm()
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				rec.Eventf("分离开关监听失败: %v", err)
			}
			return nil
		})
	}

	var report process.Report
	g.Go(func() error {
		defer cancelBackground()
		report = pipeline.Run()
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Printf("⚠️ 后台任务出错: %v", err)
	}

	saveClock(cfg.Store.Path, clk, report)
	if summary, err := json.Marshal(report.Collections); err == nil {
		rec.Eventf("采样结果: %s", summary)
	}
	rec.Eventf("任务结束，T+ %d ms", clk.TPlusMs())
	return report, nil
}

// saveClock 保存时钟基准供事后分析
func saveClock(path string, clk *clock.Clock, report process.Report) {
	st, err := store.Open(path)
	if err != nil {
		log.Printf("⚠️ 打开时钟记录失败: %v", err)
		return
	}
	defer st.Close()

	note := fmt.Sprintf("plumbing=%s thermal=%t", report.Mission.Plumbing, report.Mission.ThermalTripped)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	id, err := st.Save(ctx, store.FromSnapshot(clk.Snapshot(), note))
	if err != nil {
		log.Printf("⚠️ 保存时钟记录失败: %v", err)
		return
	}
	log.Printf("✅ 时钟记录已保存 (#%d)", id)
}
