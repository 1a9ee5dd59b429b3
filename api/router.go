// Package api 发射前检查用的只读状态服务
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"sampler/accel"
	"sampler/metrics"
	"sampler/process"
)

// MissionProvider 任务状态来源，只读缓存的状态，不触发传感器读取
type MissionProvider interface {
	Snapshot() process.Snapshot
	TankSnapshots() []process.TankSnapshot
	CollectionSnapshots() []process.CollectionSnapshot
}

// AccelStats 振动采集计数来源
type AccelStats interface {
	Stats() accel.Stats
}

// Server 状态服务
type Server struct {
	mission   MissionProvider
	metrics   *metrics.Metrics
	accel     AccelStats
	startTime time.Time
	version   string
}

// NewServer 创建状态服务
func NewServer(mission MissionProvider, m *metrics.Metrics) *Server {
	return &Server{
		mission:   mission,
		metrics:   m,
		startTime: time.Now(),
		version:   "2.0.0",
	}
}

// SetAccel 设置振动采集来源
func (s *Server) SetAccel(a AccelStats) { s.accel = a }

// NewEngine 创建 gin 引擎，enableCORS 时允许任意来源只读访问
func NewEngine(enableCORS bool) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	if enableCORS {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  []string{"*"},
			AllowMethods:  []string{"GET", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Length", "Content-Type"},
			ExposeHeaders: []string{"Content-Length"},
			MaxAge:        12 * time.Hour,
		}))
	}
	return r
}

// SetupRoutes 设置路由
func (s *Server) SetupRoutes(r *gin.Engine) {
	v2 := r.Group("/api/v2")
	{
		mission := v2.Group("/mission")
		{
			mission.GET("", s.handleGetMission)                 // 任务状态快照
			mission.GET("/tanks", s.handleGetTanks)             // 储气罐状态
			mission.GET("/collections", s.handleGetCollections) // 采样计划状态
			mission.GET("/valves", s.handleGetValves)           // 阀门状态
			mission.GET("/readings", s.handleGetReadings)       // 最近一次读数
		}

		system := v2.Group("/system")
		{
			system.GET("/models", s.handleGetSupportedModels) // 支持的传感器型号
			system.GET("/status", s.handleGetSystemStatus)    // 系统状态
			system.GET("/health", s.handleHealthCheck)        // 健康检查
		}
	}

	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
}

// Serve 在 addr 上提供服务，ctx 结束时优雅关闭
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("⚠️ 状态服务关闭失败: %v", err)
		}
	}()

	log.Printf("🌐 状态服务运行在 http://%s", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("状态服务启动失败：%w", err)
	}
	log.Printf("👋 状态服务已关闭")
	return nil
}
