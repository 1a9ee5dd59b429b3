package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sampler/component"
)

// handleGetSupportedModels 获取支持的传感器型号
func (s *Server) handleGetSupportedModels(c *gin.Context) {
	models := component.GetSupportedModels()
	c.JSON(http.StatusOK, ApiResponse{
		Status: "success",
		Data:   SupportedModelsResponse{Models: models, Total: len(models)},
	})
}

// handleGetSystemStatus 获取系统状态
func (s *Server) handleGetSystemStatus(c *gin.Context) {
	response := SystemStatusResponse{
		Uptime:          time.Since(s.startTime),
		SupportedModels: component.GetSupportedModels(),
	}
	if s.mission != nil {
		response.Telemetry = s.mission.Snapshot().Telemetry
	}
	if s.accel != nil {
		stats := s.accel.Stats()
		response.Accel = &stats
	}
	c.JSON(http.StatusOK, ApiResponse{
		Status: "success",
		Data:   response,
	})
}

// handleHealthCheck 健康检查
func (s *Server) handleHealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   s.version,
	}
	if s.mission == nil {
		response.Status = "unhealthy"
	} else {
		snap := s.mission.Snapshot()
		response.ClockReady = snap.Clock.Ready
		response.TPlusMs = snap.Clock.TPlusMs
		response.Plumbing = snap.Plumbing
		response.ThermalTripped = snap.ThermalTripped
	}

	httpStatus := http.StatusOK
	if response.Status != "healthy" {
		httpStatus = http.StatusServiceUnavailable
	}
	c.JSON(httpStatus, ApiResponse{
		Status: "success",
		Data:   response,
	})
}
