package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// requireMission 任务状态未设置时返回 503
func (s *Server) requireMission(c *gin.Context) bool {
	if s.mission != nil {
		return true
	}
	c.JSON(http.StatusServiceUnavailable, ApiResponse{
		Status: "error",
		Error:  "任务状态尚未初始化",
	})
	return false
}

// handleGetMission 获取任务状态快照
func (s *Server) handleGetMission(c *gin.Context) {
	if !s.requireMission(c) {
		return
	}
	c.JSON(http.StatusOK, ApiResponse{
		Status: "success",
		Data:   s.mission.Snapshot(),
	})
}

// handleGetTanks 获取储气罐状态
func (s *Server) handleGetTanks(c *gin.Context) {
	if !s.requireMission(c) {
		return
	}
	tanks := s.mission.TankSnapshots()
	c.JSON(http.StatusOK, ApiResponse{
		Status: "success",
		Data:   TankListResponse{Tanks: tanks, Total: len(tanks)},
	})
}

// handleGetCollections 获取采样计划状态
func (s *Server) handleGetCollections(c *gin.Context) {
	if !s.requireMission(c) {
		return
	}
	collections := s.mission.CollectionSnapshots()
	c.JSON(http.StatusOK, ApiResponse{
		Status: "success",
		Data:   CollectionListResponse{Collections: collections, Total: len(collections)},
	})
}

func (s *Server) handleGetValves(c *gin.Context) {
	if !s.requireMission(c) {
		return
	}
	c.JSON(http.StatusOK, ApiResponse{
		Status: "success",
		Data:   s.mission.Snapshot().Valves,
	})
}

func (s *Server) handleGetReadings(c *gin.Context) {
	if !s.requireMission(c) {
		return
	}
	c.JSON(http.StatusOK, ApiResponse{
		Status: "success",
		Data:   s.mission.Snapshot().Readings,
	})
}
