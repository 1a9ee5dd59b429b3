package api

import (
	"time"

	"sampler/accel"
	"sampler/define"
	"sampler/process"
)

// ApiResponse 统一响应格式
type ApiResponse = define.ApiResponse

// TankListResponse 储气罐列表响应
type TankListResponse struct {
	Tanks []process.TankSnapshot `json:"tanks"`
	Total int                    `json:"total"`
}

// CollectionListResponse 采样计划列表响应
type CollectionListResponse struct {
	Collections []process.CollectionSnapshot `json:"collections"`
	Total       int                          `json:"total"`
}

// SupportedModelsResponse 支持的传感器型号
type SupportedModelsResponse struct {
	Models []string `json:"models"`
	Total  int      `json:"total"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	Version        string    `json:"version"`
	ClockReady     bool      `json:"clockReady"`
	TPlusMs        int64     `json:"tPlusMs"`
	Plumbing       string    `json:"plumbing"`
	ThermalTripped bool      `json:"thermalTripped"`
}

// SystemStatusResponse 系统状态响应
type SystemStatusResponse struct {
	Uptime          time.Duration `json:"uptime"`
	SupportedModels []string      `json:"supportedModels"`
	Accel           *accel.Stats  `json:"accel,omitempty"`
	Telemetry       any           `json:"telemetry"`
}
