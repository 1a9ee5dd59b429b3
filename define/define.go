package define

import "math"

// InvalidReading 传感器读取失败或超出量程时返回的哨兵值
const InvalidReading = -1.0

// IsValid 判断读数是否有效
func IsValid(v float64) bool {
	return v != InvalidReading && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// API 响应结构体
type ApiResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}
