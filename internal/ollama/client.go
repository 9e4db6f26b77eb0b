package ollama

import "time"

// 全局Ollama服务实例
var globalService *Service

// InitGlobalService 初始化全局Ollama服务
func InitGlobalService(baseURL string, timeoutSeconds int) {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 180
	}
	globalService = NewService(baseURL, time.Duration(timeoutSeconds)*time.Second)
}

// GetGlobalService 获取全局Ollama服务实例
func GetGlobalService() *Service {
	return globalService
}

// IsGlobalServiceReady 检查全局服务是否就绪
func IsGlobalServiceReady() bool {
	return globalService != nil && globalService.Ready()
}
