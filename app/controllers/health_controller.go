package controllers

import (
	"net/http"
	"time"

	"github.com/aihub/ragbot-go/internal/di"
	"github.com/aihub/ragbot-go/internal/engine"
	"github.com/aihub/ragbot-go/internal/knowledge"
)

// HealthController 健康检查
type HealthController struct {
	BaseController
}

// Health 汇总索引、生成服务与缓存状态
func (c *HealthController) Health() {
	var eng *engine.Engine
	var kb *knowledge.KnowledgeBase
	if err := di.Invoke(func(e *engine.Engine, k *knowledge.KnowledgeBase) {
		eng = e
		kb = k
	}); err != nil {
		c.JSONError(http.StatusServiceUnavailable, "services not initialized")
		return
	}

	status := eng.Health(c.Ctx.Request.Context(), kb)
	c.JSON(http.StatusOK, map[string]interface{}{
		"api":       "healthy",
		"rag":       status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
