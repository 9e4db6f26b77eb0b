package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aihub/ragbot-go/internal/conversation"
	"github.com/aihub/ragbot-go/internal/di"
	"github.com/aihub/ragbot-go/internal/engine"
)

// AdminController 运维操作：清缓存、切换性能模式、会话统计
type AdminController struct {
	BaseController
}

// ClearCache 清空查询向量缓存
func (c *AdminController) ClearCache() {
	var eng *engine.Engine
	if err := di.Invoke(func(e *engine.Engine) { eng = e }); err != nil {
		c.JSONError(http.StatusServiceUnavailable, "engine not initialized")
		return
	}

	eng.ClearCache()
	c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Cache cleared",
	})
}

type performanceModeRequest struct {
	Mode string `json:"mode"`
}

// SetPerformanceMode 切换生成性能模式（speed/quality/balanced）
func (c *AdminController) SetPerformanceMode() {
	var req performanceModeRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid JSON body")
		return
	}

	var eng *engine.Engine
	if err := di.Invoke(func(e *engine.Engine) { eng = e }); err != nil {
		c.JSONError(http.StatusServiceUnavailable, "engine not initialized")
		return
	}

	if err := eng.SetPerformanceMode(req.Mode); err != nil {
		c.JSONError(http.StatusBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": fmt.Sprintf("Performance mode set to: %s", req.Mode),
	})
}

// Sessions 活跃会话统计
func (c *AdminController) Sessions() {
	var mgr *conversation.Manager
	if err := di.Invoke(func(m *conversation.Manager) { mgr = m }); err != nil {
		c.JSONError(http.StatusServiceUnavailable, "conversation manager not initialized")
		return
	}

	stats, err := mgr.SessionStats(c.Ctx.Request.Context())
	if err != nil {
		c.JSONError(http.StatusInternalServerError, "failed to collect session stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}
