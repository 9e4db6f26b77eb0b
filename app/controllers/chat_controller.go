package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/aihub/ragbot-go/internal/conversation"
	"github.com/aihub/ragbot-go/internal/di"
	"github.com/aihub/ragbot-go/internal/engine"
	apperrors "github.com/aihub/ragbot-go/internal/errors"
	"github.com/aihub/ragbot-go/internal/logger"
)

// 生成服务不可用时的用户可见兜底话术
const generatorFallback = "I'm sorry, I'm having trouble generating a response right now. Please try again in a moment."

// ChatController 聊天接口：阻塞问答与SSE流式问答
type ChatController struct {
	BaseController
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	TopK      int    `json:"top_k,omitempty"`
}

func (c *ChatController) resolve() (*engine.Engine, *conversation.Manager, error) {
	var eng *engine.Engine
	var mgr *conversation.Manager
	err := di.Invoke(func(e *engine.Engine, m *conversation.Manager) {
		eng = e
		mgr = m
	})
	return eng, mgr, err
}

func (c *ChatController) parseRequest() (*chatRequest, bool) {
	var req chatRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid JSON body")
		return nil, false
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSONError(http.StatusBadRequest, "message is required")
		return nil, false
	}
	return &req, true
}

// Chat 处理阻塞式聊天消息
func (c *ChatController) Chat() {
	req, ok := c.parseRequest()
	if !ok {
		return
	}

	eng, mgr, err := c.resolve()
	if err != nil {
		c.JSONError(http.StatusServiceUnavailable, "services not initialized")
		return
	}

	ctx := c.Ctx.Request.Context()

	session, err := mgr.GetOrCreateSession(ctx, req.SessionID)
	if err != nil {
		c.JSONError(http.StatusInternalServerError, "session lookup failed")
		return
	}
	unlock := mgr.LockSession(session.ID)
	defer unlock()

	outcome, err := mgr.Process(ctx, req.Message, session.ID)
	if err != nil {
		c.JSONError(http.StatusInternalServerError, "message processing failed")
		return
	}

	// 问候/告别/求助走快速回复，不做检索
	if outcome.Kind != conversation.OutcomeRagAnswer {
		if err := mgr.AppendAssistantMessage(ctx, outcome.Session, outcome.QuickResponse); err != nil {
			logger.Warn("failed to persist assistant message", zap.Error(err))
		}
		c.JSON(http.StatusOK, map[string]interface{}{
			"response":   outcome.QuickResponse,
			"status":     "success",
			"intent":     string(outcome.Intent),
			"session_id": outcome.Session.ID,
		})
		return
	}

	noticeDue := mgr.ShouldShowNotice(req.Message, outcome.Session)

	result, err := eng.Query(ctx, req.Message, req.TopK, outcome.Style, engine.ChannelWeb, noticeDue)
	if err != nil {
		c.writeQueryError(err, outcome)
		return
	}

	if result.NoticeAttached {
		if err := mgr.MarkNoticeShown(ctx, outcome.Session); err != nil {
			logger.Warn("failed to mark notice shown", zap.Error(err))
		}
	}
	if err := mgr.AppendAssistantMessage(ctx, outcome.Session, result.Response); err != nil {
		logger.Warn("failed to persist assistant message", zap.Error(err))
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"response":        result.Response,
		"status":          "success",
		"intent":          string(outcome.Intent),
		"response_style":  string(result.Style),
		"session_id":      outcome.Session.ID,
		"processing_time": result.ProcessingTime,
	})
}

// writeQueryError 把类型化错误翻成用户可见响应。
// 生成服务故障可恢复：HTTP仍200，status字段区分，避免重试风暴。
func (c *ChatController) writeQueryError(err error, outcome *conversation.Outcome) {
	appErr := apperrors.GetAppError(err)
	logger.Error("query failed",
		zap.String("code", string(appErr.Code)),
		zap.Error(err))

	switch appErr.Code {
	case apperrors.ErrCodeGeneratorUnavailable:
		c.JSON(http.StatusOK, map[string]interface{}{
			"response":   generatorFallback,
			"status":     "error",
			"intent":     string(outcome.Intent),
			"session_id": outcome.Session.ID,
		})
	case apperrors.ErrCodeIndexNotLoaded, apperrors.ErrCodeIndexEmpty:
		c.JSONError(http.StatusServiceUnavailable,
			"The knowledge base is not ready yet. Please try again later.")
	default:
		c.JSONError(http.StatusInternalServerError,
			"I encountered an error processing your message. Please try again.")
	}
}

// Stream 处理SSE流式聊天消息。补充信息只在终稿事件里出现。
func (c *ChatController) Stream() {
	req, ok := c.parseRequest()
	if !ok {
		return
	}

	eng, mgr, err := c.resolve()
	if err != nil {
		c.JSONError(http.StatusServiceUnavailable, "services not initialized")
		return
	}

	ctx := c.Ctx.Request.Context()

	session, err := mgr.GetOrCreateSession(ctx, req.SessionID)
	if err != nil {
		c.JSONError(http.StatusInternalServerError, "session lookup failed")
		return
	}
	unlock := mgr.LockSession(session.ID)
	defer unlock()

	outcome, err := mgr.Process(ctx, req.Message, session.ID)
	if err != nil {
		c.JSONError(http.StatusInternalServerError, "message processing failed")
		return
	}

	w := c.Ctx.ResponseWriter
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, canFlush := w.ResponseWriter.(http.Flusher)
	writeEvent := func(payload interface{}) {
		data, err := json.Marshal(payload)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		if canFlush {
			flusher.Flush()
		}
	}

	// 快速回复分支整段推送
	if outcome.Kind != conversation.OutcomeRagAnswer {
		if err := mgr.AppendAssistantMessage(ctx, outcome.Session, outcome.QuickResponse); err != nil {
			logger.Warn("failed to persist assistant message", zap.Error(err))
		}
		writeEvent(map[string]interface{}{"content": outcome.QuickResponse})
		writeEvent(map[string]interface{}{"done": true, "session_id": outcome.Session.ID})
		return
	}

	noticeDue := mgr.ShouldShowNotice(req.Message, outcome.Session)

	if noticeDue {
		// 要附加补充信息时先缓冲全文，终稿处理后一次性推送，
		// 保证链接不会挂在半截句子后面
		result, err := eng.QueryStream(ctx, req.Message, req.TopK, outcome.Style,
			engine.ChannelWeb, true, func(token string) error { return nil })
		if err != nil {
			writeEvent(map[string]interface{}{"error": userFacingStreamError(err)})
			return
		}
		if result.NoticeAttached {
			if err := mgr.MarkNoticeShown(ctx, outcome.Session); err != nil {
				logger.Warn("failed to mark notice shown", zap.Error(err))
			}
		}
		if err := mgr.AppendAssistantMessage(ctx, outcome.Session, result.FinalText); err != nil {
			logger.Warn("failed to persist assistant message", zap.Error(err))
		}
		writeEvent(map[string]interface{}{"content": result.FinalText})
		writeEvent(map[string]interface{}{
			"done":       true,
			"is_trial":   result.IsTrial,
			"session_id": outcome.Session.ID,
		})
		return
	}

	// 普通流式：token边生成边下发
	result, err := eng.QueryStream(ctx, req.Message, req.TopK, outcome.Style,
		engine.ChannelWeb, false, func(token string) error {
			writeEvent(map[string]interface{}{"content": token})
			return nil
		})
	if err != nil {
		writeEvent(map[string]interface{}{"error": userFacingStreamError(err)})
		return
	}

	if err := mgr.AppendAssistantMessage(ctx, outcome.Session, result.FinalText); err != nil {
		logger.Warn("failed to persist assistant message", zap.Error(err))
	}
	writeEvent(map[string]interface{}{
		"done":       true,
		"is_trial":   result.IsTrial,
		"session_id": outcome.Session.ID,
	})
}

func userFacingStreamError(err error) string {
	appErr := apperrors.GetAppError(err)
	switch appErr.Code {
	case apperrors.ErrCodeGeneratorUnavailable:
		return generatorFallback
	case apperrors.ErrCodeIndexNotLoaded, apperrors.ErrCodeIndexEmpty:
		return "The knowledge base is not ready yet. Please try again later."
	default:
		return "I encountered an error processing your message. Please try again."
	}
}
