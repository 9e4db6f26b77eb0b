package controllers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/aihub/ragbot-go/internal/config"
	"github.com/aihub/ragbot-go/internal/conversation"
	"github.com/aihub/ragbot-go/internal/di"
	"github.com/aihub/ragbot-go/internal/engine"
	"github.com/aihub/ragbot-go/internal/logger"
	"github.com/aihub/ragbot-go/internal/messaging"
)

// WebhookController 消息通道Webhook：流程测试负载与事件信封两种形态
type WebhookController struct {
	BaseController
}

// webhookEnvelope 事件信封负载
type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Data struct {
			From string `json:"from"`
			ID   string `json:"id"`
			Text struct {
				Body string `json:"body"`
			} `json:"text"`
		} `json:"data"`
	} `json:"payload"`
}

// flowTestPayload 流程测试直发负载
type flowTestPayload struct {
	Question string `json:"question"`
	Phone    string `json:"phone"`
}

// verifySignature 校验HMAC-SHA256签名；未配置密钥时跳过
func verifySignature(body []byte, signature string) bool {
	secret := config.AppConfig.Webhook.Secret
	if secret == "" {
		logger.Warn("webhook secret not configured, skipping verification")
		return true
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// Receive 处理入站消息事件
func (c *WebhookController) Receive() {
	body := c.Ctx.Input.RequestBody

	signature := c.Ctx.Input.Header("X-Webhook-Signature")
	if !verifySignature(body, signature) {
		logger.Warn("invalid webhook signature", zap.String("ip", c.getClientIP()))
		c.JSONError(http.StatusUnauthorized, "invalid signature")
		return
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid JSON")
		return
	}

	// 流程测试负载：直接带question与phone
	if _, hasQ := raw["question"]; hasQ {
		if _, hasP := raw["phone"]; hasP {
			var payload flowTestPayload
			if err := json.Unmarshal(body, &payload); err != nil {
				c.JSONError(http.StatusBadRequest, "invalid JSON")
				return
			}
			c.answerAndReply(payload.Question, payload.Phone, "")
			return
		}
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid JSON")
		return
	}

	switch envelope.Event {
	case "message.received":
		from := envelope.Payload.Data.From
		text := envelope.Payload.Data.Text.Body
		if strings.TrimSpace(text) == "" {
			c.JSON(http.StatusOK, map[string]interface{}{"status": "ignored", "reason": "no text content"})
			return
		}
		logger.Info("webhook message received",
			zap.String("from", from),
			zap.String("message_id", envelope.Payload.Data.ID))
		c.answerAndReply(text, from, envelope.Payload.Data.ID)

	case "message.sent", "message.delivered":
		logger.Info("webhook delivery event", zap.String("event", envelope.Event))
		c.JSON(http.StatusOK, map[string]interface{}{"status": "acknowledged"})

	default:
		logger.Info("unhandled webhook event", zap.String("event", envelope.Event))
		c.JSON(http.StatusOK, map[string]interface{}{"status": "ignored", "event": envelope.Event})
	}
}

// capMessagingText 把回复压到消息通道总上限以内，
// 截断点落在rune边界上，不切坏多字节字符
func capMessagingText(text string) string {
	limit := engine.ChannelMessaging.TotalCeiling()
	if len(text) <= limit {
		return text
	}
	cut := limit - 3
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}

// answerAndReply 跑问答流水线并经消息通道回发，通道上限4000字符
func (c *WebhookController) answerAndReply(question, phone, messageID string) {
	var eng *engine.Engine
	var mgr *conversation.Manager
	var sender messaging.Sender
	if err := di.Invoke(func(e *engine.Engine, m *conversation.Manager, s messaging.Sender) {
		eng = e
		mgr = m
		sender = s
	}); err != nil {
		c.JSON(http.StatusOK, map[string]interface{}{"status": "error", "reason": "services not initialized"})
		return
	}

	ctx := c.Ctx.Request.Context()
	sessionID := "messaging_" + phone

	session, err := mgr.GetOrCreateSession(ctx, sessionID)
	if err != nil {
		c.JSON(http.StatusOK, map[string]interface{}{"status": "error", "reason": "session lookup failed"})
		return
	}
	unlock := mgr.LockSession(session.ID)
	defer unlock()

	outcome, err := mgr.Process(ctx, question, session.ID)
	if err != nil {
		c.JSON(http.StatusOK, map[string]interface{}{"status": "error", "reason": "message processing failed"})
		return
	}

	var responseText string
	if outcome.Kind != conversation.OutcomeRagAnswer {
		responseText = outcome.QuickResponse
	} else {
		noticeDue := mgr.ShouldShowNotice(question, outcome.Session)
		result, err := eng.Query(ctx, question, 0, outcome.Style, engine.ChannelMessaging, noticeDue)
		if err != nil {
			logger.Error("webhook query failed", zap.Error(err))
			responseText = "Sorry, the service is temporarily unavailable. Please try again later."
			_ = sender.SendText(ctx, phone, responseText)
			c.JSON(http.StatusOK, map[string]interface{}{"status": "error"})
			return
		}
		responseText = result.Response
		if result.NoticeAttached {
			if err := mgr.MarkNoticeShown(ctx, outcome.Session); err != nil {
				logger.Warn("failed to mark notice shown", zap.Error(err))
			}
		}
	}

	// 通道硬上限兜底
	responseText = capMessagingText(responseText)

	if err := mgr.AppendAssistantMessage(ctx, outcome.Session, responseText); err != nil {
		logger.Warn("failed to persist assistant message", zap.Error(err))
	}

	sent := sender.SendText(ctx, phone, responseText) == nil
	resp := map[string]interface{}{
		"status":        "success",
		"response_sent": sent,
	}
	if messageID != "" {
		resp["message_id"] = messageID
	}
	c.JSON(http.StatusOK, resp)
}
