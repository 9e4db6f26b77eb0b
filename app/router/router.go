package router

import (
	"github.com/beego/beego/v2/server/web"

	"github.com/aihub/ragbot-go/app/controllers"
)

// Init registers all routes. Must be called after config is loaded.
func Init() {
	web.Router("/health", &controllers.HealthController{}, "get:Health")

	// 聊天路由
	chatController := &controllers.ChatController{}
	web.Router("/api/chat", chatController, "post:Chat")
	web.Router("/api/chat/stream", chatController, "post:Stream")

	// 运维路由
	adminController := &controllers.AdminController{}
	web.Router("/api/chat/clear-cache", adminController, "post:ClearCache")
	web.Router("/api/chat/performance-mode", adminController, "post:SetPerformanceMode")
	web.Router("/api/sessions", adminController, "get:Sessions")

	// 消息通道Webhook
	web.Router("/webhook", &controllers.WebhookController{}, "post:Receive")
}
