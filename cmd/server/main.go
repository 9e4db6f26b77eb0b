package main

import (
	"log"
	"strconv"

	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"

	"github.com/aihub/ragbot-go/app/bootstrap"
	"github.com/aihub/ragbot-go/app/router"
	"github.com/aihub/ragbot-go/internal/config"
	"github.com/aihub/ragbot-go/internal/logger"
)

func main() {
	app, err := bootstrap.Init()
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer app.Shutdown()
	bootstrap.SetGlobalApp(app)

	router.Init()

	// 配置Beego全局设置
	web.BConfig.AppName = "RAG Chatbot Service"
	web.BConfig.CopyRequestBody = true
	if p, err := strconv.Atoi(config.AppConfig.Server.Port); err == nil {
		web.BConfig.Listen.HTTPPort = p
	}

	logger.Info("🚀 Starting RAG Chatbot Service",
		zap.Int("port", web.BConfig.Listen.HTTPPort),
		zap.String("mode", config.AppConfig.Engine.PerformanceMode))
	web.Run()
}
