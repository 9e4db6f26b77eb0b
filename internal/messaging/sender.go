package messaging

import (
	"context"

	"go.uber.org/zap"

	"github.com/aihub/ragbot-go/internal/logger"
)

// Sender 消息通道回复发送抽象。上游消息平台是外部协作方，
// 这里只约定接口，生产实现由平台SDK接入。
type Sender interface {
	SendText(ctx context.Context, to, body string) error
}

// LogSender 仅记录日志的默认实现，用于本地开发与测试
type LogSender struct{}

// NewLogSender 创建日志发送器
func NewLogSender() *LogSender {
	return &LogSender{}
}

func (s *LogSender) SendText(ctx context.Context, to, body string) error {
	logger.Info("messaging reply (log only)",
		zap.String("to", to),
		zap.Int("length", len(body)))
	return nil
}
