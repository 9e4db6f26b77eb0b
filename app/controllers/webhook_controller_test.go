package controllers

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/aihub/ragbot-go/internal/engine"
)

func TestCapMessagingText(t *testing.T) {
	limit := engine.ChannelMessaging.TotalCeiling()

	short := "short reply."
	assert.Equal(t, short, capMessagingText(short))

	long := strings.Repeat("a", limit+100)
	capped := capMessagingText(long)
	assert.LessOrEqual(t, len(capped), limit)
	assert.True(t, strings.HasSuffix(capped, "..."))
}

// 截断点不能落在多字节字符中间
func TestCapMessagingTextRuneBoundary(t *testing.T) {
	limit := engine.ChannelMessaging.TotalCeiling()

	// 每个字符3字节，上限附近必然跨越字符边界
	long := strings.Repeat("中", limit)
	capped := capMessagingText(long)
	assert.LessOrEqual(t, len(capped), limit)
	assert.True(t, utf8.ValidString(capped))
	assert.True(t, strings.HasSuffix(capped, "..."))
}
