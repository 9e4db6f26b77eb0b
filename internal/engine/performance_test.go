package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresetFor(t *testing.T) {
	speed, err := PresetFor(ModeSpeed)
	require.NoError(t, err)
	assert.Equal(t, 0.5, speed.Temperature)
	assert.Equal(t, 200, speed.MaxTokens)
	assert.Equal(t, 2048, speed.NumCtx)
	assert.Equal(t, 256, speed.NumBatch)

	quality, err := PresetFor(ModeQuality)
	require.NoError(t, err)
	assert.Equal(t, 0.8, quality.Temperature)
	assert.Equal(t, 1000, quality.MaxTokens)
	assert.Equal(t, 8192, quality.NumCtx)

	balanced, err := PresetFor(ModeBalanced)
	require.NoError(t, err)
	assert.Equal(t, 0.7, balanced.Temperature)
	assert.Equal(t, 500, balanced.MaxTokens)
	assert.Equal(t, 4096, balanced.NumCtx)
	assert.Equal(t, 512, balanced.NumBatch)

	// 三档共用的采样参数
	for _, p := range []GenerationPreset{speed, quality, balanced} {
		assert.Equal(t, 0.9, p.TopP)
		assert.Equal(t, 1.1, p.RepeatPenalty)
		assert.Equal(t, []string{"\n\n", "User:", "Human:"}, p.Stop)
	}

	_, err = PresetFor(PerformanceMode("turbo"))
	assert.Error(t, err)
}

func TestValidMode(t *testing.T) {
	assert.True(t, ValidMode("speed"))
	assert.True(t, ValidMode("quality"))
	assert.True(t, ValidMode("balanced"))
	assert.False(t, ValidMode("turbo"))
	assert.False(t, ValidMode(""))
}
