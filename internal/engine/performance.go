package engine

import "fmt"

// PerformanceMode 生成性能模式
type PerformanceMode string

const (
	ModeSpeed    PerformanceMode = "speed"
	ModeQuality  PerformanceMode = "quality"
	ModeBalanced PerformanceMode = "balanced"
)

// GenerationPreset 单个性能模式对应的生成参数
type GenerationPreset struct {
	Temperature   float64
	MaxTokens     int
	TopP          float64
	NumCtx        int
	NumBatch      int
	RepeatPenalty float64
	Stop          []string
}

var presets = map[PerformanceMode]GenerationPreset{
	ModeSpeed: {
		Temperature:   0.5,
		MaxTokens:     200,
		TopP:          0.9,
		NumCtx:        2048,
		NumBatch:      256,
		RepeatPenalty: 1.1,
		Stop:          []string{"\n\n", "User:", "Human:"},
	},
	ModeQuality: {
		Temperature:   0.8,
		MaxTokens:     1000,
		TopP:          0.9,
		NumCtx:        8192,
		NumBatch:      1024,
		RepeatPenalty: 1.1,
		Stop:          []string{"\n\n", "User:", "Human:"},
	},
	ModeBalanced: {
		Temperature:   0.7,
		MaxTokens:     500,
		TopP:          0.9,
		NumCtx:        4096,
		NumBatch:      512,
		RepeatPenalty: 1.1,
		Stop:          []string{"\n\n", "User:", "Human:"},
	},
}

// PresetFor 返回指定模式的生成参数，未知模式报错
func PresetFor(mode PerformanceMode) (GenerationPreset, error) {
	preset, ok := presets[mode]
	if !ok {
		return GenerationPreset{}, fmt.Errorf("invalid performance mode: %s", mode)
	}
	return preset, nil
}

// ValidMode 校验模式名
func ValidMode(mode string) bool {
	_, ok := presets[PerformanceMode(mode)]
	return ok
}
